package filemgr

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// LocalStore writes images under Root/crops and thumbnails under
// Root/crops/thumb. Root is served at URLPrefix.
type LocalStore struct {
	Root      string
	URLPrefix string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root, URLPrefix: "/uploads"}
}

// Save re-encodes the upload as JPEG, which drops EXIF metadata.
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	buf, err := readUpload(filename, r)
	if err != nil {
		return "", err
	}
	img, err := decodeImage(buf)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.New().String() + ".jpg"
	dir := filepath.Join(s.Root, cropFolder)
	if err := writeJPEG(filepath.Join(dir, name), img, 90); err != nil {
		return "", err
	}
	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	if err := writeJPEG(filepath.Join(dir, "thumb", name), thumb, 85); err != nil {
		return "", err
	}
	return s.URLPrefix + "/" + cropFolder + "/" + name, nil
}

func writeJPEG(path string, img image.Image, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
