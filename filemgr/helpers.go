// Package filemgr stores crop images either on local disk or in Cloudinary.
package filemgr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
)

// ImageStore persists an uploaded image and returns the URL clients use to fetch it.
type ImageStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
}

func isExtensionAllowed(ext string) bool {
	return slices.Contains(AllowedExtensions, ext)
}

func isMIMEAllowed(mimeType string) bool {
	return slices.Contains(AllowedMIMEs, mimeType)
}

// readUpload checks the extension, reads at most MaxImageSize bytes and
// verifies the sniffed content type.
func readUpload(filename string, r io.Reader) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !isExtensionAllowed(ext) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
	}

	buf, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(buf) > MaxImageSize {
		return nil, ErrFileTooLarge
	}
	if mimeType := http.DetectContentType(buf); !isMIMEAllowed(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMIME, mimeType)
	}
	return buf, nil
}

// decodeImage decodes buf, honouring EXIF orientation, and bounds its size.
func decodeImage(buf []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if err := ValidateImageDimensions(img, maxDimension, maxDimension); err != nil {
		return nil, err
	}
	return img, nil
}

func ValidateImageDimensions(img image.Image, maxWidth, maxHeight int) error {
	bounds := img.Bounds()
	if bounds.Dx() > maxWidth || bounds.Dy() > maxHeight {
		return fmt.Errorf("%w: dimensions %dx%d exceed max %dx%d", ErrInvalidImage, bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)
	}
	return nil
}

// IsUserError reports whether err was caused by the uploaded content.
func IsUserError(err error) bool {
	for _, e := range []error{ErrInvalidExtension, ErrInvalidMIME, ErrFileTooLarge, ErrInvalidImage} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
