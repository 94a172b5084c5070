package filemgr

import "errors"

const (
	MaxImageSize = 10 << 20
	maxDimension = 6000
	thumbWidth   = 300
	cropFolder   = "crops"
)

var (
	AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}
	AllowedMIMEs      = []string{"image/jpeg", "image/png", "image/gif"}

	ErrInvalidExtension = errors.New("invalid file extension")
	ErrInvalidMIME      = errors.New("invalid MIME type")
	ErrFileTooLarge     = errors.New("file size exceeds limit")
	ErrInvalidImage     = errors.New("file is not a readable image")
)
