package storage

import (
	"context"

	"github.com/rotisserie/eris"
)

var (
	// ErrUnsupportedType is returned for files that are not JPEG, PNG, GIF or WebP images.
	ErrUnsupportedType = eris.New("invalid file type. allowed: JPG, PNG, GIF, WebP")
	// ErrTooLarge is returned for uploads over MaxUploadSize.
	ErrTooLarge = eris.New("file too large. maximum size is 5MB")
	// ErrTooManyPixels is returned for images whose header declares more than MaxImagePixels.
	ErrTooManyPixels = eris.New("image dimensions too large")
	// ErrExists is returned when an object already exists at the target path.
	ErrExists = eris.New("object already exists")
)

// Bucket stores objects and returns their public URL.
type Bucket interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}
