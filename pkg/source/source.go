// Package source validates and decodes user-supplied image files into
// immutable SourceImage values ready for the crop editor.
package source

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	_ "image/gif"
)

// DefaultMaxBytes is the default upload ceiling (5 MiB).
const DefaultMaxBytes = 5 * 1024 * 1024

// Reason classifies why a file was rejected before entering edit mode.
type Reason string

const (
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonFileTooLarge    Reason = "file_too_large"
	ReasonDecodeFailed    Reason = "decode_failed"
)

// ValidationError reports a rejected input file. It is always recoverable:
// the caller surfaces the message and returns to file selection.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("source: %s: %s", e.Reason, e.Detail)
}

// Image is a validated, decoded source image. It is immutable once loaded:
// the editor reads the bitmap but never mutates it.
type Image struct {
	Name   string
	MIME   string
	Size   int64
	bitmap image.Image
}

// Bitmap returns the decoded pixels.
func (s *Image) Bitmap() image.Image {
	return s.bitmap
}

// Width returns the decoded pixel width.
func (s *Image) Width() int {
	return s.bitmap.Bounds().Dx()
}

// Height returns the decoded pixel height.
func (s *Image) Height() int {
	return s.bitmap.Bounds().Dy()
}

// Config holds validation settings for the loader.
type Config struct {
	MaxBytes     int64
	AcceptPrefix string
}

// Loader validates file metadata and decodes accepted files.
type Loader struct {
	config Config
}

// New creates a Loader with default configuration.
func New() *Loader {
	return &Loader{
		config: Config{
			MaxBytes:     DefaultMaxBytes,
			AcceptPrefix: "image/",
		},
	}
}

// NewWithConfig creates a Loader with custom configuration. Zero values fall
// back to the defaults.
func NewWithConfig(config Config) *Loader {
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	if config.AcceptPrefix == "" {
		config.AcceptPrefix = "image/"
	}
	return &Loader{config: config}
}

// Load validates the declared MIME type and byte length, then decodes the
// bytes into an Image. A file of exactly MaxBytes is accepted; one byte more
// is rejected. All failures return *ValidationError and leave nothing behind.
func (l *Loader) Load(name, mime string, data []byte) (*Image, error) {
	if !strings.HasPrefix(mime, l.config.AcceptPrefix) {
		return nil, &ValidationError{
			Reason: ReasonUnsupportedType,
			Detail: fmt.Sprintf("type %q is not an image", mime),
		}
	}

	if int64(len(data)) > l.config.MaxBytes {
		return nil, &ValidationError{
			Reason: ReasonFileTooLarge,
			Detail: fmt.Sprintf("%d bytes exceeds the %d byte limit", len(data), l.config.MaxBytes),
		}
	}

	bitmap, err := decode(data)
	if err != nil {
		return nil, &ValidationError{
			Reason: ReasonDecodeFailed,
			Detail: err.Error(),
		}
	}

	return &Image{
		Name:   name,
		MIME:   mime,
		Size:   int64(len(data)),
		bitmap: bitmap,
	}, nil
}

// decode interprets the bytes as an image, honoring EXIF orientation for
// formats that carry it, with an explicit WebP fallback for files the
// registered decoders miss.
func decode(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("unknown or unsupported image format")
}
