// Package export bakes a transform into a fixed-size square raster and
// encodes it for upload.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/castmatch/avatar-crop/internal/utils"
	"github.com/castmatch/avatar-crop/pkg/raster"
	"github.com/castmatch/avatar-crop/pkg/source"
	"github.com/castmatch/avatar-crop/pkg/transform"
)

// Format selects the output encoding.
type Format string

const (
	FormatJPEG Format = "jpg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// MIME returns the MIME type for the format.
func (f Format) MIME() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// DefaultSize is the output raster side in pixels.
const DefaultSize = 300

// DefaultQuality is the lossy encoding quality factor.
const DefaultQuality = 90

// Sentinel errors for precondition failures. Both indicate caller bugs or
// misuse, not bad user input.
var (
	// ErrNoSource means Render was called with no loaded source image.
	ErrNoSource = errors.New("export: no source image loaded")
	// ErrInFlight means a second Render started while one was running.
	// Concurrent exports are rejected, never queued.
	ErrInFlight = errors.New("export: another export is in flight")
)

// RenderError reports a rasterization or encoding failure during export.
// The attempt is abandoned with no partial output; the caller may retry with
// the same source and transform.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("export: %s failed: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Output is the finished avatar: encoded bytes plus the metadata the upload
// collaborator needs. The exporter keeps no reference after handoff.
type Output struct {
	Data     []byte
	MIME     string
	Filename string
	Width    int
	Height   int
}

// Config holds exporter settings.
type Config struct {
	Size       int
	Format     Format
	Quality    int
	Lossless   bool
	Background color.NRGBA
}

// DefaultConfig returns the standard exporter settings: 300x300 JPEG at
// quality 90.
func DefaultConfig() Config {
	return Config{
		Size:       DefaultSize,
		Format:     FormatJPEG,
		Quality:    DefaultQuality,
		Background: raster.DefaultBackground,
	}
}

// Exporter renders and encodes avatar outputs through a shared Compositor,
// guaranteeing preview/export parity when the editor uses the same one.
type Exporter struct {
	config     Config
	compositor raster.Compositor

	mu       sync.Mutex
	inFlight bool
}

// New creates an Exporter with default configuration.
func New() *Exporter {
	return NewWithConfig(DefaultConfig(), nil)
}

// NewWithConfig creates an Exporter with custom configuration. A nil
// compositor gets the default software one, using the configured background.
func NewWithConfig(config Config, compositor raster.Compositor) *Exporter {
	if config.Size <= 0 {
		config.Size = DefaultSize
	}
	if config.Format == "" {
		config.Format = FormatJPEG
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultQuality
	}
	if compositor == nil {
		if config.Background == (color.NRGBA{}) {
			config.Background = raster.DefaultBackground
		}
		compositor = raster.NewWithBackground(config.Background)
	}
	return &Exporter{config: config, compositor: compositor}
}

// Size returns the configured output raster side.
func (e *Exporter) Size() int {
	return e.config.Size
}

// Render bakes the transform into a square raster and encodes it. Calling
// Render with a nil source is a programming error and fails fast with
// ErrNoSource. Rasterization or encoding failures return *RenderError and
// emit nothing. Rendering is deterministic: the same source and state
// produce byte-identical output.
func (e *Exporter) Render(src *source.Image, st transform.State) (*Output, error) {
	if src == nil {
		return nil, ErrNoSource
	}

	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return nil, ErrInFlight
	}
	e.inFlight = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	dst, err := e.compositor.Render(src.Bitmap(), st, e.config.Size)
	if err != nil {
		return nil, &RenderError{Stage: "rasterize", Err: err}
	}

	data, err := e.encode(dst)
	if err != nil {
		return nil, &RenderError{Stage: "encode", Err: err}
	}

	return &Output{
		Data:     data,
		MIME:     e.config.Format.MIME(),
		Filename: utils.OutputFilename(src.Name, "_avatar", string(e.config.Format)),
		Width:    e.config.Size,
		Height:   e.config.Size,
	}, nil
}

func (e *Exporter) encode(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	switch e.config.Format {
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, err
		}
	case FormatWebP:
		opts := &webp.Options{Lossless: e.config.Lossless, Quality: float32(e.config.Quality)}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, err
		}
	default:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.config.Quality)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
