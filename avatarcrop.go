// Package avatarcrop implements a deterministic avatar crop pipeline:
// select and validate a raw image, adjust zoom/rotation/pan over it, and
// export a fixed-size square raster to an upload collaborator.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		avatarcrop "github.com/castmatch/avatar-crop"
//		"github.com/castmatch/avatar-crop/pkg/editor"
//		"github.com/castmatch/avatar-crop/pkg/export"
//	)
//
//	func main() {
//		pipeline := avatarcrop.New()
//
//		ed, err := pipeline.NewEditor(editor.Options{
//			DisplayName: "Priya Nair",
//			OnUpload: func(ctx context.Context, out export.Output, previewURL string) error {
//				return os.WriteFile(out.Filename, out.Data, 0o644)
//			},
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer ed.Close()
//
//		data, _ := os.ReadFile("headshot.jpg")
//		if err := ed.Select("headshot.jpg", "image/jpeg", data); err != nil {
//			log.Fatal(err)
//		}
//
//		ed.SetZoom(1.5)
//		ed.SetRotation(10)
//		ed.SetPan(20, -10)
//
//		if _, err := ed.Export(context.Background()); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of four main components:
//
// 1. Source (pkg/source): file validation and decoding
// 2. Transform (pkg/transform): the zoom/rotation/pan parameter model
// 3. Raster (pkg/raster): the deterministic square compositor
// 4. Editor (pkg/editor): the session state machine wiring them together
//
// The preview and the exported avatar are produced by the identical
// transform pipeline, so what the user sees while editing is exactly what
// is uploaded. Rendering is deterministic: the same source image and
// transform parameters always yield byte-identical output.
package avatarcrop

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/castmatch/avatar-crop/internal/config"
	"github.com/castmatch/avatar-crop/pkg/editor"
	"github.com/castmatch/avatar-crop/pkg/export"
	"github.com/castmatch/avatar-crop/pkg/raster"
	"github.com/castmatch/avatar-crop/pkg/source"
	"github.com/castmatch/avatar-crop/pkg/transform"
	"github.com/castmatch/avatar-crop/pkg/vision"
)

// Version of the avatar crop library
const Version = "1.0.0"

// Pipeline provides a high-level interface over the crop components, built
// from one configuration.
type Pipeline struct {
	cfg      *config.Config
	loader   *source.Loader
	framer   *vision.Framer
	exporter *export.Exporter
	limits   transform.Limits
}

// New creates a Pipeline with default configuration.
func New() *Pipeline {
	p, _ := NewWithConfig(config.Default())
	return p
}

// NewWithConfig creates a Pipeline from an explicit configuration.
func NewWithConfig(cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("avatarcrop: invalid config: %w", err)
	}

	expCfg, err := exportConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:    cfg,
		loader: source.NewWithConfig(source.Config{MaxBytes: cfg.Source.MaxBytes, AcceptPrefix: cfg.Source.AcceptPrefix}),
		framer: vision.NewWithConfig(vision.Config{
			EdgeWeight:       cfg.Vision.EdgeWeight,
			BrightnessWeight: cfg.Vision.BrightnessWeight,
			ScoreThreshold:   cfg.Vision.ScoreThreshold,
			MinSubjectRatio:  cfg.Vision.MinSubjectRatio,
			AnalysisMaxDim:   cfg.Vision.AnalysisMaxDim,
			SubjectPadding:   cfg.Vision.SubjectPadding,
		}),
		exporter: export.NewWithConfig(expCfg, nil),
		limits: transform.Limits{
			MinZoom:     cfg.Editor.MinZoom,
			MaxZoom:     cfg.Editor.MaxZoom,
			MaxRotation: cfg.Editor.MaxRotation,
			MaxPan:      cfg.Editor.MaxPan,
		},
	}, nil
}

// Load validates and decodes a raw image file.
func (p *Pipeline) Load(name, mime string, data []byte) (*source.Image, error) {
	return p.loader.Load(name, mime, data)
}

// Render bakes a transform into the final avatar output without going
// through an editor session.
func (p *Pipeline) Render(src *source.Image, st transform.State) (*export.Output, error) {
	return p.exporter.Render(src, st.Clamp(p.limits))
}

// Suggest returns an auto-framing transform for the loaded image.
func (p *Pipeline) Suggest(src *source.Image) transform.State {
	return p.framer.Suggest(src.Bitmap(), p.exporter.Size(), p.limits)
}

// Limits returns the configured transform control ranges.
func (p *Pipeline) Limits() transform.Limits {
	return p.limits
}

// NewEditor creates an editor session wired to the pipeline's loader,
// limits, framer and export settings. Caller-supplied fields in opts win
// over the pipeline configuration.
func (p *Pipeline) NewEditor(opts editor.Options) (*editor.Editor, error) {
	if opts.Loader == nil {
		opts.Loader = p.loader
	}
	if opts.Limits == (transform.Limits{}) {
		opts.Limits = p.limits
	}
	if opts.Framer == nil {
		opts.Framer = p.framer
	}
	if opts.ExportConfig == (export.Config{}) {
		cfg, err := exportConfig(p.cfg)
		if err != nil {
			return nil, err
		}
		opts.ExportConfig = cfg
	}
	if !opts.AdaptiveBackground {
		opts.AdaptiveBackground = p.cfg.Export.AdaptiveBackground
	}
	return editor.New(opts)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

func exportConfig(cfg *config.Config) (export.Config, error) {
	bg, err := ParseHexColor(cfg.Export.Background)
	if err != nil {
		return export.Config{}, fmt.Errorf("avatarcrop: export.background: %w", err)
	}
	format := export.Format(cfg.Export.Format)
	if cfg.Export.Format == "jpeg" {
		format = export.FormatJPEG
	}
	return export.Config{
		Size:       cfg.Export.Size,
		Format:     format,
		Quality:    cfg.Export.Quality,
		Lossless:   cfg.Export.Lossless,
		Background: bg,
	}, nil
}

// ParseHexColor parses a #rrggbb (or #rgb) color string. An empty string
// yields the default raster background.
func ParseHexColor(s string) (color.NRGBA, error) {
	if s == "" {
		return raster.DefaultBackground, nil
	}

	hex := strings.TrimPrefix(s, "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}

	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, nil
}
