package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"image/png"

	avatarcrop "github.com/castmatch/avatar-crop"
	"github.com/castmatch/avatar-crop/internal/config"
	"github.com/castmatch/avatar-crop/internal/utils"
	"github.com/castmatch/avatar-crop/pkg/editor"
	"github.com/castmatch/avatar-crop/pkg/export"
)

func main() {
	var in, outDir, cfgPath, initials string
	var zoom, rotate, panX, panY float64
	var size, quality int
	var ext string
	var lossless, autoframe, adaptiveBG bool

	flag.StringVar(&in, "in", "", "input image path (jpg/png/gif/webp)")
	flag.StringVar(&outDir, "out", "out", "output directory")
	flag.StringVar(&cfgPath, "config", "", "config file path (JSON)")

	flag.Float64Var(&zoom, "zoom", 1.0, "zoom factor (1.0..3.0)")
	flag.Float64Var(&rotate, "rotate", 0, "rotation in degrees (-180..180)")
	flag.Float64Var(&panX, "panx", 0, "horizontal pan offset in output pixels (-100..100)")
	flag.Float64Var(&panY, "pany", 0, "vertical pan offset in output pixels (-100..100)")

	flag.IntVar(&size, "size", 0, "output raster side in pixels (0 = config default)")
	flag.StringVar(&ext, "ext", "", "output format: jpg|png|webp (empty = config default)")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100, 0 = config default)")
	flag.BoolVar(&lossless, "lossless", false, "WebP lossless mode")

	flag.BoolVar(&autoframe, "autoframe", false, "start from the auto-framing suggestion before applying adjustments")
	flag.BoolVar(&adaptiveBG, "adaptivebg", false, "fill rotated-out corners with the photo's dominant color")
	flag.StringVar(&initials, "initials", "", "generate an initials placeholder for this display name instead of cropping")

	flag.Parse()
	if in == "" && initials == "" {
		log.Fatalf("usage: %s -in photo.jpg [-zoom 1.5] [-rotate 10] [-panx 20] [-pany -10] [-out outdir] | -initials \"Display Name\"",
			filepath.Base(os.Args[0]))
	}

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.LoadFromFile(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if size > 0 {
		cfg.Export.Size = size
	}
	if ext != "" {
		cfg.Export.Format = ext
	}
	if quality > 0 {
		cfg.Export.Quality = quality
	}
	cfg.Export.Lossless = lossless

	pipeline, err := avatarcrop.NewWithConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := utils.EnsureDir(outDir); err != nil {
		log.Fatal(err)
	}

	if initials != "" {
		if err := writePlaceholder(pipeline, initials, outDir); err != nil {
			log.Fatal(err)
		}
		return
	}

	data, err := os.ReadFile(in)
	if err != nil {
		log.Fatal(err)
	}
	mime := utils.MIMEForExtension(utils.GetFileExtension(in))

	ed, err := pipeline.NewEditor(editor.Options{
		AdaptiveBackground: adaptiveBG,
		OnUpload: func(ctx context.Context, out export.Output, previewURL string) error {
			path := filepath.Join(outDir, out.Filename)
			if err := os.WriteFile(path, out.Data, 0o644); err != nil {
				return err
			}
			log.Printf("wrote %s (%s, %s)", path, out.MIME, utils.FormatFileSize(int64(len(out.Data))))
			return nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer ed.Close()

	if err := ed.Select(filepath.Base(in), mime, data); err != nil {
		log.Fatal(err)
	}
	src := ed.Source()
	log.Printf("loaded %s: %dx%d (%s)", in, src.Width(), src.Height(), utils.FormatFileSize(src.Size))

	if autoframe {
		if err := ed.AutoFrame(); err != nil {
			log.Fatal(err)
		}
		st := ed.Transform()
		log.Printf("auto-framing: zoom=%.2f pan=%.1f,%.1f", st.Zoom, st.PanX, st.PanY)
	}

	// Explicit flags layer on top of the auto-framing suggestion.
	if zoom != 1.0 || !autoframe {
		if err := ed.SetZoom(zoom); err != nil {
			log.Fatal(err)
		}
	}
	if err := ed.SetRotation(rotate); err != nil {
		log.Fatal(err)
	}
	if panX != 0 || panY != 0 || !autoframe {
		if err := ed.SetPan(panX, panY); err != nil {
			log.Fatal(err)
		}
	}
	final := ed.Transform()
	log.Printf("transform: zoom=%.2f rotation=%.1f pan=%.1f,%.1f", final.Zoom, final.RotationDegrees, final.PanX, final.PanY)

	if _, err := ed.Export(context.Background()); err != nil {
		log.Fatal(err)
	}
}

// writePlaceholder renders the initials avatar for a display name.
func writePlaceholder(pipeline *avatarcrop.Pipeline, displayName, outDir string) error {
	ed, err := pipeline.NewEditor(editor.Options{
		DisplayName: displayName,
		OnUpload: func(ctx context.Context, out export.Output, previewURL string) error {
			return nil
		},
	})
	if err != nil {
		return err
	}
	defer ed.Close()

	img := ed.Placeholder()
	name := utils.SanitizeFilename(editor.Initials(displayName))
	path := filepath.Join(outDir, fmt.Sprintf("placeholder_%s.png", name))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return err
	}
	log.Printf("wrote %s", path)
	return nil
}
