// Package raster renders a source bitmap through a crop transform into a
// fixed-size square destination raster.
package raster

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/castmatch/avatar-crop/pkg/transform"
)

// MaxOutputSide caps the destination raster dimension. Requests beyond it
// fail instead of allocating an absurd buffer.
const MaxOutputSide = 8192

// Compositor produces a square destination raster from a source bitmap and a
// transform state. Implementations must be deterministic: the same source
// and state always yield pixel-identical output.
type Compositor interface {
	Render(src image.Image, st transform.State, outSize int) (*image.NRGBA, error)
}

// DrawCompositor is a software Compositor built on golang.org/x/image/draw.
// Corners left uncovered by a rotated or panned source are filled with the
// Background color.
type DrawCompositor struct {
	Background color.NRGBA
}

// DefaultBackground is the fill behind the transformed source.
var DefaultBackground = color.NRGBA{R: 24, G: 24, B: 27, A: 255}

// New creates a DrawCompositor with the default background.
func New() *DrawCompositor {
	return &DrawCompositor{Background: DefaultBackground}
}

// NewWithBackground creates a DrawCompositor with a custom fill color.
func NewWithBackground(bg color.NRGBA) *DrawCompositor {
	bg.A = 255
	return &DrawCompositor{Background: bg}
}

// Render applies the state's center-rotate-scale-center chain to src and
// returns an outSize square raster. Sources smaller than the output are
// upscaled by the same resampler; the compositor never pads or rejects on
// size. Resampling uses Catmull-Rom, which is deterministic, so repeated
// renders are byte-identical.
func (c *DrawCompositor) Render(src image.Image, st transform.State, outSize int) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("raster: nil source image")
	}
	if outSize <= 0 || outSize > MaxOutputSide {
		return nil, fmt.Errorf("raster: unsupported output size %d", outSize)
	}

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("raster: empty source image")
	}

	dst := image.NewNRGBA(image.Rect(0, 0, outSize, outSize))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c.Background), image.Point{}, draw.Src)

	m := st.Matrix(b.Dx(), b.Dy(), outSize)
	// The matrix assumes a zero-origin source; fold in the bounds offset so
	// sources with a non-zero Min (e.g. sub-images) render identically.
	m[2] -= m[0]*float64(b.Min.X) + m[1]*float64(b.Min.Y)
	m[5] -= m[3]*float64(b.Min.X) + m[4]*float64(b.Min.Y)

	draw.CatmullRom.Transform(dst, m, src, b, draw.Over, nil)

	return dst, nil
}
