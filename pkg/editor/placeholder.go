package editor

import (
	"hash/fnv"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

// placeholderPalette backs the deterministic initials avatar. Picked by
// hashing the display name, so the same name always gets the same color.
var placeholderPalette = []color.NRGBA{
	{R: 0x8b, G: 0x5c, B: 0xf6, A: 0xff},
	{R: 0xec, G: 0x48, B: 0x99, A: 0xff},
	{R: 0x06, G: 0xb6, B: 0xd4, A: 0xff},
	{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff},
	{R: 0x10, G: 0xb9, B: 0x81, A: 0xff},
	{R: 0x63, G: 0x66, B: 0xf1, A: 0xff},
}

// Initials extracts up to two uppercase initials from a display name.
// Empty or whitespace-only names yield "?".
func Initials(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return "?"
	}

	initials := []rune(strings.ToUpper(string([]rune(fields[0])[0])))
	if len(fields) > 1 {
		last := []rune(fields[len(fields)-1])
		initials = append(initials, []rune(strings.ToUpper(string(last[0])))...)
	}
	return string(initials)
}

// Placeholder synthesizes an initials avatar for the configured display
// name at the export size: a solid name-hashed background with centered
// glyphs. Used when no image is present and no current avatar URL exists.
func (e *Editor) Placeholder() *image.NRGBA {
	size := e.exporter.Size()
	initials := Initials(e.opts.DisplayName)

	bg := placeholderPalette[nameHash(e.opts.DisplayName)%uint32(len(placeholderPalette))]

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	// Render the glyphs small, then upscale so the initials fill roughly
	// half the avatar regardless of the configured size.
	face := inconsolata.Bold8x16
	textW := font.MeasureString(face, initials).Ceil()
	textH := face.Metrics().Height.Ceil()
	if textW == 0 || textH == 0 {
		return dst
	}

	text := image.NewNRGBA(image.Rect(0, 0, textW, textH))
	drawer := font.Drawer{
		Dst:  text,
		Src:  image.NewUniform(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: face.Metrics().Ascent},
	}
	drawer.DrawString(initials)

	// Scale to half the avatar width, preserving the glyph aspect ratio.
	scaledW := size / 2
	scaledH := scaledW * textH / textW
	if scaledH > size/2 {
		scaledH = size / 2
		scaledW = scaledH * textW / textH
	}
	target := image.Rect(
		(size-scaledW)/2,
		(size-scaledH)/2,
		(size-scaledW)/2+scaledW,
		(size-scaledH)/2+scaledH,
	)
	draw.CatmullRom.Scale(dst, target, text, text.Bounds(), draw.Over, nil)

	return dst
}

func nameHash(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return h.Sum32()
}
