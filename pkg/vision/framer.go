// Package vision suggests an initial crop framing by locating the most
// salient region of a photo, so the editor can pre-center the subject before
// the user fine-tunes zoom, rotation and pan.
package vision

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/castmatch/avatar-crop/pkg/transform"
)

// Config holds tuning parameters for saliency analysis.
type Config struct {
	EdgeWeight       float64
	BrightnessWeight float64
	ScoreThreshold   float64
	MinSubjectRatio  float64
	AnalysisMaxDim   int
	SubjectPadding   float64
}

// Framer locates the dominant subject in an image and derives a suggested
// TransformState from it.
type Framer struct {
	config Config
}

// New creates a Framer with default configuration.
func New() *Framer {
	return &Framer{
		config: Config{
			EdgeWeight:       0.7,
			BrightnessWeight: 0.3,
			ScoreThreshold:   0.01,
			MinSubjectRatio:  0.02,
			AnalysisMaxDim:   256,
			SubjectPadding:   1.4,
		},
	}
}

// NewWithConfig creates a Framer with custom configuration. Zero values fall
// back to the defaults.
func NewWithConfig(config Config) *Framer {
	def := New().config
	if config.EdgeWeight == 0 {
		config.EdgeWeight = def.EdgeWeight
	}
	if config.BrightnessWeight == 0 {
		config.BrightnessWeight = def.BrightnessWeight
	}
	if config.ScoreThreshold == 0 {
		config.ScoreThreshold = def.ScoreThreshold
	}
	if config.MinSubjectRatio == 0 {
		config.MinSubjectRatio = def.MinSubjectRatio
	}
	if config.AnalysisMaxDim == 0 {
		config.AnalysisMaxDim = def.AnalysisMaxDim
	}
	if config.SubjectPadding == 0 {
		config.SubjectPadding = def.SubjectPadding
	}
	return &Framer{config: config}
}

// Region is a rectangular area of interest in source pixel coordinates.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// DetectSubject returns the highest-scoring salient region of the image. The
// second return is false when nothing stands out above the threshold, in
// which case the caller should keep the identity framing.
func (f *Framer) DetectSubject(img image.Image) (Region, bool) {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return Region{}, false
	}

	// Analyze a downscaled copy; saliency is stable under scaling and the
	// sliding-window pass is quadratic in the image size.
	scale := 1.0
	analyzed := img
	if maxDim := f.config.AnalysisMaxDim; srcW > maxDim || srcH > maxDim {
		if srcW >= srcH {
			analyzed = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			analyzed = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
		scale = float64(srcW) / float64(analyzed.Bounds().Dx())
	}

	saliency := f.saliencyMap(analyzed)
	best, ok := f.bestRegion(saliency, analyzed.Bounds().Dx(), analyzed.Bounds().Dy())
	if !ok {
		return Region{}, false
	}

	return Region{
		X:      int(float64(best.X) * scale),
		Y:      int(float64(best.Y) * scale),
		Width:  int(float64(best.Width) * scale),
		Height: int(float64(best.Height) * scale),
		Score:  best.Score,
	}, true
}

// Suggest derives a TransformState that centers the dominant subject in an
// outSize square and zooms so the padded subject fills it. The result is
// clamped to the editor limits; when no subject is found it is the identity.
func (f *Framer) Suggest(img image.Image, outSize int, limits transform.Limits) transform.State {
	subject, ok := f.DetectSubject(img)
	if !ok {
		return transform.Identity()
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	side := math.Min(float64(srcW), float64(srcH))

	// Zoom so the padded subject's larger dimension fills the inscribed
	// square. Never below 1: the suggestion only ever zooms in.
	subjectDim := math.Max(float64(subject.Width), float64(subject.Height)) * f.config.SubjectPadding
	zoom := 1.0
	if subjectDim > 0 && subjectDim < side {
		zoom = side / subjectDim
	}

	st := transform.State{Zoom: zoom}
	st = st.Clamp(limits)

	// Pan moves the subject center onto the output center. The offset is in
	// output pixels, so scale the source-space delta by the render scale.
	k := st.Zoom * float64(outSize) / side
	scx, scy := subject.Center()
	st.PanX = -(float64(scx) - float64(srcW)/2) * k
	st.PanY = -(float64(scy) - float64(srcH)/2) * k

	return st.Clamp(limits)
}

// saliencyMap scores each interior pixel by local edge strength and
// brightness, the same cheap cues the smart cropper uses.
func (f *Framer) saliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliency := make([][]float64, height)
	for i := range saliency {
		saliency[i] = make([]float64, width)
	}

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			var edge float64
			for _, off := range neighbors {
				r2, g2, b2, _ := img.At(x+off[0]+bounds.Min.X, y+off[1]+bounds.Min.Y).RGBA()
				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edge += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edge /= 8.0 * 65535.0

			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)

			saliency[y][x] = f.config.EdgeWeight*edge + f.config.BrightnessWeight*brightness
		}
	}

	return saliency
}

// bestRegion slides windows of several sizes across the saliency map and
// returns the highest-scoring one. A window only qualifies when it clearly
// beats the image-wide mean saliency; on a featureless image every window
// sits at the mean and nothing is reported.
func (f *Framer) bestRegion(saliency [][]float64, width, height int) (Region, bool) {
	minArea := int(float64(width*height) * f.config.MinSubjectRatio)
	mean := meanScore(saliency)

	var best Region
	found := false

	for _, div := range []int{8, 5, 3, 2} {
		win := minInt(width, height) / div
		if win < 8 || win*win < minArea {
			continue
		}
		step := maxInt(win/4, 2)

		for y := 0; y+win <= height; y += step {
			for x := 0; x+win <= width; x += step {
				score := windowScore(saliency, x, y, win)
				if score <= f.config.ScoreThreshold || score <= mean*1.25 {
					continue
				}
				if !found || score > best.Score {
					best = Region{X: x, Y: y, Width: win, Height: win, Score: score}
					found = true
				}
			}
		}
	}

	return best, found
}

func meanScore(saliency [][]float64) float64 {
	var total float64
	count := 0
	for _, row := range saliency {
		for _, v := range row {
			total += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func windowScore(saliency [][]float64, x, y, win int) float64 {
	var total float64
	count := 0
	for ry := y; ry < y+win && ry < len(saliency); ry++ {
		for rx := x; rx < x+win && rx < len(saliency[ry]); rx++ {
			total += saliency[ry][rx]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// DominantColor returns the most frequent quantized color in the image,
// used for the editor's adaptive background fill.
func DominantColor(img image.Image) color.NRGBA {
	bounds := img.Bounds()

	counts := make(map[uint32]int)
	// Sample a grid rather than every pixel; the dominant bucket is stable.
	stepX := maxInt(bounds.Dx()/64, 1)
	stepY := maxInt(bounds.Dy()/64, 1)

	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()

			// Quantize to 16 levels per channel to merge near-identical tones.
			r = (r >> 8) & 0xf0
			g = (g >> 8) & 0xf0
			b = (b >> 8) & 0xf0

			counts[(r<<16)|(g<<8)|b]++
		}
	}

	var bestKey uint32
	bestCount := -1
	for key, count := range counts {
		if count > bestCount || (count == bestCount && key < bestKey) {
			bestKey = key
			bestCount = count
		}
	}
	if bestCount < 0 {
		return color.NRGBA{A: 255}
	}

	return color.NRGBA{
		R: uint8((bestKey >> 16) & 0xff),
		G: uint8((bestKey >> 8) & 0xff),
		B: uint8(bestKey & 0xff),
		A: 255,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
