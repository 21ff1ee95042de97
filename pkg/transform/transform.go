package transform

import (
	"math"

	"golang.org/x/image/math/f64"
)

// State holds the user-adjustable crop parameters applied to a source image
// before rendering: zoom factor, rotation around the image center, and a pan
// offset in output pixels.
type State struct {
	Zoom            float64 `json:"zoom"`
	RotationDegrees float64 `json:"rotation_degrees"`
	PanX            float64 `json:"pan_x"`
	PanY            float64 `json:"pan_y"`
}

// Identity returns the neutral state: zoom 1, no rotation, no pan.
func Identity() State {
	return State{Zoom: 1}
}

// IsIdentity reports whether the state equals the neutral state.
func (s State) IsIdentity() bool {
	return s == Identity()
}

// Limits defines the allowed ranges for each State field. Rotation and pan
// are symmetric around zero.
type Limits struct {
	MinZoom     float64 `json:"min_zoom"`
	MaxZoom     float64 `json:"max_zoom"`
	MaxRotation float64 `json:"max_rotation"`
	MaxPan      float64 `json:"max_pan"`
}

// DefaultLimits returns the editor's standard ranges: zoom [1,3],
// rotation [-180,180] degrees, pan [-100,100] pixels per axis.
func DefaultLimits() Limits {
	return Limits{
		MinZoom:     1.0,
		MaxZoom:     3.0,
		MaxRotation: 180,
		MaxPan:      100,
	}
}

// Clamp returns a copy of s with every field forced into the given limits.
// NaN values collapse to the neutral value for their field.
func (s State) Clamp(l Limits) State {
	out := s
	out.Zoom = clamp(s.Zoom, l.MinZoom, l.MaxZoom)
	out.RotationDegrees = clamp(s.RotationDegrees, -l.MaxRotation, l.MaxRotation)
	out.PanX = clamp(s.PanX, -l.MaxPan, l.MaxPan)
	out.PanY = clamp(s.PanY, -l.MaxPan, l.MaxPan)
	if math.IsNaN(out.Zoom) {
		out.Zoom = l.MinZoom
	}
	if math.IsNaN(out.RotationDegrees) {
		out.RotationDegrees = 0
	}
	if math.IsNaN(out.PanX) {
		out.PanX = 0
	}
	if math.IsNaN(out.PanY) {
		out.PanY = 0
	}
	return out
}

// Matrix builds the source-to-destination affine map for rendering a
// srcW x srcH bitmap into an outSize square. The chain order is fixed:
// translate the source center to the origin, rotate, scale, translate to the
// output center, then apply the pan offset. Because rotation happens while
// the source center sits at the origin, it always pivots around the image
// center regardless of the current pan or zoom. Reordering the chain changes
// the visual result and breaks preview/export parity.
//
// The scale folds zoom together with the fit of the largest centered square
// inscribed in the source, so the identity state maps that square exactly
// onto the output raster.
func (s State) Matrix(srcW, srcH, outSize int) f64.Aff3 {
	side := math.Min(float64(srcW), float64(srcH))
	k := s.Zoom * float64(outSize) / side

	sin, cos := math.Sincos(s.RotationDegrees * math.Pi / 180)
	a00 := k * cos
	a01 := -k * sin
	a10 := k * sin
	a11 := k * cos

	cx := float64(srcW) / 2
	cy := float64(srcH) / 2
	half := float64(outSize) / 2

	tx := half + s.PanX - (a00*cx + a01*cy)
	ty := half + s.PanY - (a10*cx + a11*cy)

	return f64.Aff3{a00, a01, tx, a10, a11, ty}
}

// Apply maps a point in source coordinates through the same matrix that
// Matrix produces.
func (s State) Apply(srcW, srcH, outSize int, x, y float64) (float64, float64) {
	m := s.Matrix(srcW, srcH, outSize)
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
