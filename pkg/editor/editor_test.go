package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castmatch/avatar-crop/pkg/export"
	"github.com/castmatch/avatar-crop/pkg/raster"
	"github.com/castmatch/avatar-crop/pkg/source"
	"github.com/castmatch/avatar-crop/pkg/transform"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 200, 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// recordingUpload captures upload invocations and can be told to fail.
type recordingUpload struct {
	calls   int
	lastOut export.Output
	lastURL string
	fail    error
}

func (r *recordingUpload) fn(ctx context.Context, out export.Output, previewURL string) error {
	r.calls++
	r.lastOut = out
	r.lastURL = previewURL
	return r.fail
}

func newTestEditor(t *testing.T, up *recordingUpload) *Editor {
	t.Helper()
	e, err := New(Options{DisplayName: "Priya Nair", OnUpload: up.fn})
	require.NoError(t, err)
	return e
}

func TestNewRequiresUploadCallback(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestLifecycleHappyPath(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	require.Equal(t, StateEmpty, e.State())

	require.NoError(t, e.Select("headshot.png", "image/png", encodePNG(t, 400, 300)))
	require.Equal(t, StateEditing, e.State())
	require.True(t, e.Transform().IsIdentity())

	require.NoError(t, e.SetZoom(2))
	require.NoError(t, e.SetRotation(15))
	require.NoError(t, e.SetPan(20, -10))
	require.Equal(t, transform.State{Zoom: 2, RotationDegrees: 15, PanX: 20, PanY: -10}, e.Transform())

	res, err := e.Export(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, up.calls, "upload callback must be invoked exactly once")
	require.Equal(t, res.PreviewURL, up.lastURL)
	require.Equal(t, "headshot_avatar.jpg", res.Output.Filename)
	require.Equal(t, export.DefaultSize, res.Output.Width)

	decoded, err := jpeg.Decode(bytes.NewReader(res.Output.Data))
	require.NoError(t, err)
	require.Equal(t, export.DefaultSize, decoded.Bounds().Dx())

	// Component returns to Empty after a successful handoff.
	require.Equal(t, StateEmpty, e.State())
	require.Nil(t, e.Source())

	// The handed-off preview remains resolvable until the next session.
	data, ok := e.PreviewData(res.PreviewURL)
	require.True(t, ok)
	require.Equal(t, res.Output.Data, data)
}

func TestSelectValidationFailureReturnsToEmpty(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	err := e.Select("report.pdf", "application/pdf", []byte("%PDF-1.4"))

	var verr *source.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, source.ReasonUnsupportedType, verr.Reason)
	require.Equal(t, StateEmpty, e.State())
	require.Nil(t, e.Source())
}

func TestSelectDecodeFailureReturnsToEmpty(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	err := e.Select("broken.png", "image/png", []byte("not an image"))

	var verr *source.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, source.ReasonDecodeFailed, verr.Reason)
	require.Equal(t, StateEmpty, e.State())
}

func TestCancelThenReselectResetsTransform(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	require.NoError(t, e.Select("one.png", "image/png", encodePNG(t, 300, 300)))
	require.NoError(t, e.SetZoom(2.5))
	require.NoError(t, e.SetRotation(-90))
	require.NoError(t, e.SetPan(40, 40))

	require.NoError(t, e.Cancel())
	require.Equal(t, StateEmpty, e.State())

	require.NoError(t, e.Select("two.png", "image/png", encodePNG(t, 200, 200)))
	require.True(t, e.Transform().IsIdentity(), "a fresh selection must start from identity")
}

func TestAdjustClampsToLimits(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	require.NoError(t, e.Select("a.png", "image/png", encodePNG(t, 100, 100)))

	require.NoError(t, e.SetZoom(99))
	require.Equal(t, 3.0, e.Transform().Zoom)

	require.NoError(t, e.SetRotation(-999))
	require.Equal(t, -180.0, e.Transform().RotationDegrees)

	require.NoError(t, e.SetPan(500, -500))
	require.Equal(t, 100.0, e.Transform().PanX)
	require.Equal(t, -100.0, e.Transform().PanY)
}

func TestAdjustOutsideEditingFails(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	require.ErrorIs(t, e.SetZoom(2), ErrInvalidState)
	require.ErrorIs(t, e.Cancel(), ErrInvalidState)
	_, err := e.Export(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = e.Preview()
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestUploadFailureKeepsEditingStateIntact(t *testing.T) {
	up := &recordingUpload{fail: errors.New("network down")}
	e := newTestEditor(t, up)
	defer e.Close()

	require.NoError(t, e.Select("retry.png", "image/png", encodePNG(t, 300, 300)))
	require.NoError(t, e.SetZoom(1.8))
	require.NoError(t, e.SetRotation(30))
	want := e.Transform()

	_, err := e.Export(context.Background())

	var uerr *UploadError
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, StateEditing, e.State())
	require.NotNil(t, e.Source(), "source must survive an upload failure")
	require.Equal(t, want, e.Transform(), "crop adjustments must survive an upload failure")

	// Retry with unchanged parameters succeeds once the collaborator
	// recovers.
	up.fail = nil
	res, err := e.Export(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, up.calls)
	require.NotNil(t, res)
	require.Equal(t, StateEmpty, e.State())
}

func TestRenderFailureKeepsEditingStateIntact(t *testing.T) {
	up := &recordingUpload{}
	e, err := New(Options{
		OnUpload:     up.fn,
		ExportConfig: export.Config{Size: raster.MaxOutputSide + 1},
	})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Select("big.png", "image/png", encodePNG(t, 100, 100)))
	require.NoError(t, e.SetZoom(2))

	_, err = e.Export(context.Background())

	var rerr *export.RenderError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, 0, up.calls, "the callback must never be invoked when rasterization fails")
	require.Equal(t, StateEditing, e.State())
	require.Equal(t, 2.0, e.Transform().Zoom)
}

func TestExportDeterministicAcrossRetries(t *testing.T) {
	up := &recordingUpload{fail: errors.New("flaky")}
	e := newTestEditor(t, up)
	defer e.Close()

	require.NoError(t, e.Select("same.png", "image/png", encodePNG(t, 500, 400)))
	require.NoError(t, e.SetZoom(2))
	require.NoError(t, e.SetRotation(15))
	require.NoError(t, e.SetPan(20, -10))

	_, err := e.Export(context.Background())
	require.Error(t, err)
	first := up.lastOut.Data

	up.fail = nil
	res, err := e.Export(context.Background())
	require.NoError(t, err)

	require.True(t, bytes.Equal(first, res.Output.Data), "identical source and transform must export byte-identical data")
}

func TestPreviewMatchesExport(t *testing.T) {
	// WYSIWYG: the preview blob and the export blob come from the identical
	// pipeline, so they are byte-identical.
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	require.NoError(t, e.Select("wysiwyg.png", "image/png", encodePNG(t, 640, 480)))
	require.NoError(t, e.SetRotation(45))

	url, err := e.Preview()
	require.NoError(t, err)
	previewData, ok := e.PreviewData(url)
	require.True(t, ok)

	res, err := e.Export(context.Background())
	require.NoError(t, err)

	require.True(t, bytes.Equal(previewData, res.Output.Data))
}

func TestPreviewReplacementReleasesPrevious(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	require.NoError(t, e.Select("p.png", "image/png", encodePNG(t, 300, 300)))

	first, err := e.Preview()
	require.NoError(t, err)
	require.NoError(t, e.SetZoom(2))
	second, err := e.Preview()
	require.NoError(t, err)

	_, ok := e.PreviewData(first)
	require.False(t, ok, "replaced preview resource must be released")
	_, ok = e.PreviewData(second)
	require.True(t, ok)
	require.Equal(t, 1, e.previews.Len())
}

func TestCloseReleasesAllResources(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)

	require.NoError(t, e.Select("c.png", "image/png", encodePNG(t, 300, 300)))
	url, err := e.Preview()
	require.NoError(t, err)

	e.Close()

	_, ok := e.PreviewData(url)
	require.False(t, ok)
	require.Equal(t, 0, e.previews.Len())
	require.Equal(t, StateEmpty, e.State())
}

func TestAutoFrameWithoutFramerResetsToIdentity(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	require.NoError(t, e.Select("af.png", "image/png", encodePNG(t, 300, 300)))
	require.NoError(t, e.SetZoom(2))
	require.NoError(t, e.AutoFrame())
	require.True(t, e.Transform().IsIdentity())
}

func TestPlaceholderDeterministic(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	a := e.Placeholder()
	b := e.Placeholder()

	require.Equal(t, export.DefaultSize, a.Bounds().Dx())
	require.Equal(t, export.DefaultSize, a.Bounds().Dy())
	require.True(t, bytes.Equal(a.Pix, b.Pix), "the placeholder must be deterministic for a name")

	// A different name renders different initials.
	other, err := New(Options{DisplayName: "Arjun Mehta", OnUpload: up.fn})
	require.NoError(t, err)
	defer other.Close()
	require.False(t, bytes.Equal(a.Pix, other.Placeholder().Pix))
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Priya Nair", "PN"},
		{"madhuri", "M"},
		{"Aman Kumar Gupta", "AG"},
		{"  ", "?"},
		{"", "?"},
	}

	for _, tt := range tests {
		if got := Initials(tt.name); got != tt.want {
			t.Errorf("Initials(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state StateID
		want  string
	}{
		{StateEmpty, "empty"},
		{StateSelecting, "selecting"},
		{StateEditing, "editing"},
		{StateExporting, "exporting"},
		{StateID(42), "state(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestSelectReplacesCurrentImage(t *testing.T) {
	up := &recordingUpload{}
	e := newTestEditor(t, up)
	defer e.Close()

	require.NoError(t, e.Select("old.png", "image/png", encodePNG(t, 300, 300)))
	require.NoError(t, e.SetZoom(3))
	url, err := e.Preview()
	require.NoError(t, err)

	require.NoError(t, e.Select("new.png", "image/png", encodePNG(t, 400, 400)))
	require.True(t, e.Transform().IsIdentity())
	require.Equal(t, "new.png", e.Source().Name)

	_, ok := e.PreviewData(url)
	require.False(t, ok, "replacing the image must release the old preview")
}
