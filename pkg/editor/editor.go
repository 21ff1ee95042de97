// Package editor implements the avatar crop editor component: a small state
// machine that owns one source image and one transform state at a time,
// renders WYSIWYG previews, and hands the exported avatar to an upload
// collaborator.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/castmatch/avatar-crop/pkg/export"
	"github.com/castmatch/avatar-crop/pkg/source"
	"github.com/castmatch/avatar-crop/pkg/transform"
	"github.com/castmatch/avatar-crop/pkg/vision"
)

// StateID identifies the editor's lifecycle state.
type StateID int

const (
	StateEmpty StateID = iota
	StateSelecting
	StateEditing
	StateExporting
)

func (s StateID) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateSelecting:
		return "selecting"
	case StateEditing:
		return "editing"
	case StateExporting:
		return "exporting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidState is wrapped by every transition attempted from the wrong
// state, including a second Export while one is in flight.
var ErrInvalidState = errors.New("editor: invalid state for operation")

// UploadError reports a rejected upload callback. The editor stays in
// Editing with the source and transform intact so the user can retry the
// export without re-selecting or re-cropping.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("editor: upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// UploadFunc receives the finished avatar and a local preview URL. It is
// invoked exactly once per successful export and awaited; a non-nil error
// keeps the editor in Editing for retry.
type UploadFunc func(ctx context.Context, out export.Output, previewURL string) error

// Result is the explicit outcome of a successful export: the output that was
// handed to the upload collaborator and the preview URL shown to the user.
type Result struct {
	Output     export.Output
	PreviewURL string
}

// Options configures an Editor instance.
type Options struct {
	// CurrentImageURL optionally points at the avatar being replaced; the
	// editor only carries it for display, it never fetches it.
	CurrentImageURL string
	// DisplayName seeds the initials placeholder when no image is present.
	DisplayName string
	// OnUpload receives the exported avatar. Required.
	OnUpload UploadFunc

	// Loader validates and decodes selected files. Defaults to source.New().
	Loader *source.Loader
	// ExportConfig controls output size, format and quality.
	ExportConfig export.Config
	// Limits bound the transform controls. Defaults to DefaultLimits.
	Limits transform.Limits
	// Framer enables AutoFrame suggestions. Optional.
	Framer *vision.Framer
	// AdaptiveBackground fills rotated-out corners with the photo's dominant
	// color instead of the fixed background.
	AdaptiveBackground bool
}

// Editor is a single-session avatar crop component. Exactly one source image
// and one transform state are live at a time; each instance owns its state
// exclusively. Methods are safe to call from multiple goroutines, but the
// component is designed for a single interactive owner: a second Export
// during an in-flight one is rejected, not queued.
type Editor struct {
	opts     Options
	loader   *source.Loader
	limits   transform.Limits
	previews *previewStore

	mu       sync.Mutex
	state    StateID
	exporter *export.Exporter
	src      *source.Image
	ts       transform.State
	preview  string
}

// New creates an Editor in the Empty state. OnUpload is required.
func New(opts Options) (*Editor, error) {
	if opts.OnUpload == nil {
		return nil, fmt.Errorf("editor: OnUpload callback is required")
	}

	loader := opts.Loader
	if loader == nil {
		loader = source.New()
	}
	limits := opts.Limits
	if limits == (transform.Limits{}) {
		limits = transform.DefaultLimits()
	}
	return &Editor{
		opts:     opts,
		loader:   loader,
		limits:   limits,
		previews: newPreviewStore(),
		state:    StateEmpty,
		exporter: export.NewWithConfig(opts.ExportConfig, nil),
		ts:       transform.Identity(),
	}, nil
}

// State returns the current lifecycle state.
func (e *Editor) State() StateID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Transform returns the current transform parameters.
func (e *Editor) Transform() transform.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ts
}

// Source returns the loaded source image, or nil outside Editing.
func (e *Editor) Source() *source.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Select validates and decodes a user-chosen file and enters Editing. On
// failure the editor returns to Empty with nothing retained and surfaces the
// validation error. The transform always resets to identity, even when a
// previous session left non-identity values behind.
func (e *Editor) Select(name, mime string, data []byte) error {
	e.mu.Lock()
	if e.state != StateEmpty && e.state != StateEditing {
		e.mu.Unlock()
		return fmt.Errorf("%w: select from %s", ErrInvalidState, e.state)
	}
	e.state = StateSelecting
	e.mu.Unlock()

	img, err := e.loader.Load(name, mime, data)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.discardLocked()
		return err
	}

	e.src = img
	e.ts = transform.Identity()
	e.releasePreviewLocked()
	e.state = StateEditing
	e.exporter = e.buildExporterLocked()
	return nil
}

// buildExporterLocked creates the exporter for the current source, resolving
// the adaptive background against the loaded photo.
func (e *Editor) buildExporterLocked() *export.Exporter {
	cfg := e.opts.ExportConfig
	if e.opts.AdaptiveBackground && e.src != nil {
		cfg.Background = vision.DominantColor(e.src.Bitmap())
	}
	return export.NewWithConfig(cfg, nil)
}

// SetZoom updates the zoom factor, clamped to the editor limits. Only valid
// in Editing.
func (e *Editor) SetZoom(zoom float64) error {
	return e.adjust(func(ts *transform.State) { ts.Zoom = zoom })
}

// SetRotation updates the rotation in degrees, clamped to the editor limits.
func (e *Editor) SetRotation(degrees float64) error {
	return e.adjust(func(ts *transform.State) { ts.RotationDegrees = degrees })
}

// SetPan updates both pan offsets, clamped to the editor limits.
func (e *Editor) SetPan(x, y float64) error {
	return e.adjust(func(ts *transform.State) {
		ts.PanX = x
		ts.PanY = y
	})
}

func (e *Editor) adjust(mutate func(*transform.State)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return fmt.Errorf("%w: adjust from %s", ErrInvalidState, e.state)
	}
	mutate(&e.ts)
	e.ts = e.ts.Clamp(e.limits)
	return nil
}

// AutoFrame replaces the transform with the framer's suggestion for the
// loaded photo. It is a no-op identity reset when no framer is configured.
func (e *Editor) AutoFrame() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return fmt.Errorf("%w: autoframe from %s", ErrInvalidState, e.state)
	}
	if e.opts.Framer == nil {
		e.ts = transform.Identity()
		return nil
	}
	e.ts = e.opts.Framer.Suggest(e.src.Bitmap(), e.exporter.Size(), e.limits)
	return nil
}

// Cancel discards the source image and transform and returns to Empty.
// Nothing has been persisted at this point, so there are no side effects to
// undo. Cancel during an in-flight export is not supported.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidState, e.state)
	}
	e.discardLocked()
	return nil
}

// Export bakes the current transform into the final avatar, hands it to the
// OnUpload collaborator exactly once, and returns to Empty. A render failure
// or a rejected upload returns the editor to Editing with the source and
// transform intact, so the user retries without losing adjustments.
// Concurrent Export calls are rejected. Cancellation during Exporting is not
// supported: the export either completes or fails.
func (e *Editor) Export(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.state != StateEditing {
		st := e.state
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: export from %s", ErrInvalidState, st)
	}
	e.state = StateExporting
	src, ts, exp := e.src, e.ts, e.exporter
	e.mu.Unlock()

	out, err := exp.Render(src, ts)
	if err != nil {
		e.backToEditing()
		return nil, err
	}

	previewURL := e.previews.Put(out.Data, out.MIME)

	if err := e.opts.OnUpload(ctx, *out, previewURL); err != nil {
		e.previews.Release(previewURL)
		e.backToEditing()
		return nil, &UploadError{Err: err}
	}

	e.mu.Lock()
	e.discardLocked()
	// The uploaded avatar's preview stays resolvable for the UI until the
	// next session replaces it or the editor closes.
	e.preview = previewURL
	e.mu.Unlock()

	return &Result{Output: *out, PreviewURL: previewURL}, nil
}

func (e *Editor) backToEditing() {
	e.mu.Lock()
	e.state = StateEditing
	e.mu.Unlock()
}

// Preview renders the current transform through the exact pipeline and size
// Export uses and registers the encoded raster under a scoped mem:// URL.
// The previous preview resource is released when a new one replaces it.
func (e *Editor) Preview() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditing {
		return "", fmt.Errorf("%w: preview from %s", ErrInvalidState, e.state)
	}

	out, err := e.exporter.Render(e.src, e.ts)
	if err != nil {
		return "", err
	}

	e.releasePreviewLocked()
	e.preview = e.previews.Put(out.Data, out.MIME)
	return e.preview, nil
}

// PreviewData resolves a mem:// preview URL issued by this editor. The
// second return is false once the resource has been released.
func (e *Editor) PreviewData(url string) ([]byte, bool) {
	return e.previews.Get(url)
}

// Close releases every preview resource and discards in-progress state.
// Safe to call in any state; the editor is unusable afterward only in the
// sense that its previews are gone.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.discardLocked()
	e.previews.ReleaseAll()
}

// discardLocked drops the working state and returns to Empty. Callers hold
// e.mu.
func (e *Editor) discardLocked() {
	e.src = nil
	e.ts = transform.Identity()
	e.releasePreviewLocked()
	e.state = StateEmpty
}

func (e *Editor) releasePreviewLocked() {
	if e.preview != "" {
		e.previews.Release(e.preview)
		e.preview = ""
	}
}
