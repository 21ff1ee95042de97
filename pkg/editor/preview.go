package editor

import (
	"sync"

	"github.com/google/uuid"
)

// previewScheme prefixes every preview URL issued by an editor instance.
const previewScheme = "mem://preview/"

// previewResource is an in-memory blob standing in for a browser object URL.
type previewResource struct {
	data []byte
	mime string
}

// previewStore owns the editor's transient preview blobs. Each entry is a
// scoped resource: it exists from Put until Release (or ReleaseAll on
// close), so preview memory never outlives the editor.
type previewStore struct {
	mu        sync.Mutex
	resources map[string]previewResource
}

func newPreviewStore() *previewStore {
	return &previewStore{resources: make(map[string]previewResource)}
}

// Put registers a blob and returns its mem:// URL.
func (p *previewStore) Put(data []byte, mime string) string {
	url := previewScheme + uuid.NewString()
	p.mu.Lock()
	p.resources[url] = previewResource{data: data, mime: mime}
	p.mu.Unlock()
	return url
}

// Get resolves a URL to its blob. Returns false for unknown or released
// URLs.
func (p *previewStore) Get(url string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.resources[url]
	if !ok {
		return nil, false
	}
	return res.data, true
}

// Release frees one resource. Releasing an unknown URL is a no-op.
func (p *previewStore) Release(url string) {
	p.mu.Lock()
	delete(p.resources, url)
	p.mu.Unlock()
}

// ReleaseAll frees every resource.
func (p *previewStore) ReleaseAll() {
	p.mu.Lock()
	p.resources = make(map[string]previewResource)
	p.mu.Unlock()
}

// Len reports how many resources are currently held.
func (p *previewStore) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}
