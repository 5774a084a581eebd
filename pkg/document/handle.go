package document

import (
	"context"
	"sync"
)

// Handle is the process-wide, lazily initialized access point to the shared
// document. With an empty path the document lives only in memory.
type Handle struct {
	path string

	mu  sync.Mutex
	doc *Document
}

// NewHandle returns a handle backed by the SQLite file at path.
func NewHandle(path string) *Handle {
	return &Handle{path: path}
}

// NewMemoryHandle returns a handle around an existing document. Save is a
// no-op for memory handles.
func NewMemoryHandle(d *Document) *Handle {
	return &Handle{doc: d}
}

// Path returns the backing file path, empty for memory handles.
func (h *Handle) Path() string {
	return h.path
}

// Get returns the document, loading it on first use.
func (h *Handle) Get(ctx context.Context) (*Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.doc != nil {
		return h.doc, nil
	}
	if h.path == "" {
		h.doc = New()
		return h.doc, nil
	}
	d, err := Open(ctx, h.path)
	if err != nil {
		return nil, err
	}
	h.doc = d
	return d, nil
}

// Loaded reports whether the document has been initialized.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc != nil
}

// Save persists the document if it was loaded and the handle has a path.
func (h *Handle) Save(ctx context.Context) error {
	h.mu.Lock()
	d := h.doc
	h.mu.Unlock()
	if d == nil || h.path == "" {
		return nil
	}
	return d.Save(ctx, h.path)
}
