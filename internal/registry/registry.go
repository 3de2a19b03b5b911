// Package registry maps caller-provided file handles to stable image
// identifiers. Handles are tracked by pointer identity: registering two
// distinct handles over identical bytes yields two identifiers.
package registry

import (
	"fmt"
	"sync"

	"dcmview/pkg/types"
)

// DefaultScheme prefixes every minted identifier
const DefaultScheme = "dicomfile"

// Registry is a bijection between registered handles and identifiers.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	scheme   string
	next     int
	byHandle map[*types.FileHandle]types.ImageID
	byID     map[types.ImageID]*types.FileHandle
}

// New creates an empty registry minting "dicomfile:<n>" identifiers
func New() *Registry {
	return NewWithScheme(DefaultScheme)
}

// NewWithScheme creates an empty registry minting "<scheme>:<n>" identifiers
func NewWithScheme(scheme string) *Registry {
	return &Registry{
		scheme:   scheme,
		byHandle: make(map[*types.FileHandle]types.ImageID),
		byID:     make(map[types.ImageID]*types.FileHandle),
	}
}

// Add registers h and returns its identifier. Adding a handle that is
// already registered returns the identifier issued for it earlier.
func (r *Registry) Add(h *types.FileHandle) types.ImageID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byHandle[h]; ok {
		return id
	}
	id := types.ImageID(fmt.Sprintf("%s:%d", r.scheme, r.next))
	r.next++
	r.byHandle[h] = id
	r.byID[id] = h
	return id
}

// Get returns the identifier registered for h
func (r *Registry) Get(h *types.FileHandle) (types.ImageID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHandle[h]
	return id, ok
}

// Lookup returns the handle registered under id
func (r *Registry) Lookup(id types.ImageID) (*types.FileHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byID[id]
	return h, ok
}

// Remove unregisters id. Unknown identifiers are ignored.
func (r *Registry) Remove(id types.ImageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byHandle, h)
}

// Len returns the number of registered handles
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
