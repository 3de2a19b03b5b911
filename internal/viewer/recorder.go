package viewer

import (
	"sync"

	"dcmview/pkg/types"
)

// Recorder is a headless Surface that keeps every drawn image.
// The inspect command and tests render through it.
type Recorder struct {
	mu      sync.Mutex
	bound   bool
	binds   int
	unbinds int
	frames  []*types.DecodedImage

	// BindErr, when set, is returned by Bind
	BindErr error
	// OnDraw is called after each draw while the surface lock is released
	OnDraw func(img *types.DecodedImage)
}

// NewRecorder returns an unbound Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Bind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.BindErr != nil {
		return r.BindErr
	}
	r.bound = true
	r.binds++
	return nil
}

func (r *Recorder) Unbind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = false
	r.unbinds++
	return nil
}

func (r *Recorder) Draw(img *types.DecodedImage) error {
	r.mu.Lock()
	r.frames = append(r.frames, img)
	cb := r.OnDraw
	r.mu.Unlock()

	if cb != nil {
		cb(img)
	}
	return nil
}

// Bound reports whether the surface is currently bound
func (r *Recorder) Bound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

// Binds returns how many times Bind and Unbind succeeded
func (r *Recorder) Binds() (binds, unbinds int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.binds, r.unbinds
}

// Frames returns the identifiers drawn so far, oldest first
func (r *Recorder) Frames() []types.ImageID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]types.ImageID, len(r.frames))
	for i, f := range r.frames {
		ids[i] = f.ID
	}
	return ids
}

// Last returns the most recently drawn image
func (r *Recorder) Last() (*types.DecodedImage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil, false
	}
	return r.frames[len(r.frames)-1], true
}
