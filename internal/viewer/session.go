// Package viewer holds the viewport state machine. A Session is either
// Disabled or Enabled against exactly one Surface; only an enabled session
// can render.
package viewer

import (
	"sync"

	"dcmview/internal/errors"
	"dcmview/internal/log"
	"dcmview/pkg/types"
)

// State is the viewport lifecycle state
type State int

const (
	Disabled State = iota
	Enabled
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// Surface is the rendering collaborator a Session drives
type Surface interface {
	// Bind acquires the rendering resources for the surface
	Bind() error
	// Unbind releases whatever Bind acquired
	Unbind() error
	// Draw replaces the surface content with img
	Draw(img *types.DecodedImage) error
}

// Session tracks which surface is bound and what it last displayed
type Session struct {
	mu        sync.Mutex
	state     State
	surface   Surface
	displayed types.ImageID
	hasImage  bool
}

// NewSession returns a disabled session
func NewSession() *Session {
	return &Session{}
}

// Enable binds surface. Enabling the surface that is already bound is a
// no-op; enabling a different one unbinds the current surface first.
func (s *Session) Enable(surface Surface) error {
	if surface == nil {
		return errors.New("cannot enable a nil surface")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Enabled {
		if s.surface == surface {
			return nil
		}
		s.disableLocked()
	}

	if err := surface.Bind(); err != nil {
		return errors.Wrap(err, "binding surface")
	}
	s.surface = surface
	s.state = Enabled
	log.Debug("viewer enabled")
	return nil
}

// Render draws img on the bound surface
func (s *Session) Render(img *types.DecodedImage) error {
	if img == nil {
		return errors.New("cannot render a nil image")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Enabled {
		return errors.NewNotEnabledError()
	}
	if err := s.surface.Draw(img); err != nil {
		return errors.Wrapf(err, "drawing %s", img.ID)
	}
	s.displayed = img.ID
	s.hasImage = true
	return nil
}

// Disable unbinds the surface. Safe to call in any state.
func (s *Session) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disableLocked()
}

func (s *Session) disableLocked() {
	if s.state != Enabled {
		return
	}
	if err := s.surface.Unbind(); err != nil {
		log.LogWithError(err).Warn("unbinding surface")
	}
	s.surface = nil
	s.state = Disabled
	s.displayed = ""
	s.hasImage = false
	log.Debug("viewer disabled")
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Displayed returns the identifier of the image on screen, if any
func (s *Session) Displayed() (types.ImageID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayed, s.hasImage
}
