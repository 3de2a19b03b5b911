package viewer

import (
	"fmt"
	"testing"

	"dcmview/internal/errors"
	"dcmview/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(id string) *types.DecodedImage {
	return &types.DecodedImage{ID: types.ImageID(id)}
}

func TestRenderBeforeEnable(t *testing.T) {
	s := NewSession()
	assert.Equal(t, Disabled, s.State())

	err := s.Render(frame("dicomfile:0"))
	require.Error(t, err)
	assert.True(t, errors.IsNotEnabled(err))

	_, ok := s.Displayed()
	assert.False(t, ok)
}

func TestEnableIsIdempotent(t *testing.T) {
	s := NewSession()
	r := NewRecorder()

	require.NoError(t, s.Enable(r))
	require.NoError(t, s.Enable(r))

	assert.Equal(t, Enabled, s.State())
	binds, unbinds := r.Binds()
	assert.Equal(t, 1, binds)
	assert.Equal(t, 0, unbinds)
}

func TestDisableIsIdempotent(t *testing.T) {
	s := NewSession()
	s.Disable()
	assert.Equal(t, Disabled, s.State())

	r := NewRecorder()
	require.NoError(t, s.Enable(r))
	s.Disable()
	s.Disable()

	assert.Equal(t, Disabled, s.State())
	assert.False(t, r.Bound())
	_, unbinds := r.Binds()
	assert.Equal(t, 1, unbinds)
}

func TestRenderReplacesDisplayed(t *testing.T) {
	s := NewSession()
	r := NewRecorder()
	require.NoError(t, s.Enable(r))

	require.NoError(t, s.Render(frame("dicomfile:0")))
	require.NoError(t, s.Render(frame("dicomfile:1")))

	id, ok := s.Displayed()
	require.True(t, ok)
	assert.Equal(t, types.ImageID("dicomfile:1"), id)
	assert.Equal(t, []types.ImageID{"dicomfile:0", "dicomfile:1"}, r.Frames())
	assert.Equal(t, Enabled, s.State())
}

func TestReenableAfterDisable(t *testing.T) {
	s := NewSession()
	r := NewRecorder()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Enable(r))
		require.NoError(t, s.Render(frame(fmt.Sprintf("dicomfile:%d", i))))
		s.Disable()
		assert.True(t, errors.IsNotEnabled(s.Render(frame("late"))))
	}
	binds, unbinds := r.Binds()
	assert.Equal(t, 3, binds)
	assert.Equal(t, 3, unbinds)
}

func TestEnableSwitchesSurface(t *testing.T) {
	s := NewSession()
	first, second := NewRecorder(), NewRecorder()

	require.NoError(t, s.Enable(first))
	require.NoError(t, s.Render(frame("dicomfile:0")))
	require.NoError(t, s.Enable(second))

	assert.False(t, first.Bound())
	assert.True(t, second.Bound())
	_, ok := s.Displayed()
	assert.False(t, ok, "a new surface starts blank")
}

func TestEnableBindFailure(t *testing.T) {
	s := NewSession()
	r := NewRecorder()
	r.BindErr = fmt.Errorf("no display")

	err := s.Enable(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")
	assert.Equal(t, Disabled, s.State())
}

func TestNilArguments(t *testing.T) {
	s := NewSession()
	assert.Error(t, s.Enable(nil))
	require.NoError(t, s.Enable(NewRecorder()))
	assert.Error(t, s.Render(nil))
}
