package registry

import (
	"fmt"
	"sync"
	"testing"

	"dcmview/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndGet(t *testing.T) {
	r := New()
	h := types.NewMemoryHandle("a.dcm", []byte("abc"))

	id := r.Add(h)
	assert.Equal(t, types.ImageID("dicomfile:0"), id)

	got, ok := r.Get(h)
	require.True(t, ok)
	assert.Equal(t, id, got)

	back, ok := r.Lookup(id)
	require.True(t, ok)
	assert.Same(t, h, back)
}

func TestAddIsIdempotentPerHandle(t *testing.T) {
	r := New()
	h := types.NewMemoryHandle("a.dcm", []byte("abc"))

	assert.Equal(t, r.Add(h), r.Add(h))
	assert.Equal(t, 1, r.Len())
}

func TestIdentityNotContent(t *testing.T) {
	r := New()
	data := []byte("same bytes")
	a := types.NewMemoryHandle("a.dcm", data)
	b := types.NewMemoryHandle("a.dcm", data)

	idA := r.Add(a)
	idB := r.Add(b)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, r.Len())
}

func TestRemove(t *testing.T) {
	r := New()
	h := types.NewMemoryHandle("a.dcm", nil)
	id := r.Add(h)

	r.Remove(id)
	_, ok := r.Get(h)
	assert.False(t, ok)
	_, ok = r.Lookup(id)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	// Unknown ids are a no-op
	r.Remove(id)
	r.Remove("dicomfile:99")

	// Re-adding mints a fresh identifier
	again := r.Add(h)
	assert.NotEqual(t, id, again)
}

func TestCustomScheme(t *testing.T) {
	r := NewWithScheme("mem")
	assert.Equal(t, types.ImageID("mem:0"), r.Add(types.NewMemoryHandle("x", nil)))
}

func TestConcurrentAdd(t *testing.T) {
	r := New()
	handles := make([]*types.FileHandle, 64)
	for i := range handles {
		handles[i] = types.NewMemoryHandle(fmt.Sprintf("%d.dcm", i), nil)
	}

	var wg sync.WaitGroup
	ids := make([]types.ImageID, len(handles))
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h *types.FileHandle) {
			defer wg.Done()
			ids[i] = r.Add(h)
		}(i, h)
	}
	wg.Wait()

	seen := make(map[types.ImageID]bool)
	for i, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		got, ok := r.Get(handles[i])
		require.True(t, ok)
		assert.Equal(t, id, got)
	}
}
