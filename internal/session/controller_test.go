package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"dcmview/internal/config"
	"dcmview/internal/errors"
	"dcmview/internal/viewer"
	"dcmview/pkg/testutils"
	"dcmview/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder returns a 64 KiB image per id unless told to fail or block
type fakeDecoder struct {
	mu    sync.Mutex
	gates map[types.ImageID]chan struct{}
	fail  map[types.ImageID]error
	calls map[types.ImageID]int
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{
		gates: make(map[types.ImageID]chan struct{}),
		fail:  make(map[types.ImageID]error),
		calls: make(map[types.ImageID]int),
	}
}

func (f *fakeDecoder) Decode(ctx context.Context, id types.ImageID) (*types.DecodedImage, error) {
	f.mu.Lock()
	gate := f.gates[id]
	err := f.fail[id]
	f.calls[id]++
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &types.DecodedImage{ID: id, Name: string(id), SizeBytes: 64 * 1024}, nil
}

func (f *fakeDecoder) block(id types.ImageID) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[id] = gate
	return gate
}

func (f *fakeDecoder) failWith(id types.ImageID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, id)
		return
	}
	f.fail[id] = err
}

func (f *fakeDecoder) callsFor(id types.ImageID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

type fixture struct {
	s       *Session
	decoder *fakeDecoder
	surface *viewer.Recorder
	events  *eventLog
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.NewTestConfig()
	for _, m := range mutate {
		m(cfg)
	}
	f := &fixture{
		decoder: newFakeDecoder(),
		surface: viewer.NewRecorder(),
		events:  &eventLog{},
	}
	f.s = New(cfg, f.surface, WithDecoder(f.decoder), WithListener(f.events.listen))
	t.Cleanup(f.s.Close)
	return f
}

func handles(names ...string) []*types.FileHandle {
	out := make([]*types.FileHandle, len(names))
	for i, n := range names {
		out[i] = types.NewMemoryHandle(n, nil)
	}
	return out
}

func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	n := f.s.Len()
	cur, ok := f.s.Current()
	if n == 0 {
		assert.False(t, ok)
		assert.Equal(t, viewer.Disabled, f.s.Viewer.State())
		return
	}
	require.True(t, ok)
	assert.GreaterOrEqual(t, cur, 0)
	assert.Less(t, cur, n)
	assert.Equal(t, viewer.Enabled, f.s.Viewer.State())
}

func (f *fixture) displayed(t *testing.T) types.ImageID {
	t.Helper()
	id, ok := f.s.Viewer.Displayed()
	require.True(t, ok, "nothing displayed")
	return id
}

func TestAddFilesDisplaysFirst(t *testing.T) {
	f := newFixture(t)

	ids, err := f.s.AddFiles(handles("a.dcm", "b.dcm", "c.dcm"))
	require.NoError(t, err)
	f.s.Wait()

	assert.Equal(t, []types.ImageID{"dicomfile:0", "dicomfile:1", "dicomfile:2"}, ids)
	items := f.s.Items()
	require.Len(t, items, 3)
	for i, it := range items {
		assert.Equal(t, ids[i], it.ID)
	}

	cur, ok := f.s.Current()
	require.True(t, ok)
	assert.Equal(t, 0, cur)
	assert.Equal(t, []types.ImageID{"dicomfile:0"}, f.surface.Frames())
	assert.Equal(t, types.ImageID("dicomfile:0"), f.displayed(t))

	pinned, ok := f.s.Cache.Pinned()
	require.True(t, ok)
	assert.Equal(t, types.ImageID("dicomfile:0"), pinned)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, Displayed, events[0].Kind)
	assert.Equal(t, 0, events[0].Index)
}

func TestAddFilesToNonEmptyListKeepsSelection(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.AddFiles(handles("a.dcm", "b.dcm"))
	require.NoError(t, err)
	require.NoError(t, f.s.Select(1))
	f.s.Wait()

	ids, err := f.s.AddFiles(handles("c.dcm"))
	require.NoError(t, err)
	f.s.Wait()

	assert.Equal(t, []types.ImageID{"dicomfile:2"}, ids)
	cur, _ := f.s.Current()
	assert.Equal(t, 1, cur)
	assert.Equal(t, types.ImageID("dicomfile:1"), f.displayed(t))
	assert.Equal(t, 0, f.decoder.callsFor("dicomfile:2"), "appending does not decode")
}

func TestAddFilesEdgeCases(t *testing.T) {
	f := newFixture(t)

	ids, err := f.s.AddFiles(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, viewer.Disabled, f.s.Viewer.State())

	_, err = f.s.AddFiles([]*types.FileHandle{nil})
	assert.Error(t, err)
	assert.Equal(t, 0, f.s.Len())
}

func TestAddFilesSameHandleTwice(t *testing.T) {
	f := newFixture(t)
	h := types.NewMemoryHandle("a.dcm", nil)

	ids, err := f.s.AddFiles([]*types.FileHandle{h, h})
	require.NoError(t, err)
	f.s.Wait()
	assert.Equal(t, ids[0], ids[1])

	require.NoError(t, f.s.Delete(0))
	f.s.Wait()
	_, ok := f.s.Registry.Lookup(ids[0])
	assert.True(t, ok, "the remaining item still owns the identifier")
}

func TestAddFilesBindFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.surface.BindErr = fmt.Errorf("no display")

	hs := handles("a.dcm")
	_, err := f.s.AddFiles(hs)
	require.Error(t, err)

	assert.Equal(t, 0, f.s.Len())
	_, ok := f.s.Registry.Get(hs[0])
	assert.False(t, ok)
	f.assertInvariants(t)
}

func TestSelect(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.AddFiles(handles("a.dcm", "b.dcm", "c.dcm"))
	require.NoError(t, err)
	f.s.Wait()

	require.NoError(t, f.s.Select(2))
	f.s.Wait()
	assert.Equal(t, types.ImageID("dicomfile:2"), f.displayed(t))

	for _, bad := range []int{-1, 3, 100} {
		err := f.s.Select(bad)
		require.Error(t, err, "index %d", bad)
		assert.True(t, errors.IsIndexOutOfRange(err))
	}
	cur, _ := f.s.Current()
	assert.Equal(t, 2, cur, "invalid select leaves the selection alone")
}

func TestSelectThenDeleteScenario(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.AddFiles(handles("a.dcm", "b.dcm", "c.dcm"))
	require.NoError(t, err)
	require.NoError(t, f.s.Select(2))
	require.NoError(t, f.s.Delete(0))
	f.s.Wait()

	assert.Equal(t, 2, f.s.Len())
	cur, _ := f.s.Current()
	assert.Equal(t, 1, cur)
	assert.Equal(t, types.ImageID("dicomfile:2"), f.s.Items()[cur].ID)
	assert.Equal(t, types.ImageID("dicomfile:2"), f.displayed(t))
	f.assertInvariants(t)
}

func TestDeleteIndexRules(t *testing.T) {
	tests := []struct {
		name      string
		selectIdx int
		deleteIdx int
		wantIdx   int
		wantID    types.ImageID
	}{
		{"delete before current", 2, 1, 1, "dicomfile:2"},
		{"delete current moves back", 2, 2, 1, "dicomfile:1"},
		{"delete current at head stays at head", 0, 0, 0, "dicomfile:1"},
		{"delete after current", 0, 3, 0, "dicomfile:0"},
		{"delete last while on it", 3, 3, 2, "dicomfile:2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.s.AddFiles(handles("a", "b", "c", "d"))
			require.NoError(t, err)
			require.NoError(t, f.s.Select(tt.selectIdx))
			require.NoError(t, f.s.Delete(tt.deleteIdx))
			f.s.Wait()

			cur, ok := f.s.Current()
			require.True(t, ok)
			assert.Equal(t, tt.wantIdx, cur)
			assert.Equal(t, tt.wantID, f.displayed(t))
			f.assertInvariants(t)
		})
	}
}

func TestDeleteReleasesIdentifierAndCacheEntry(t *testing.T) {
	f := newFixture(t)
	hs := handles("a.dcm", "b.dcm")
	ids, err := f.s.AddFiles(hs)
	require.NoError(t, err)
	require.NoError(t, f.s.Select(1))
	f.s.Wait()
	require.True(t, f.s.Cache.Contains(ids[0]))

	require.NoError(t, f.s.Delete(0))
	f.s.Wait()

	assert.False(t, f.s.Cache.Contains(ids[0]))
	_, ok := f.s.Registry.Lookup(ids[0])
	assert.False(t, ok)
	_, ok = f.s.Registry.Get(hs[0])
	assert.False(t, ok)

	err = f.s.Delete(5)
	assert.True(t, errors.IsIndexOutOfRange(err))
	assert.Equal(t, 1, f.s.Len())
}

func TestDeleteDuringDecodeLeavesNoCacheEntry(t *testing.T) {
	f := newFixture(t)
	gate := f.decoder.block("dicomfile:0")
	ids, err := f.s.AddFiles(handles("a.dcm", "b.dcm"))
	require.NoError(t, err)
	require.Equal(t, types.ImageID("dicomfile:0"), ids[0])

	require.NoError(t, f.s.Delete(0))
	close(gate)
	f.s.Wait()

	assert.False(t, f.s.Cache.Contains(ids[0]))
	assert.True(t, f.s.Cache.Contains(ids[1]))
	assert.Equal(t, 1, f.s.CacheInfo().EntryCount)
	assert.Equal(t, ids[1], f.displayed(t))
	f.assertInvariants(t)
}

func TestDisplayedImageStaysCachedOverBudget(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Cache.MaxBytes = 100 * 1024
	})
	ids, err := f.s.AddFiles(handles("a.dcm", "b.dcm"))
	require.NoError(t, err)
	f.s.Wait()

	require.NoError(t, f.s.Select(1))
	f.s.Wait()

	assert.True(t, f.s.Cache.Contains(ids[1]))
	assert.False(t, f.s.Cache.Contains(ids[0]))
	pinned, ok := f.s.Cache.Pinned()
	require.True(t, ok)
	assert.Equal(t, ids[1], pinned)

	require.NoError(t, f.s.Select(1))
	f.s.Wait()
	assert.Equal(t, 1, f.decoder.callsFor(ids[1]))
}

func TestDeleteLastItemDisablesViewer(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.AddFiles(handles("a.dcm"))
	require.NoError(t, err)
	f.s.Wait()
	require.Equal(t, viewer.Enabled, f.s.Viewer.State())

	require.NoError(t, f.s.Delete(0))
	f.s.Wait()

	assert.Equal(t, 0, f.s.Len())
	assert.Equal(t, viewer.Disabled, f.s.Viewer.State())
	assert.False(t, f.surface.Bound())
	_, pinned := f.s.Cache.Pinned()
	assert.False(t, pinned)
	f.assertInvariants(t)

	// the list can be refilled afterwards
	_, err = f.s.AddFiles(handles("b.dcm"))
	require.NoError(t, err)
	f.s.Wait()
	assert.Equal(t, types.ImageID("dicomfile:1"), f.displayed(t))
}

func TestDecodeFailureOnFirstAdd(t *testing.T) {
	f := newFixture(t)
	f.decoder.failWith("dicomfile:0", fmt.Errorf("bad preamble"))

	_, err := f.s.AddFiles(handles("broken.dcm"))
	require.NoError(t, err)
	f.s.Wait()

	assert.Equal(t, 0, f.s.CacheInfo().EntryCount)
	assert.Equal(t, viewer.Enabled, f.s.Viewer.State())
	assert.Empty(t, f.surface.Frames())

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, DecodeFailed, events[0].Kind)
	assert.True(t, errors.IsDecodeError(events[0].Err))
}

func TestDecodeFailureKeepsPreviousFrameAndRetries(t *testing.T) {
	f := newFixture(t)
	f.decoder.failWith("dicomfile:1", fmt.Errorf("truncated"))
	_, err := f.s.AddFiles(handles("a.dcm", "b.dcm"))
	require.NoError(t, err)
	f.s.Wait()

	require.NoError(t, f.s.Select(1))
	f.s.Wait()
	assert.Equal(t, types.ImageID("dicomfile:0"), f.displayed(t))
	assert.Equal(t, []types.ImageID{"dicomfile:0"}, f.surface.Frames())

	f.decoder.failWith("dicomfile:1", nil)
	require.NoError(t, f.s.Select(1))
	f.s.Wait()
	assert.Equal(t, types.ImageID("dicomfile:1"), f.displayed(t))
	assert.Equal(t, 2, f.decoder.callsFor("dicomfile:1"))
}

func TestStaleResolvesAreDiscarded(t *testing.T) {
	for _, order := range [][]types.ImageID{
		{"dicomfile:1", "dicomfile:2"},
		{"dicomfile:2", "dicomfile:1"},
	} {
		t.Run(fmt.Sprintf("%s first", order[0]), func(t *testing.T) {
			f := newFixture(t)
			_, err := f.s.AddFiles(handles("a", "b", "c"))
			require.NoError(t, err)
			f.s.Wait()

			gates := map[types.ImageID]chan struct{}{
				"dicomfile:1": f.decoder.block("dicomfile:1"),
				"dicomfile:2": f.decoder.block("dicomfile:2"),
			}
			require.NoError(t, f.s.Select(1))
			require.NoError(t, f.s.Select(2))

			for _, id := range order {
				close(gates[id])
			}
			f.s.Wait()

			assert.Equal(t, []types.ImageID{"dicomfile:0", "dicomfile:2"}, f.surface.Frames())
			for _, ev := range f.events.all() {
				assert.NotEqual(t, types.ImageID("dicomfile:1"), ev.ID, "stale runs emit nothing")
			}
		})
	}
}

func TestPurgeOnSelect(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Cache.PurgeOnSelect = true })
	_, err := f.s.AddFiles(handles("a", "b", "c"))
	require.NoError(t, err)
	f.s.Wait()
	for i := 1; i < 3; i++ {
		require.NoError(t, f.s.Select(i))
		f.s.Wait()
	}

	// each select purges everything but the frame on screen before decoding
	assert.Equal(t, 2, f.s.CacheInfo().EntryCount)
	assert.True(t, f.s.Cache.Contains("dicomfile:2"))
}

func TestPurgeOnDelete(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Cache.PurgeOnDelete = true })
	_, err := f.s.AddFiles(handles("a", "b", "c"))
	require.NoError(t, err)
	f.s.Wait()
	for i := 1; i < 3; i++ {
		require.NoError(t, f.s.Select(i))
		f.s.Wait()
	}
	require.Equal(t, 3, f.s.CacheInfo().EntryCount)

	require.NoError(t, f.s.Delete(0))
	f.s.Wait()
	assert.Equal(t, 1, f.s.CacheInfo().EntryCount)
	assert.True(t, f.s.Cache.Contains("dicomfile:2"))
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 300; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || f.s.Len() == 0:
			_, err := f.s.AddFiles(handles(fmt.Sprintf("f%d", step)))
			require.NoError(t, err)
		case op == 1:
			require.NoError(t, f.s.Select(rng.Intn(f.s.Len())))
		default:
			require.NoError(t, f.s.Delete(rng.Intn(f.s.Len())))
		}
		f.assertInvariants(t)
	}

	f.s.Wait()
	if cur, ok := f.s.Current(); ok {
		assert.Equal(t, f.s.Items()[cur].ID, f.displayed(t))
	}
	assert.LessOrEqual(t, f.s.CacheInfo().TotalBytes, f.s.CacheInfo().MaxBytes)
}

func TestConcurrentSelectsSettleOnLastSelection(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.AddFiles(handles("a", "b", "c", "d", "e"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				assert.NoError(t, f.s.Select(rng.Intn(5)))
			}
		}(int64(g))
	}
	wg.Wait()
	f.s.Wait()

	cur, _ := f.s.Current()
	assert.Equal(t, f.s.Items()[cur].ID, f.displayed(t))
}

func TestCloseCancelsPendingDecodes(t *testing.T) {
	f := newFixture(t)
	f.decoder.block("dicomfile:0")

	_, err := f.s.AddFiles(handles("slow.dcm"))
	require.NoError(t, err)
	f.s.Close()

	assert.Equal(t, viewer.Disabled, f.s.Viewer.State())
	assert.Empty(t, f.surface.Frames())
}

func TestSessionWithDICOMDecoder(t *testing.T) {
	s := New(config.NewTestConfig(), viewer.NewRecorder())
	t.Cleanup(s.Close)

	good := types.NewMemoryHandle("ct.dcm", testutils.BuildDICOM(testutils.Gray8(16, 16)))
	bad := types.NewMemoryHandle("junk.dcm", []byte("junk"))
	_, err := s.AddFiles([]*types.FileHandle{good, bad})
	require.NoError(t, err)
	s.Wait()

	id, ok := s.Viewer.Displayed()
	require.True(t, ok)
	assert.Equal(t, types.ImageID("dicomfile:0"), id)

	require.NoError(t, s.Select(1))
	s.Wait()
	id, _ = s.Viewer.Displayed()
	assert.Equal(t, types.ImageID("dicomfile:0"), id, "failed decode keeps the last good frame")
	assert.Equal(t, 1, s.CacheInfo().EntryCount)
}

func TestStatusLine(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "no files | cache 0 B of 1.0 MiB (0 entries)", f.s.StatusLine())

	_, err := f.s.AddFiles(handles("a.dcm", "b.dcm", "c.dcm"))
	require.NoError(t, err)
	f.s.Wait()
	assert.Equal(t, "1 of 3 | cache 64 KiB of 1.0 MiB (1 entries)", f.s.StatusLine())

	require.NoError(t, f.s.Select(2))
	f.s.Wait()
	assert.Equal(t, "3 of 3 | cache 128 KiB of 1.0 MiB (2 entries)", f.s.StatusLine())
}
