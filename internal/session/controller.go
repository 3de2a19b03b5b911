// Package session owns the loaded file list and the display pipeline that
// keeps the viewport in step with the current selection.
package session

import (
	"context"
	"fmt"
	"sync"

	"dcmview/internal/decode"
	"dcmview/internal/errors"
	"dcmview/internal/imagecache"
	"dcmview/internal/log"
	"dcmview/internal/registry"
	"dcmview/internal/viewer"
	"dcmview/pkg/types"
)

// Item is one loaded file in display order
type Item struct {
	ID     types.ImageID
	Handle *types.FileHandle
}

// EventKind identifies what a display pipeline run ended with
type EventKind int

const (
	// Displayed means the current item was drawn
	Displayed EventKind = iota
	// DecodeFailed means the current item could not be decoded; the
	// previous frame stays on screen
	DecodeFailed
)

func (k EventKind) String() string {
	if k == DecodeFailed {
		return "decode_failed"
	}
	return "displayed"
}

// Event reports the outcome of a display pipeline run that was still current
// when it completed. Stale runs produce no event.
type Event struct {
	Kind  EventKind
	Index int
	ID    types.ImageID
	Image *types.DecodedImage
	Err   error
}

// Listener receives pipeline events. It is called without any session lock
// held and may call back into the Controller.
type Listener func(Event)

// Options tunes controller behaviour
type Options struct {
	// PurgeOnDelete drops every unpinned cache entry after a delete
	PurgeOnDelete bool
	// PurgeOnSelect drops every unpinned cache entry after a select
	PurgeOnSelect bool
	// Listener is notified when a pipeline completes
	Listener Listener
}

// Deps are the components a Controller drives
type Deps struct {
	Registry *registry.Registry
	Cache    *imagecache.Cache
	Gateway  *decode.Gateway
	Viewer   *viewer.Session
	Surface  viewer.Surface
}

// Controller implements add, select and delete over the loaded items.
// Every public method is one critical section. Display pipelines run on their
// own goroutines and render only if their target is still current.
type Controller struct {
	deps Deps
	opts Options

	mu         sync.Mutex
	items      []Item
	current    int
	generation uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller with an empty item list
func NewController(deps Deps, opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		deps:   deps,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddFiles registers handles and appends them in order. When the list was
// empty the viewer is enabled and the first new item is displayed.
func (c *Controller) AddFiles(handles []*types.FileHandle) ([]types.ImageID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(handles) == 0 {
		return nil, nil
	}
	for _, h := range handles {
		if h == nil {
			return nil, errors.New("cannot add a nil file handle")
		}
	}

	wasEmpty := len(c.items) == 0
	ids := make([]types.ImageID, len(handles))
	for i, h := range handles {
		ids[i] = c.deps.Registry.Add(h)
		c.items = append(c.items, Item{ID: ids[i], Handle: h})
	}

	if wasEmpty {
		if err := c.deps.Viewer.Enable(c.deps.Surface); err != nil {
			c.rollbackLocked(len(handles))
			return nil, err
		}
		c.current = 0
		c.displayLocked()
	}

	log.LogWithFields(log.F("added", len(handles)), log.F("items", len(c.items))).Info("files added")
	return ids, nil
}

func (c *Controller) rollbackLocked(n int) {
	added := c.items[len(c.items)-n:]
	c.items = c.items[:len(c.items)-n]
	for _, it := range added {
		if !c.referencedLocked(it.ID) {
			c.deps.Registry.Remove(it.ID)
		}
	}
}

// Select makes index current and displays it. Selecting the current index
// again re-runs the pipeline, which retries a failed decode.
func (c *Controller) Select(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.items) {
		return errors.NewIndexOutOfRangeError(index, len(c.items))
	}
	c.current = index
	if c.opts.PurgeOnSelect {
		c.deps.Cache.Purge()
	}
	c.displayLocked()
	return nil
}

// Delete removes the item at index together with its cache entry and
// identifier. Deleting at or before the current item moves the selection
// back by one. Deleting the last item disables the viewer.
func (c *Controller) Delete(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.items) {
		return errors.NewIndexOutOfRangeError(index, len(c.items))
	}

	removed := c.items[index]
	c.items = append(c.items[:index], c.items[index+1:]...)
	if !c.referencedLocked(removed.ID) {
		c.deps.Cache.Remove(removed.ID)
		c.deps.Registry.Remove(removed.ID)
	}

	if index <= c.current {
		c.current = max(0, c.current-1)
	}
	if c.current >= len(c.items) {
		c.current = max(0, len(c.items)-1)
	}

	log.LogWithFields(
		log.F("image_id", removed.ID),
		log.F("index", index),
		log.F("items", len(c.items)),
	).Info("file deleted")

	if len(c.items) == 0 {
		c.current = 0
		c.generation++
		c.deps.Viewer.Disable()
		c.deps.Cache.Unpin()
		if c.opts.PurgeOnDelete {
			c.deps.Cache.Purge()
		}
		return nil
	}

	if c.opts.PurgeOnDelete {
		c.deps.Cache.Purge()
	}
	c.displayLocked()
	return nil
}

func (c *Controller) referencedLocked(id types.ImageID) bool {
	for _, it := range c.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// displayLocked starts a pipeline for the current item
func (c *Controller) displayLocked() {
	c.generation++
	gen, index, id := c.generation, c.current, c.items[c.current].ID

	c.wg.Add(1)
	go c.display(gen, index, id)
}

func (c *Controller) display(gen uint64, index int, id types.ImageID) {
	defer c.wg.Done()

	img, err := c.deps.Gateway.Resolve(c.ctx, id)

	c.mu.Lock()
	if !c.referencedLocked(id) {
		// deleted while decoding; the gateway has already stored the result
		c.deps.Cache.Remove(id)
	}
	if !c.isCurrentLocked(gen, index, id) {
		c.mu.Unlock()
		log.LogWithFields(log.F("image_id", id), log.F("index", index)).Debug("discarding stale display")
		return
	}

	ev := Event{Kind: Displayed, Index: index, ID: id, Image: img}
	if err != nil {
		ev.Kind, ev.Image, ev.Err = DecodeFailed, nil, err
		log.LogWithError(err).Warn("keeping previous frame")
	} else if rerr := c.deps.Viewer.Render(img); rerr != nil {
		// unreachable through the public surface: items non-empty implies enabled
		ev.Kind, ev.Image, ev.Err = DecodeFailed, nil, rerr
		log.LogWithError(rerr).Error("render failed")
	} else {
		c.deps.Cache.Pin(id)
		if !c.deps.Cache.Contains(id) {
			// evicted by its own Put while the previous frame held the pin
			c.deps.Cache.Put(id, img)
		}
	}
	listener := c.opts.Listener
	c.mu.Unlock()

	if listener != nil {
		listener(ev)
	}
}

func (c *Controller) isCurrentLocked(gen uint64, index int, id types.ImageID) bool {
	return gen == c.generation &&
		index == c.current &&
		index < len(c.items) &&
		c.items[index].ID == id
}

// Items returns a copy of the loaded items
func (c *Controller) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of loaded items
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Current returns the current index; ok is false when nothing is loaded
func (c *Controller) Current() (index int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return 0, false
	}
	return c.current, true
}

// CacheInfo returns cache diagnostics
func (c *Controller) CacheInfo() types.CacheInfo {
	return c.deps.Cache.Info()
}

// StatusLine summarizes the list position and cache usage,
// e.g. "2 of 5 | cache 1.2 MiB of 200 MiB (2 entries)"
func (c *Controller) StatusLine() string {
	c.mu.Lock()
	position := "no files"
	if len(c.items) > 0 {
		position = fmt.Sprintf("%d of %d", c.current+1, len(c.items))
	}
	c.mu.Unlock()
	return position + " | " + c.deps.Cache.Info().String()
}

// Wait blocks until every started pipeline has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels outstanding pipelines, waits for them and disables the viewer
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
	c.deps.Viewer.Disable()
}
