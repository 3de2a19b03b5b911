// Package imagecache holds decoded images under a byte budget.
//
// Entries are kept in a recency list (most recently accessed first). When an
// insert pushes the total over budget, entries are evicted from the least
// recently accessed end, skipping the pinned entry, which is the image
// currently on screen. If only the pinned entry is left the budget is allowed
// to be exceeded rather than blanking the active view.
package imagecache

import (
	"container/list"
	"sync"
	"time"

	"dcmview/internal/log"
	"dcmview/pkg/types"
)

const (
	// DefaultMaxBytes is the default budget (200 MiB)
	DefaultMaxBytes int64 = 200 * 1024 * 1024
	// DefaultMinEntryBytes is charged for images that report no size
	DefaultMinEntryBytes int64 = 4 * 1024
)

// Options configures a Cache
type Options struct {
	MaxBytes      int64
	MinEntryBytes int64
	Clock         func() time.Time
}

// Entry describes one cached image
type Entry struct {
	ID         types.ImageID
	Image      *types.DecodedImage
	SizeBytes  int64
	LastAccess time.Time
}

// Cache is a byte-bounded LRU of decoded images with a single pinned key.
// All operations are safe for concurrent use; each runs as one critical section.
type Cache struct {
	mu       sync.Mutex
	maxBytes int64
	minEntry int64
	total    int64
	order    *list.List // of *Entry, front = most recently accessed
	entries  map[types.ImageID]*list.Element
	pinned   types.ImageID
	hasPin   bool
	now      func() time.Time
}

// New creates a cache. Zero option values fall back to the defaults.
func New(opts Options) *Cache {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MinEntryBytes <= 0 {
		opts.MinEntryBytes = DefaultMinEntryBytes
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		maxBytes: opts.MaxBytes,
		minEntry: opts.MinEntryBytes,
		order:    list.New(),
		entries:  make(map[types.ImageID]*list.Element),
		now:      opts.Clock,
	}
}

// Put inserts or replaces the image for id, marks it most recently accessed
// and evicts until the budget holds or only the pinned entry remains evictable.
func (c *Cache) Put(id types.ImageID, img *types.DecodedImage) {
	if img == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.sizeOf(img)
	if el, ok := c.entries[id]; ok {
		e := el.Value.(*Entry)
		c.total -= e.SizeBytes
		e.Image = img
		e.SizeBytes = size
		e.LastAccess = c.now()
		c.order.MoveToFront(el)
	} else {
		e := &Entry{ID: id, Image: img, SizeBytes: size, LastAccess: c.now()}
		c.entries[id] = c.order.PushFront(e)
	}
	c.total += size

	c.evictLocked()
}

// Get returns the image for id and marks it most recently accessed
func (c *Cache) Get(id types.ImageID) (*types.DecodedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	e := el.Value.(*Entry)
	e.LastAccess = c.now()
	c.order.MoveToFront(el)
	return e.Image, true
}

// Remove drops the entry for id regardless of the eviction policy.
// Removing the pinned id also clears the pin. Unknown ids are ignored.
func (c *Cache) Remove(id types.ImageID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasPin && c.pinned == id {
		c.hasPin = false
		c.pinned = ""
	}
	if el, ok := c.entries[id]; ok {
		c.removeLocked(el)
	}
}

// Purge drops every entry except the pinned one and returns how many were removed
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !c.isPinnedLocked(el.Value.(*Entry).ID) {
			c.removeLocked(el)
			removed++
		}
		el = prev
	}
	if removed > 0 {
		log.LogWithFields(log.F("removed", removed), log.F("total_bytes", c.total)).Debug("cache purged")
	}
	return removed
}

// Pin protects id from eviction and purge. Only one id is pinned at a time.
func (c *Cache) Pin(id types.ImageID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = id
	c.hasPin = true
}

// Unpin clears the pinned id and evicts anything the pin was holding over budget
func (c *Cache) Unpin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasPin = false
	c.pinned = ""
	c.evictLocked()
}

// Pinned returns the pinned id, if any
func (c *Cache) Pinned() (types.ImageID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinned, c.hasPin
}

// SetMaxBytes changes the budget and evicts down to it
func (c *Cache) SetMaxBytes(n int64) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxBytes = n
	c.evictLocked()
}

// Contains reports whether id is cached without touching its recency
func (c *Cache) Contains(id types.ImageID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// TotalBytes returns the accounted size of all entries
func (c *Cache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Info returns a diagnostic snapshot
func (c *Cache) Info() types.CacheInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.CacheInfo{
		TotalBytes: c.total,
		EntryCount: len(c.entries),
		MaxBytes:   c.maxBytes,
	}
}

// Entries returns a copy of the entries, most recently accessed first
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.entries))
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*Entry))
	}
	return out
}

func (c *Cache) sizeOf(img *types.DecodedImage) int64 {
	if img.SizeBytes < c.minEntry {
		return c.minEntry
	}
	return img.SizeBytes
}

func (c *Cache) isPinnedLocked(id types.ImageID) bool {
	return c.hasPin && c.pinned == id
}

func (c *Cache) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*Entry)
	delete(c.entries, e.ID)
	c.total -= e.SizeBytes
}

func (c *Cache) evictLocked() {
	for c.total > c.maxBytes {
		victim := c.order.Back()
		for victim != nil && c.isPinnedLocked(victim.Value.(*Entry).ID) {
			victim = victim.Prev()
		}
		if victim == nil {
			log.LogWithFields(
				log.F("total_bytes", c.total),
				log.F("max_bytes", c.maxBytes),
				log.F("pinned", c.pinned),
			).Warn("cache over budget, only the displayed image remains")
			return
		}
		e := victim.Value.(*Entry)
		c.removeLocked(victim)
		log.LogWithFields(log.F("image_id", e.ID), log.F("bytes", e.SizeBytes)).Debug("evicted")
	}
}
