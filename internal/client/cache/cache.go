// Package cache keeps a client-side snapshot of one entity collection in sync
// with the server. A snapshot is seeded by a bulk fetch and then merged with
// Change Events and mutation results, gated by per-entity revisions.
package cache

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/egannguyen/go-food-ordering/internal/entity"
)

// ErrSuperseded is returned by a Load whose result arrived after a newer
// Load was issued. The result is discarded.
var ErrSuperseded = errors.New("load superseded by a newer load")

// Config describes the entity type a Cache holds.
type Config[K comparable, T any] struct {
	// Key returns the identity of an item.
	Key func(T) K
	// Revision returns the item's revision. Zero means unversioned and always applies.
	Revision func(T) int64
	// Compare orders the snapshot. Ties keep insertion order.
	Compare func(a, b T) int
	// Filter keeps only matching items. Nil keeps everything.
	Filter func(T) bool
	// Fetch returns the full server-side collection.
	Fetch func(ctx context.Context) ([]T, error)
	// OnChange, if set, is called after the snapshot or status changes.
	OnChange func()
}

// change is one merge step: an upsert of item or a removal of id.
type change[K comparable, T any] struct {
	remove   bool
	id       K
	item     T
	revision int64
}

type entry[T any] struct {
	item T
	seq  uint64
}

// Result is what a mutation produced on the server.
type Result[T any] struct {
	Item    T
	Deleted bool
}

// Intent is one server write issued through Mutate. Target is the id the
// write operates on, or the zero value for creates.
type Intent[K comparable, T any] struct {
	Target K
	Exec   func(ctx context.Context) (Result[T], error)
}

type Cache[K comparable, T any] struct {
	cfg Config[K, T]

	mu         sync.Mutex
	items      map[K]entry[T]
	tombstones map[K]int64
	insertSeq  uint64
	loadSeq    uint64
	settledSeq uint64
	buffered   []change[K, T]
	err        error
}

func New[K comparable, T any](cfg Config[K, T]) *Cache[K, T] {
	return &Cache[K, T]{
		cfg:        cfg,
		items:      make(map[K]entry[T]),
		tombstones: make(map[K]int64),
	}
}

// Load replaces the snapshot with a fresh bulk fetch. When several loads
// overlap only the most recently issued one is applied; the others return
// ErrSuperseded. Events that arrive while a load is in flight are buffered
// and replayed on top of its result.
func (c *Cache[K, T]) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	c.mu.Unlock()
	c.notify()

	items, err := c.cfg.Fetch(ctx)

	c.mu.Lock()
	if seq != c.loadSeq {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.settledSeq = seq
	if err != nil {
		c.err = err
	} else {
		c.err = nil
		c.replace(items)
	}
	for _, ch := range c.buffered {
		c.apply(ch)
	}
	c.buffered = nil
	c.mu.Unlock()

	c.notify()
	return err
}

// Upsert merges a created or updated entity.
func (c *Cache[K, T]) Upsert(item T) {
	c.ingest(change[K, T]{id: c.cfg.Key(item), item: item, revision: c.revision(item)})
}

// Remove merges a deletion. Removing an absent id only records the tombstone.
func (c *Cache[K, T]) Remove(id K, revision int64) {
	c.ingest(change[K, T]{remove: true, id: id, revision: revision})
}

// Mutate runs a server write and merges its result directly, so the later
// broadcast echo is a no-op. A NotFoundError drops the target id.
func (c *Cache[K, T]) Mutate(ctx context.Context, in Intent[K, T]) (T, error) {
	res, err := in.Exec(ctx)
	if err != nil {
		var zero K
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		if entity.IsNotFound(err) && in.Target != zero {
			c.Remove(in.Target, 0)
		} else {
			c.notify()
		}
		var none T
		return none, err
	}

	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
	if res.Deleted {
		c.Remove(in.Target, 0)
	} else {
		c.Upsert(res.Item)
	}
	return res.Item, nil
}

// Snapshot returns a sorted copy of the current items.
func (c *Cache[K, T]) Snapshot() []T {
	c.mu.Lock()
	entries := make([]entry[T], 0, len(c.items))
	for _, e := range c.items {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	slices.SortFunc(entries, func(a, b entry[T]) int {
		if c.cfg.Compare != nil {
			if n := c.cfg.Compare(a.item, b.item); n != 0 {
				return n
			}
		}
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.item
	}
	return out
}

func (c *Cache[K, T]) Get(id K) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[id]
	return e.item, ok
}

func (c *Cache[K, T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Loading reports whether a load is in flight.
func (c *Cache[K, T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settledSeq < c.loadSeq
}

// Err returns the error of the last failed load or mutation. It clears on
// the next successful one.
func (c *Cache[K, T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Cache[K, T]) ingest(ch change[K, T]) {
	c.mu.Lock()
	if c.settledSeq < c.loadSeq {
		c.buffered = append(c.buffered, ch)
		c.mu.Unlock()
		return
	}
	changed := c.apply(ch)
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// apply merges one change under c.mu. It reports whether the snapshot changed.
func (c *Cache[K, T]) apply(ch change[K, T]) bool {
	existing, present := c.items[ch.id]

	if ch.remove {
		tomb := max(c.tombstones[ch.id], ch.revision)
		if present {
			tomb = max(tomb, c.revision(existing.item)+1)
			delete(c.items, ch.id)
		}
		c.tombstones[ch.id] = tomb
		return present
	}

	if ch.revision > 0 {
		if tomb, dead := c.tombstones[ch.id]; dead && ch.revision <= tomb {
			return false
		}
		if present && ch.revision <= c.revision(existing.item) {
			return false
		}
	}

	if c.cfg.Filter != nil && !c.cfg.Filter(ch.item) {
		// Filtered out at this revision; an older event must not bring it back.
		if ch.revision > 0 {
			c.tombstones[ch.id] = ch.revision
		}
		delete(c.items, ch.id)
		return present
	}

	delete(c.tombstones, ch.id)
	seq := existing.seq
	if !present {
		c.insertSeq++
		seq = c.insertSeq
	}
	c.items[ch.id] = entry[T]{item: ch.item, seq: seq}
	return true
}

// replace swaps in a fetched collection under c.mu, keeping insertion order
// from the fetch.
func (c *Cache[K, T]) replace(items []T) {
	c.items = make(map[K]entry[T], len(items))
	for _, item := range items {
		id := c.cfg.Key(item)
		rev := c.revision(item)
		if tomb, dead := c.tombstones[id]; dead && rev > 0 && rev <= tomb {
			continue
		}
		if c.cfg.Filter != nil && !c.cfg.Filter(item) {
			if rev > 0 {
				c.tombstones[id] = rev
			} else {
				delete(c.tombstones, id)
			}
			continue
		}
		delete(c.tombstones, id)
		c.insertSeq++
		c.items[id] = entry[T]{item: item, seq: c.insertSeq}
	}
}

func (c *Cache[K, T]) revision(item T) int64 {
	if c.cfg.Revision == nil {
		return 0
	}
	return c.cfg.Revision(item)
}

func (c *Cache[K, T]) notify() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange()
	}
}
