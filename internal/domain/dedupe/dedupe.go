// Package dedupe tracks scoring request IDs so a plan submitted twice is
// scored and stored only once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper maps request IDs to the plan ID they produced.
type Deduper interface {
	// Remember records key -> planID if key is new and returns (planID, false).
	// If key was already recorded it returns the stored plan ID and true.
	Remember(ctx context.Context, key, planID string) (string, bool, error)

	// Forget drops key so the request can be retried. It is used when a
	// request was recorded but could not be processed (e.g. queue backpressure).
	Forget(ctx context.Context, key string) error

	Size() int64
}

// node is an entry of the insertion-ordered list.
type node struct {
	key    string
	planID string
	prev   *node
	next   *node
}

func (n *node) reset() {
	n.key = ""
	n.planID = ""
	n.prev = nil
	n.next = nil
}

// inMemoryDeduper keeps keys in a map plus a doubly linked list in insertion
// order. When bounded (maxSize > 0) the oldest key is evicted first.
type inMemoryDeduper struct {
	mu       sync.Mutex
	seen     map[string]*node
	head     *node // newest
	tail     *node // oldest
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]*node)
	d.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}

	return d
}

func (d *inMemoryDeduper) Remember(_ context.Context, key, planID string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.seen[key]; ok {
		return n.planID, true, nil
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	n := d.nodePool.Get().(*node)
	n.key = key
	n.planID = planID
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	}
	d.head = n
	if d.tail == nil {
		d.tail = n
	}
	d.seen[key] = n
	d.size.Add(1)
	return planID, false, nil
}

func (d *inMemoryDeduper) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.seen[key]; ok {
		d.remove(n)
	}
	return nil
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	if d.tail != nil {
		d.remove(d.tail)
	}
}

// remove unlinks n and returns it to the pool. Must be called with d.mu held.
func (d *inMemoryDeduper) remove(n *node) {
	delete(d.seen, n.key)
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
