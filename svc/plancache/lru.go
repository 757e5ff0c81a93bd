package plancache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/memberkit/svc/membership"
)

type lruEntry struct {
	id      string
	plan    *membership.Plan
	expires time.Time
}

// LRU keeps up to capacity plans in memory. Entries older than ttl are
// treated as missing; the least recently used entry is evicted when full.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

// LRUOption configures an LRU.
type LRUOption func(*LRU)

// WithNow replaces the clock used for expiry.
func WithNow(now func() time.Time) LRUOption {
	return func(c *LRU) {
		if now != nil {
			c.now = now
		}
	}
}

// NewLRU panics when capacity is not positive. A zero ttl never expires.
func NewLRU(capacity int, ttl time.Duration, opts ...LRUOption) *LRU {
	if capacity <= 0 {
		panic("plancache: capacity must be positive")
	}
	c := &LRU{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ membership.PlanCache = (*LRU)(nil)

func (c *LRU) Get(_ context.Context, id string) (*membership.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*lruEntry)
	if c.ttl > 0 && !c.now().Before(entry.expires) {
		c.remove(elem)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.plan.Clone(), true
}

func (c *LRU) Set(_ context.Context, plan *membership.Plan) {
	if plan == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if elem, ok := c.items[plan.ID]; ok {
		entry := elem.Value.(*lruEntry)
		entry.plan = plan.Clone()
		entry.expires = expires
		c.order.MoveToFront(elem)
		return
	}

	c.items[plan.ID] = c.order.PushFront(&lruEntry{id: plan.ID, plan: plan.Clone(), expires: expires})
	if c.order.Len() > c.capacity {
		c.remove(c.order.Back())
	}
}

func (c *LRU) Delete(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[id]; ok {
		c.remove(elem)
	}
}

// Len counts entries, including expired ones not yet evicted.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Must be called with the lock held.
func (c *LRU) remove(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*lruEntry).id)
}
