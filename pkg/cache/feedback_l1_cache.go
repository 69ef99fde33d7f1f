// Package cache provides JSON caches: an in-process LRU (L1) and Redis (L2).
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// JSONStore is the shape shared by every cache tier.
type JSONStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

var (
	_ JSONStore = (*L1Cache)(nil)
	_ JSONStore = (*RedisCache)(nil)
	_ JSONStore = (*Tiered)(nil)
)

// L1Cache is a size bounded in-memory cache with per entry TTL and LRU
// eviction.
type L1Cache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front is most recently used
	maxItems int
	maxTTL   time.Duration
	now      func() time.Time

	hits   int64
	misses int64
}

type l1Entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewL1Cache holds up to maxItems entries. maxTTL caps the TTL of every
// entry so the L1 tier never outlives the shared tier by much.
func NewL1Cache(maxItems int, maxTTL time.Duration) *L1Cache {
	if maxItems <= 0 {
		maxItems = 10000
	}
	if maxTTL <= 0 {
		maxTTL = 10 * time.Minute
	}
	return &L1Cache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxItems: maxItems,
		maxTTL:   maxTTL,
		now:      time.Now,
	}
}

func (c *L1Cache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		atomic.AddInt64(&c.misses, 1)
		return false, nil
	}
	entry := el.Value.(*l1Entry)
	if c.now().After(entry.expiresAt) {
		c.removeElement(el)
		c.mu.Unlock()
		atomic.AddInt64(&c.misses, 1)
		return false, nil
	}
	c.order.MoveToFront(el)
	data := entry.value
	c.mu.Unlock()

	atomic.AddInt64(&c.hits, 1)
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *L1Cache) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 || ttl > c.maxTTL {
		ttl = c.maxTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*l1Entry)
		entry.value = data
		entry.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return nil
	}

	c.items[key] = c.order.PushFront(&l1Entry{key: key, value: data, expiresAt: expiresAt})
	for c.order.Len() > c.maxItems {
		c.removeElement(c.order.Back())
	}
	return nil
}

// Delete removes a key.
func (c *L1Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	return nil
}

func (c *L1Cache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*l1Entry).key)
}

// Len returns the number of stored entries, expired ones included.
func (c *L1Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns hit and miss counters.
func (c *L1Cache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Tiered reads L1 first and fills it from L2 on a hit there. Writes go to
// both tiers; an L2 failure is returned after L1 has been updated.
type Tiered struct {
	l1 *L1Cache
	l2 JSONStore
}

func NewTiered(l1 *L1Cache, l2 JSONStore) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

func (t *Tiered) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if found, err := t.l1.GetJSON(ctx, key, dest); err == nil && found {
		return true, nil
	}

	found, err := t.l2.GetJSON(ctx, key, dest)
	if err != nil || !found {
		return false, err
	}
	_ = t.l1.SetJSON(ctx, key, dest, t.l1.maxTTL)
	return true, nil
}

func (t *Tiered) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	_ = t.l1.SetJSON(ctx, key, value, ttl)
	return t.l2.SetJSON(ctx, key, value, ttl)
}
