package coap

import (
	"sync"
	"sync/atomic"
	"time"
)

// ExchangeLifetime is how long a confirmable exchange stays answerable from
// cache (RFC 7252, section 4.8.2).
const ExchangeLifetime = 247 * time.Second

type exchangeKey struct {
	id    uint16
	token string
}

type exchangeEntry struct {
	resp     *Message
	expireAt time.Time
}

// ExchangeCache remembers responses to recent confirmable requests so a
// retransmitted request is answered with the same response instead of
// running its handler again. Responses handed to the cache are read-only
// from then on.
type ExchangeCache struct {
	ttl   time.Duration
	nowFn func() time.Time

	mu      sync.Mutex
	entries map[exchangeKey]exchangeEntry

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewExchangeCache returns a cache that holds entries for ttl. A ttl of 0
// or less uses ExchangeLifetime.
func NewExchangeCache(ttl time.Duration) *ExchangeCache {
	if ttl <= 0 {
		ttl = ExchangeLifetime
	}
	return &ExchangeCache{
		ttl:     ttl,
		nowFn:   time.Now,
		entries: make(map[exchangeKey]exchangeEntry),
	}
}

// Lookup returns the cached response for req while its exchange is live.
func (c *ExchangeCache) Lookup(req *Message) (*Message, bool) {
	key := exchangeKey{id: req.MessageID, token: string(req.Token)}
	now := c.nowFn()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && now.After(e.expireAt) {
		delete(c.entries, key)
		c.evictions.Add(1)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.resp, true
}

// Store records the response served for req. A nil response is not cached.
func (c *ExchangeCache) Store(req, resp *Message) {
	if resp == nil {
		return
	}
	key := exchangeKey{id: req.MessageID, token: string(req.Token)}
	now := c.nowFn()

	c.mu.Lock()
	c.sweepLocked(now, 4)
	c.entries[key] = exchangeEntry{resp: resp, expireAt: now.Add(c.ttl)}
	c.mu.Unlock()
}

// sweepLocked drops up to limit expired entries. Map iteration order is
// random, so repeated sweeps sample the whole table over time.
func (c *ExchangeCache) sweepLocked(now time.Time, limit int) {
	for k, e := range c.entries {
		if limit == 0 {
			return
		}
		limit--
		if now.After(e.expireAt) {
			delete(c.entries, k)
			c.evictions.Add(1)
		}
	}
}

// Len reports the current entry count, expired entries included until they
// are swept.
func (c *ExchangeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ExchangeStats is a snapshot of cache counters.
type ExchangeStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats snapshots the cache counters.
func (c *ExchangeCache) Stats() ExchangeStats {
	return ExchangeStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
