// Package cache implements the two-tier (in-process + durable) store the
// engine keys VersionInfo and vulnerability records by.
package cache

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies one cache entry. SourceRegistry is part of the key so a
// private registry hosting a name also present on a public one never
// collides with it.
type Key struct {
	Ecosystem      string
	SourceRegistry string
	Name           string
}

// Entry is one stored record.
type Entry struct {
	Key       Key
	Payload   []byte // canonical JSON
	FetchedAt time.Time
	TTL       time.Duration
}

// Stale reports whether the entry is older than its TTL as of now.
func (e Entry) Stale(now time.Time) bool {
	return now.Sub(e.FetchedAt) > e.TTL
}

// CorruptError wraps a cold-tier error that indicates the durable store
// itself is damaged and must be rebuilt, distinct from an ordinary I/O
// failure that just degrades to hot-tier-only.
type CorruptError struct {
	Err error
}

func (e *CorruptError) Error() string { return "cache: corrupt durable store: " + e.Err.Error() }
func (e *CorruptError) Unwrap() error { return e.Err }

// ColdStore is the durable tier's interface, implemented by *SQLiteStore.
// Kept as an interface so tests can substitute an in-memory fake without a
// real file on disk.
type ColdStore interface {
	Get(key Key) (Entry, bool, error)
	Put(entry Entry) error
	Invalidate(key Key) error
	Sweep(perEcosystemCap int) error
	Close() error
}

const defaultPerEcosystemCap = 2048

// Cache is the hybrid store: one LRU per ecosystem backs the hot tier, a
// single durable connection backs the cold tier.
type Cache struct {
	mu       sync.RWMutex
	hot      map[string]*lru.Cache[string, Entry]
	hotCap   int
	cold     ColdStore
	coldDown atomic.Bool
	logger   *slog.Logger
}

// New builds a Cache. cold may be nil, in which case the cache runs
// hot-tier-only (useful for tests and for the degraded mode described in
// the failure table).
func New(cold ColdStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		hot:    make(map[string]*lru.Cache[string, Entry]),
		hotCap: defaultPerEcosystemCap,
		cold:   cold,
		logger: logger,
	}
}

func (c *Cache) hotShard(ecosystem string) *lru.Cache[string, Entry] {
	c.mu.Lock()
	defer c.mu.Unlock()
	shard, ok := c.hot[ecosystem]
	if !ok {
		shard, _ = lru.New[string, Entry](c.hotCap)
		c.hot[ecosystem] = shard
	}
	return shard
}

func hotKey(k Key) string {
	return k.Ecosystem + "\x00" + k.SourceRegistry + "\x00" + k.Name
}

// Get consults the hot tier first, then the cold tier on miss, promoting a
// cold hit back into the hot tier.
func (c *Cache) Get(key Key) (Entry, bool) {
	shard := c.hotShard(key.Ecosystem)
	if e, ok := shard.Get(hotKey(key)); ok {
		return e, true
	}

	if c.cold == nil || c.coldDown.Load() {
		return Entry{}, false
	}

	e, ok, err := c.cold.Get(key)
	if err != nil {
		c.handleColdError(err)
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	shard.Add(hotKey(key), e)
	return e, true
}

// Put writes to both tiers. Cold-tier writes are durable before Put
// returns; a cold-tier write failure is logged and Put proceeds (the hot
// tier still has the entry). Only a corrupt durable store switches the
// cache to hot-tier-only, until Reconnect.
func (c *Cache) Put(key Key, payload []byte, ttl time.Duration, now time.Time) {
	entry := Entry{Key: key, Payload: payload, FetchedAt: now, TTL: ttl}
	c.hotShard(key.Ecosystem).Add(hotKey(key), entry)

	if c.cold == nil || c.coldDown.Load() {
		return
	}
	if err := c.cold.Put(entry); err != nil {
		c.handleColdError(err)
	}
}

// PutValue is a convenience wrapper that marshals v to JSON before storing.
func (c *Cache) PutValue(key Key, v any, ttl time.Duration, now time.Time) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Put(key, payload, ttl, now)
	return nil
}

// Invalidate removes key from both tiers.
func (c *Cache) Invalidate(key Key) {
	c.hotShard(key.Ecosystem).Remove(hotKey(key))
	if c.cold != nil && !c.coldDown.Load() {
		if err := c.cold.Invalidate(key); err != nil {
			c.handleColdError(err)
		}
	}
}

// InvalidateAll clears every hot-tier shard. Used for whole-cache
// invalidation (the engine façade's invalidate(*) form). Cold-tier rows are
// not deleted: Get still finds them, and promotes them back into the hot
// tier, until Sweep removes them once expired.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for eco := range c.hot {
		shard, _ := lru.New[string, Entry](c.hotCap)
		c.hot[eco] = shard
	}
}

// Sweep evicts cold-tier entries past TTL and enforces the per-ecosystem
// entry cap. The hot tier is self-bounding (LRU eviction already caps it).
func (c *Cache) Sweep() {
	if c.cold == nil || c.coldDown.Load() {
		return
	}
	if err := c.cold.Sweep(defaultPerEcosystemCap); err != nil {
		c.handleColdError(err)
	}
}

func (c *Cache) handleColdError(err error) {
	var corrupt *CorruptError
	if isCorrupt(err, &corrupt) {
		c.logger.Warn("cache: durable store corrupt, degrading to hot-tier-only", "error", err)
		c.coldDown.Store(true)
		return
	}
	c.logger.Warn("cache: durable store I/O error, degraded to a miss", "error", err)
}

func isCorrupt(err error, target **CorruptError) bool {
	if ce, ok := err.(*CorruptError); ok {
		*target = ce
		return true
	}
	return false
}

// Reconnect clears the degraded flag, letting the next Get/Put retry the
// cold tier. Called after an operator rebuilds or replaces the database
// file.
func (c *Cache) Reconnect() {
	c.coldDown.Store(false)
}
