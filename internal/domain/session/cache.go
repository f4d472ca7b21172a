// Package session caches generation handles per (application, mode) pair.
// A handle carries the provider-side conversation window, so a cache hit
// preserves multi-turn context while a miss rebuilds it from persisted chat
// history. Entries age out on write TTL and idle TTL and the cache holds at
// most Capacity entries, evicting the least recently used.
package session

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sitesmith/backend/internal/genai"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/shared/types"
)

const janitorInterval = time.Minute

// HistoryFunc loads the most recent chat messages of an application in
// ascending order. Failures are non-fatal; implementations return nil.
type HistoryFunc func(appID uint64, max int) []genai.Message

// Config tunes the cache. Zero values fall back to the documented defaults.
type Config struct {
	Capacity int
	WriteTTL time.Duration
	IdleTTL  time.Duration
	Window   int
}

func (c *Config) applyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 1000
	}
	if c.WriteTTL <= 0 {
		c.WriteTTL = 30 * time.Minute
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 10 * time.Minute
	}
	if c.Window <= 0 {
		c.Window = 20
	}
}

type key struct {
	AppID uint64
	Mode  types.GenMode
}

type entry struct {
	handle     genai.Handle
	createdAt  time.Time
	lastAccess time.Time
	elem       *list.Element
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	HitRate   float64 `json:"hitRate"`
	Evictions uint64  `json:"evictions"`
	Loads     uint64  `json:"loads"`
}

// Cache is the session cache. All methods are safe for concurrent use.
type Cache struct {
	cfg      Config
	provider genai.Provider
	history  HistoryFunc
	log      *logging.Logger

	mu      sync.Mutex
	entries map[key]*entry
	lru     *list.List // front = most recently used, values are key

	group singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	loads     atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCache creates the cache and starts its expiry janitor.
func NewCache(cfg Config, provider genai.Provider, history HistoryFunc, log *logging.Logger) *Cache {
	cfg.applyDefaults()
	c := &Cache{
		cfg:      cfg,
		provider: provider,
		history:  history,
		log:      log,
		entries:  make(map[key]*entry),
		lru:      list.New(),
		stop:     make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the cached handle for the pair, constructing it at most once
// under concurrent misses. Expired entries count as misses.
func (c *Cache) Get(ctx context.Context, appID uint64, mode types.GenMode) (genai.Handle, error) {
	k := key{AppID: appID, Mode: mode}

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		if c.expiredLocked(e, time.Now()) {
			c.removeLocked(k, e)
			c.evictions.Add(1)
		} else {
			e.lastAccess = time.Now()
			c.lru.MoveToFront(e.elem)
			c.mu.Unlock()
			c.hits.Add(1)
			return e.handle, nil
		}
	}
	c.mu.Unlock()
	c.misses.Add(1)

	v, err, _ := c.group.Do(fmt.Sprintf("%d_%s", appID, mode), func() (interface{}, error) {
		// A racing Do from an earlier flight may have populated the entry.
		c.mu.Lock()
		if e, ok := c.entries[k]; ok && !c.expiredLocked(e, time.Now()) {
			e.lastAccess = time.Now()
			c.lru.MoveToFront(e.elem)
			c.mu.Unlock()
			return e.handle, nil
		}
		c.mu.Unlock()

		var history []genai.Message
		if c.history != nil {
			history = c.history(appID, c.cfg.Window)
		}
		h, err := c.provider.NewHandle(ctx, appID, mode, history)
		if err != nil {
			return nil, err
		}
		c.insert(k, h)
		c.loads.Add(1)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(genai.Handle), nil
}

// Warm constructs handles for every mode of the given applications ahead of
// traffic. Individual failures are logged and skipped.
func (c *Cache) Warm(ctx context.Context, appIDs []uint64) int {
	warmed := 0
	for _, id := range appIDs {
		for _, m := range types.Modes() {
			if _, err := c.Get(ctx, id, m); err != nil {
				c.log.Warn("cache warmup failed",
					zap.Uint64("app_id", id),
					zap.String("mode", m.String()),
					zap.Error(err),
				)
				continue
			}
			warmed++
		}
	}
	return warmed
}

// Evict drops one pair. Returns whether an entry was present.
func (c *Cache) Evict(appID uint64, mode types.GenMode) bool {
	k := key{AppID: appID, Mode: mode}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return false
	}
	c.removeLocked(k, e)
	c.evictions.Add(1)
	return true
}

// EvictApp drops every mode of one application, e.g. after its chat log is
// rewritten by a retry.
func (c *Cache) EvictApp(appID uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range types.Modes() {
		k := key{AppID: appID, Mode: m}
		if e, ok := c.entries[k]; ok {
			c.removeLocked(k, e)
			c.evictions.Add(1)
			n++
		}
	}
	return n
}

// EvictAll clears the cache.
func (c *Cache) EvictAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[key]*entry)
	c.lru.Init()
	c.evictions.Add(uint64(n))
	return n
}

// Stats snapshots the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()
	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{
		Size:      size,
		Capacity:  c.cfg.Capacity,
		Hits:      hits,
		Misses:    misses,
		HitRate:   rate,
		Evictions: c.evictions.Load(),
		Loads:     c.loads.Load(),
	}
}

// Close stops the janitor. Cached handles need no teardown.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) insert(k key, h genai.Handle) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[k]; ok {
		c.lru.Remove(old.elem)
	}
	e := &entry{handle: h, createdAt: now, lastAccess: now}
	e.elem = c.lru.PushFront(k)
	c.entries[k] = e

	for len(c.entries) > c.cfg.Capacity {
		back := c.lru.Back()
		if back == nil {
			break
		}
		victim := back.Value.(key)
		c.removeLocked(victim, c.entries[victim])
		c.evictions.Add(1)
	}
}

func (c *Cache) expiredLocked(e *entry, now time.Time) bool {
	return now.Sub(e.createdAt) > c.cfg.WriteTTL || now.Sub(e.lastAccess) > c.cfg.IdleTTL
}

func (c *Cache) removeLocked(k key, e *entry) {
	c.lru.Remove(e.elem)
	delete(c.entries, k)
}

// janitor sweeps expired entries so idle pairs do not pin memory until the
// next Get touches them.
func (c *Cache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if c.expiredLocked(e, now) {
					c.removeLocked(k, e)
					c.evictions.Add(1)
				}
			}
			c.mu.Unlock()
		}
	}
}
