package pulse

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/nexus-quest/pulse/internal/domain"
)

// CacheKey is the fixed KV key of the persisted CachedSynthesis.
const CacheKey = "nexus_pulse_cache"

// DefaultCooldown is the minimum spacing between non-forced synthesis calls.
const DefaultCooldown = 5 * time.Minute

// Cache holds the most recent synthesis. Two independent gates apply:
//   - GetCached: valid for display only while its day is today
//   - IsCoolingDown: blocks new calls until the cooldown since the last store elapses
//
// The KV store is the only source of the synthesis itself. The time of the
// last store is also kept in memory so the cooldown holds when the store
// rejects the write.
type Cache struct {
	kv       domain.KVStore
	cooldown time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastStored int64 // epoch ms, 0 before the first store
}

// NewCache creates a cache over kv. now supplies the wall clock in the
// location whose calendar days define validity.
func NewCache(kv domain.KVStore, cooldown time.Duration, now func() time.Time) *Cache {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{kv: kv, cooldown: cooldown, now: now}
}

// GetCached returns the stored synthesis if it was stored today.
func (c *Cache) GetCached() (domain.AISynthesis, bool) {
	entry, ok := c.load()
	if !ok || entry.Day != domain.DayKey(c.now()) {
		return domain.AISynthesis{}, false
	}
	return entry.Data, true
}

// IsCoolingDown reports whether fewer than the cooldown window has elapsed
// since the last store, regardless of day.
func (c *Cache) IsCoolingDown() bool {
	c.mu.Lock()
	last := c.lastStored
	c.mu.Unlock()
	if entry, ok := c.load(); ok && entry.Timestamp > last {
		last = entry.Timestamp
	}
	if last == 0 {
		return false
	}
	return c.now().UnixMilli()-last < c.cooldown.Milliseconds()
}

// Store overwrites the cached entry with today's day and the current time.
// Write failures are logged and otherwise ignored.
func (c *Cache) Store(s domain.AISynthesis) {
	data, err := c.encode(s, c.now())
	if err != nil {
		log.Printf("[pulse] cache encode: %v", err)
		return
	}
	if err := c.kv.Set(CacheKey, data); err != nil {
		log.Printf("[pulse] cache write: %v", err)
	}
}

// Cooldown returns the configured cooldown window.
func (c *Cache) Cooldown() time.Duration { return c.cooldown }

// encode builds the persisted form and starts the cooldown.
func (c *Cache) encode(s domain.AISynthesis, at time.Time) ([]byte, error) {
	entry := domain.CachedSynthesis{
		Data:      s,
		Day:       domain.DayKey(at),
		Timestamp: at.UnixMilli(),
	}
	c.mu.Lock()
	c.lastStored = entry.Timestamp
	c.mu.Unlock()
	return json.Marshal(entry)
}

// load reads the persisted entry. Unreadable or corrupt values are absent.
func (c *Cache) load() (domain.CachedSynthesis, bool) {
	raw, err := c.kv.Get(CacheKey)
	if err != nil {
		log.Printf("[pulse] cache read: %v", err)
		return domain.CachedSynthesis{}, false
	}
	if raw == nil {
		return domain.CachedSynthesis{}, false
	}
	var entry domain.CachedSynthesis
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Day == "" {
		return domain.CachedSynthesis{}, false
	}
	return entry, true
}
