package context

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

// entry is one cached section output (spec §4.I: "key = (template_digest,
// section_index, recent_runs_slice_digest, recent_summaries_slice_digest,
// session_id if scope=session)").
type entry struct {
	value     any
	expiresAt time.Time
}

// Cache holds cached executable-section outputs. Because every cache key
// embeds the template's content digest, editing a template naturally
// invalidates its old entries without an explicit sweep — stale keys
// simply stop being looked up (spec §8 "Cache correctness").
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   core.Clock
}

// NewCache builds an empty Cache. clock drives expiry checks.
func NewCache(clock core.Clock) *Cache {
	return &Cache{entries: map[string]entry{}, clock: clock}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && c.clock.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Put stores value under key with the given ttl. A zero or negative ttl
// (the `session` @cache value) never expires by time — it lives until
// ClearSession removes it.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.clock.Now().Add(ttl)
	}
	c.entries[key] = entry{value: value, expiresAt: expiresAt}
}

// ClearSession drops every cache entry keyed for sessionID (its key
// suffix, per CacheKey's perSession scoping).
func (c *Cache) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	suffix := "|" + sessionID
	for k := range c.entries {
		if strings.HasSuffix(k, suffix) {
			delete(c.entries, k)
		}
	}
}

// durationUnits maps the `<N>{s,m,h,d}` suffix to a time.Duration unit
// (spec §6 @cache values).
var durationUnits = map[byte]time.Duration{
	's': time.Second, 'm': time.Minute, 'h': time.Hour, 'd': 24 * time.Hour,
}

// ParseCacheSpec resolves an `@cache` value into a TTL and whether the
// cache key must additionally be scoped per session (spec value
// `session`).
func ParseCacheSpec(spec string) (ttl time.Duration, perSession bool, err error) {
	spec = strings.TrimSpace(spec)
	switch spec {
	case "session":
		return 0, true, nil
	case "daily":
		return 24 * time.Hour, false, nil
	case "weekly":
		return 7 * 24 * time.Hour, false, nil
	}
	if spec == "" {
		return 0, false, fmt.Errorf("context: empty @cache value")
	}
	unit, ok := durationUnits[spec[len(spec)-1]]
	if !ok {
		return 0, false, fmt.Errorf("context: unrecognized @cache value %q", spec)
	}
	n, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || n <= 0 {
		return 0, false, fmt.Errorf("context: unrecognized @cache value %q", spec)
	}
	return time.Duration(n) * unit, false, nil
}

// CacheKey builds the tuple key from spec §4.I.
func CacheKey(templateDigest string, sectionIndex int, recentRunsDigest, recentSummariesDigest, sessionID string, perSession bool) string {
	scopeID := ""
	if perSession {
		scopeID = sessionID
	}
	return fmt.Sprintf("%s|%d|%s|%s|%s", templateDigest, sectionIndex, recentRunsDigest, recentSummariesDigest, scopeID)
}

// DigestStrings renders a stable digest of an ordered string slice, used
// for the recent-runs/recent-summaries slices in the cache key.
func DigestStrings(items []string) string {
	return core.Digest([]byte(strings.Join(items, "\x1f")))
}
