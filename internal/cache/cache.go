package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// EntityCache maps a natural key to a stored row id for the lifetime of one capture run
type EntityCache interface {
	Get(key string) (uint, bool)
	Set(key string, id uint)
	Clear()
	Stats() CacheStats
}

type CacheStats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Size       int       `json:"size"`
	LastAccess time.Time `json:"last_access"`
}

type runCache struct {
	cache *cache.Cache
	mu    sync.Mutex
	stats CacheStats
}

// NewEntityCache returns an empty cache whose entries never expire; it is
// discarded together with the run that owns it.
func NewEntityCache() EntityCache {
	return &runCache{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (c *runCache) Get(key string) (uint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()

	if data, found := c.cache.Get(key); found {
		if id, ok := data.(uint); ok {
			c.stats.Hits++
			return id, true
		}
	}

	c.stats.Misses++
	return 0, false
}

func (c *runCache) Set(key string, id uint) {
	c.cache.Set(key, id, cache.NoExpiration)
}

func (c *runCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.stats = CacheStats{}
}

func (c *runCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Size = c.cache.ItemCount()
	return c.stats
}

// Key joins key parts with ":"
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ":")
}

// RunCaches groups every entity cache used by one capture run
type RunCaches struct {
	CourtDivisions EntityCache
	CaseClasses    EntityCache
	HearingTypes   EntityCache
	HearingRooms   EntityCache
	Specialties    EntityCache
	Experts        EntityCache
	Cases          EntityCache
}

func NewRunCaches() *RunCaches {
	return &RunCaches{
		CourtDivisions: NewEntityCache(),
		CaseClasses:    NewEntityCache(),
		HearingTypes:   NewEntityCache(),
		HearingRooms:   NewEntityCache(),
		Specialties:    NewEntityCache(),
		Experts:        NewEntityCache(),
		Cases:          NewEntityCache(),
	}
}

// Stats reports per-cache statistics keyed by entity name
func (r *RunCaches) Stats() map[string]CacheStats {
	return map[string]CacheStats{
		"court_divisions": r.CourtDivisions.Stats(),
		"case_classes":    r.CaseClasses.Stats(),
		"hearing_types":   r.HearingTypes.Stats(),
		"hearing_rooms":   r.HearingRooms.Stats(),
		"specialties":     r.Specialties.Stats(),
		"experts":         r.Experts.Stats(),
		"cases":           r.Cases.Stats(),
	}
}
