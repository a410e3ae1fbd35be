package hue

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Index maps light and group names to bridge IDs.
// It does NOT fetch from network - the client refreshes it.
type Index struct {
	mu         sync.RWMutex
	lights     map[string]int   // name -> light ID
	lightNames map[int]string   // light ID -> name
	groups     map[string][]int // name -> member light IDs
	fetchedAt  time.Time
	ttl        time.Duration
}

// NewIndex creates a new name index.
// Parameters:
//   - ttl: Time-to-live for the whole index (0 = use default 5 minutes)
func NewIndex(ttl time.Duration) *Index {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	log.Debug().Dur("ttl", ttl).Msg("Bridge name index initialized")

	return &Index{
		lights:     make(map[string]int),
		lightNames: make(map[int]string),
		groups:     make(map[string][]int),
		ttl:        ttl,
	}
}

// LightID returns the ID of a light by name.
func (x *Index) LightID(name string) (int, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	id, ok := x.lights[name]
	return id, ok
}

// LightName returns the name of a light by ID.
func (x *Index) LightName(id int) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	name, ok := x.lightNames[id]
	return name, ok
}

// GroupLights returns the member light IDs of a group by name.
func (x *Index) GroupLights(name string) ([]int, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	ids, ok := x.groups[name]
	if !ok {
		return nil, false
	}
	return append([]int(nil), ids...), true
}

// Set replaces the index contents.
func (x *Index) Set(lights map[string]int, groups map[string][]int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.lights = lights
	x.groups = groups
	x.lightNames = make(map[int]string, len(lights))
	for name, id := range lights {
		x.lightNames[id] = name
	}
	x.fetchedAt = time.Now()
}

// IsStale returns true if the index is older than TTL or was never filled.
func (x *Index) IsStale() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.fetchedAt.IsZero() {
		return true
	}
	return time.Since(x.fetchedAt) > x.ttl
}

// Invalidate forces the next lookup to refresh.
func (x *Index) Invalidate() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.fetchedAt = time.Time{}
}
