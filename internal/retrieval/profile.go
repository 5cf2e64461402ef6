package retrieval

import (
	"maps"
	"sync"
	"time"

	"github.com/neuraplayapp/assistant-core/internal/model"
	"github.com/neuraplayapp/assistant-core/internal/taxonomy"
)

// Profile is a user's interest weights per category, normalized so the strongest is 1.
type Profile struct {
	UserID  string                     `json:"user_id"`
	Weights map[model.Category]float64 `json:"weights"`
	Built   time.Time                  `json:"built"`
}

func (p *Profile) clone() *Profile {
	return &Profile{UserID: p.UserID, Weights: maps.Clone(p.Weights), Built: p.Built}
}

// ProfileCache holds interest profiles. Cached profiles are never mutated: readers get a
// private copy and writers swap in a new one.
type ProfileCache struct {
	mu      sync.RWMutex
	entries map[string]*Profile
	ttl     time.Duration
	now     func() time.Time
}

// NewProfileCache creates a cache whose entries expire after ttl. A zero ttl never expires.
func NewProfileCache(ttl time.Duration) *ProfileCache {
	return &ProfileCache{entries: map[string]*Profile{}, ttl: ttl, now: time.Now}
}

func (c *ProfileCache) fresh(p *Profile) bool {
	return c.ttl <= 0 || c.now().Sub(p.Built) < c.ttl
}

// Get returns a copy of a user's live profile.
func (c *ProfileCache) Get(userID string) (*Profile, bool) {
	c.mu.RLock()
	p, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok || !c.fresh(p) {
		return nil, false
	}
	return p.clone(), true
}

// Build computes a profile from a user's records unless a live one already exists.
func (c *ProfileCache) Build(userID string, records []model.MemoryRecord) *Profile {
	if p, ok := c.Get(userID); ok {
		return p
	}
	counts := map[model.Category]float64{}
	for _, r := range records {
		if taxonomy.IsPersonal(r.Category) && r.Category != taxonomy.General {
			counts[r.Category]++
		}
	}
	p := &Profile{UserID: userID, Weights: normalize(counts), Built: c.now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another request may have built it meanwhile.
	if cur, ok := c.entries[userID]; ok && c.fresh(cur) {
		return cur.clone()
	}
	c.entries[userID] = p
	return p.clone()
}

// Observe merges categories the user just talked about into a new copy of the profile.
func (c *ProfileCache) Observe(userID string, cats ...model.Category) {
	if len(cats) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := &Profile{UserID: userID, Weights: map[model.Category]float64{}, Built: c.now()}
	if cur, ok := c.entries[userID]; ok && c.fresh(cur) {
		next = cur.clone()
	}
	for _, cat := range cats {
		next.Weights[cat]++
	}
	next.Weights = normalize(next.Weights)
	c.entries[userID] = next
}

// Invalidate drops a user's profile.
func (c *ProfileCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func normalize(w map[model.Category]float64) map[model.Category]float64 {
	top := 0.0
	for _, v := range w {
		if v > top {
			top = v
		}
	}
	out := make(map[model.Category]float64, len(w))
	for k, v := range w {
		if top > 0 {
			out[k] = v / top
		}
	}
	return out
}
