package strategy

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// Cache stores built matrices keyed by assessment ID. Concurrent writers
// for the same key are last-write-wins.
type Cache interface {
	Get(ctx context.Context, assessmentID string) (*Matrix, bool, error)
	Set(ctx context.Context, m *Matrix) error
	Delete(ctx context.Context, assessmentID string) error
	Clear(ctx context.Context) error
}

func encode(m *Matrix) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrapf(err, "strategy: marshal matrix %s", m.AssessmentID)
	}
	return data, nil
}

func decode(data []byte) (*Matrix, error) {
	var m Matrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "strategy: unmarshal matrix")
	}
	return &m, nil
}

type memEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCache is an in-process Cache. Entries are stored encoded so callers
// never share a matrix with the cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A zero ttl never expires entries.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, assessmentID string) (*Matrix, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[assessmentID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[assessmentID]; ok && cur.expires.Equal(e.expires) {
			delete(c.entries, assessmentID)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	m, err := decode(e.data)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, m *Matrix) error {
	data, err := encode(m)
	if err != nil {
		return err
	}
	e := memEntry{data: data}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[m.AssessmentID] = e
	c.mu.Unlock()
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, assessmentID string) error {
	c.mu.Lock()
	delete(c.entries, assessmentID)
	c.mu.Unlock()
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Matrix, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, *Matrix) error                 { return nil }
func (NopCache) Delete(context.Context, string) error               { return nil }
func (NopCache) Clear(context.Context) error                        { return nil }
