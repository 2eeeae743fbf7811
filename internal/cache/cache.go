// Package cache keeps the last qualifying message seen for each channel so that
// recently active channels are not re-fetched on every sweep.
package cache

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-reaper/internal/models"
)

// ErrNoCache is returned by a Backend when nothing has been persisted yet.
// It is the "empty" result, as opposed to a read or decode failure.
var ErrNoCache = errors.New("no persisted cache")

// Entry is the cached state of one channel.
type Entry struct {
	LastMessage models.Message `json:"lastMessage"`
}

// Entries maps channel ID to its cache entry.
type Entries map[string]Entry

// Clone returns a shallow copy of the mapping.
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Backend is durable storage for the whole mapping.
type Backend interface {
	// Load returns the persisted mapping, or ErrNoCache when there is none.
	Load() (Entries, error)
	// Save overwrites the persisted mapping.
	Save(Entries) error
}

// Cache is the process-wide view of the persisted mapping. The backend is read
// at most once, on first access; a failed read leaves the cache empty until restart.
type Cache struct {
	backend  Backend
	logger   zerolog.Logger
	loadOnce sync.Once

	mu      sync.RWMutex
	entries Entries
}

// New creates a Cache over backend. Nothing is read until first use.
func New(backend Backend, logger zerolog.Logger) *Cache {
	return &Cache{
		backend: backend,
		logger:  logger.With().Str("component", "cache").Logger(),
	}
}

func (c *Cache) load() {
	entries, err := c.backend.Load()
	switch {
	case errors.Is(err, ErrNoCache):
		c.logger.Debug().Msg("no persisted cache, starting empty")
		entries = Entries{}
	case err != nil:
		c.logger.Warn().Err(err).Msg("failed to load cache, starting empty")
		entries = Entries{}
	case entries == nil:
		entries = Entries{}
	default:
		c.logger.Info().Int("entries", len(entries)).Msg("cache loaded")
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Get returns the entry for channelID.
func (c *Cache) Get(channelID string) (Entry, bool) {
	c.loadOnce.Do(c.load)

	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[channelID]
	return e, ok
}

// Put records entry for channelID and persists the whole mapping synchronously.
// The in-memory mapping is updated even when persisting fails.
func (c *Cache) Put(channelID string, entry Entry) error {
	c.loadOnce.Do(c.load)

	c.mu.Lock()
	c.entries[channelID] = entry
	snapshot := c.entries.Clone()
	c.mu.Unlock()

	return c.backend.Save(snapshot)
}

// Snapshot returns a copy of the current mapping.
func (c *Cache) Snapshot() Entries {
	c.loadOnce.Do(c.load)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Clone()
}

// Len returns the number of cached channels.
func (c *Cache) Len() int {
	c.loadOnce.Do(c.load)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry and persists the empty mapping.
func (c *Cache) Clear() error {
	c.loadOnce.Do(c.load)

	c.mu.Lock()
	c.entries = Entries{}
	c.mu.Unlock()

	return c.backend.Save(Entries{})
}
