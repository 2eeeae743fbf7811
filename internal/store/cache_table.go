package store

import (
	"fmt"
	"time"

	"github.com/p-blackswan/channel-reaper/internal/cache"
	"github.com/p-blackswan/channel-reaper/internal/models"
)

// CacheTable persists the channel cache in the channel_cache table.
// It implements cache.Backend.
type CacheTable struct {
	s *Store
}

// CacheTable returns the cache backend backed by this store.
func (s *Store) CacheTable() *CacheTable {
	return &CacheTable{s: s}
}

// Load reads every row. An empty table is reported as cache.ErrNoCache.
func (t *CacheTable) Load() (cache.Entries, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	rows, err := t.s.db.Query(`SELECT channel_id, last_ts, last_user, last_subtype, last_bot_id FROM channel_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel cache: %w", err)
	}
	defer rows.Close()

	entries := cache.Entries{}
	for rows.Next() {
		var id string
		var msg models.Message
		if err := rows.Scan(&id, &msg.TS, &msg.User, &msg.SubType, &msg.BotID); err != nil {
			return nil, fmt.Errorf("failed to scan channel cache row: %w", err)
		}
		entries[id] = cache.Entry{LastMessage: msg}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read channel cache: %w", err)
	}

	if len(entries) == 0 {
		return nil, cache.ErrNoCache
	}
	return entries, nil
}

// Save replaces the table contents with entries in a single transaction.
func (t *CacheTable) Save(entries cache.Entries) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	tx, err := t.s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM channel_cache`); err != nil {
		return fmt.Errorf("failed to clear channel cache: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO channel_cache (channel_id, last_ts, last_user, last_subtype, last_bot_id, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for id, e := range entries {
		m := e.LastMessage
		if _, err := stmt.Exec(id, m.TS, m.User, m.SubType, m.BotID, now); err != nil {
			return fmt.Errorf("failed to save cache entry %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit channel cache: %w", err)
	}
	return nil
}
