// Package directory tracks the public channels of the workspace and keeps the
// bot joined to them.
package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-reaper/internal/metrics"
	"github.com/p-blackswan/channel-reaper/internal/models"
	"github.com/p-blackswan/channel-reaper/internal/retry"
)

// Platform is the part of the chat API the directory needs.
type Platform interface {
	// ListChannels returns one page of public, non-archived channels and the
	// cursor of the next page ("" on the last page).
	ListChannels(ctx context.Context, cursor string) ([]models.Channel, string, error)
	JoinChannel(ctx context.Context, channelID string) error
}

// Message subtypes that edit history rather than add to it.
const (
	subTypeChanged = "message_changed"
	subTypeDeleted = "message_deleted"
)

// Directory is the in-memory channel map. Mutations come from the event loop;
// the lock exists for concurrent readers such as the ops server.
type Directory struct {
	platform Platform
	retry    retry.Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu       sync.RWMutex
	channels map[string]*models.Channel
}

// New creates an empty Directory. retryCfg governs join attempts.
func New(platform Platform, retryCfg retry.Config, m *metrics.Metrics, logger zerolog.Logger) *Directory {
	return &Directory{
		platform: platform,
		retry:    retryCfg,
		metrics:  m,
		logger:   logger.With().Str("component", "directory").Logger(),
		channels: make(map[string]*models.Channel),
	}
}

// ListAll pages through every public, non-archived channel and returns them in
// listing order. Each listed channel is upserted into the directory.
func (d *Directory) ListAll(ctx context.Context) ([]models.Channel, error) {
	var (
		all    []models.Channel
		cursor string
		pages  int
	)
	for {
		page, next, err := d.platform.ListChannels(ctx, cursor)
		if err != nil {
			d.metrics.RecordAPIFailure("list")
			return nil, fmt.Errorf("list channels (page %d): %w", pages+1, err)
		}
		pages++
		for _, ch := range page {
			if ch.IsArchived {
				continue
			}
			all = append(all, d.upsert(ch))
		}
		if next == "" {
			break
		}
		cursor = next
	}

	d.logger.Debug().Int("channels", len(all)).Int("pages", pages).Msg("listed channels")
	return all, nil
}

// upsert merges a listed channel into the map and returns the merged copy.
// The listing carries no message, so a known Latest is kept.
func (d *Directory) upsert(ch models.Channel) models.Channel {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.channels[ch.ID]; ok && ch.Latest == nil {
		ch.Latest = existing.Latest
	}
	c := ch
	d.channels[ch.ID] = &c
	d.metrics.SetDirectoryChannels(len(d.channels))
	return c
}

// EnsureJoined joins channelID unless the bot is already a member. A transient
// failure is retried once after the configured pause. The remaining error is
// logged and returned; callers are expected to carry on.
func (d *Directory) EnsureJoined(ctx context.Context, channelID string) error {
	if ch, ok := d.Get(channelID); ok && ch.IsMember {
		return nil
	}

	cfg := d.retry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		d.logger.Warn().Err(err).Str("channel", channelID).Dur("backoff", delay).Msg("join failed, retrying")
	}

	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		return d.platform.JoinChannel(ctx, channelID)
	})
	if err != nil {
		d.metrics.RecordJoin("failed")
		d.metrics.RecordAPIFailure("join")
		d.logger.Error().Err(err).Str("channel", channelID).Msg("failed to join channel")
		return fmt.Errorf("join %s: %w", channelID, err)
	}

	d.mu.Lock()
	ch, ok := d.channels[channelID]
	if !ok {
		ch = &models.Channel{ID: channelID}
		d.channels[channelID] = ch
	}
	ch.IsMember = true
	d.metrics.SetDirectoryChannels(len(d.channels))
	d.mu.Unlock()

	d.metrics.RecordJoin("ok")
	d.logger.Info().Str("channel", channelID).Msg("joined channel")
	return nil
}

// RecordMessage stores msg as the latest message of a known channel.
// Edits, deletions and join notices are not activity and are ignored.
func (d *Directory) RecordMessage(channelID string, msg models.Message) {
	if msg.SubType == subTypeChanged || msg.SubType == subTypeDeleted || msg.IsJoin() {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.channels[channelID]
	if !ok {
		return
	}
	m := msg
	ch.Latest = &m
}

// Forget removes the channel.
func (d *Directory) Forget(channelID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channels, channelID)
	d.metrics.SetDirectoryChannels(len(d.channels))
}

// HandleCreated registers a newly created channel and joins it.
func (d *Directory) HandleCreated(ctx context.Context, channelID, name string) error {
	d.update(channelID, func(ch *models.Channel) {
		ch.Name = name
		ch.IsArchived = false
	})
	return d.EnsureJoined(ctx, channelID)
}

// HandleUnarchived marks the channel active again and rejoins it.
// Archiving removes every member, so membership is reset.
func (d *Directory) HandleUnarchived(ctx context.Context, channelID string) error {
	d.update(channelID, func(ch *models.Channel) {
		ch.IsArchived = false
		ch.IsMember = false
	})
	return d.EnsureJoined(ctx, channelID)
}

// HandleLeft rejoins a channel the bot was removed from.
func (d *Directory) HandleLeft(ctx context.Context, channelID string) error {
	d.update(channelID, func(ch *models.Channel) {
		ch.IsMember = false
	})
	return d.EnsureJoined(ctx, channelID)
}

// HandleArchived flags the channel archived; it drops out of Snapshot.
func (d *Directory) HandleArchived(channelID string) {
	d.update(channelID, func(ch *models.Channel) {
		ch.IsArchived = true
		ch.IsMember = false
	})
}

// HandleRenamed updates the display name.
func (d *Directory) HandleRenamed(channelID, name string) {
	d.update(channelID, func(ch *models.Channel) {
		ch.Name = name
	})
}

func (d *Directory) update(channelID string, fn func(ch *models.Channel)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.channels[channelID]
	if !ok {
		ch = &models.Channel{ID: channelID}
		d.channels[channelID] = ch
	}
	fn(ch)
	d.metrics.SetDirectoryChannels(len(d.channels))
}

// Get returns a copy of the channel.
func (d *Directory) Get(channelID string) (models.Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.channels[channelID]
	if !ok {
		return models.Channel{}, false
	}
	return *ch, true
}

// Snapshot returns the non-archived channels sorted by name.
func (d *Directory) Snapshot() []models.Channel {
	d.mu.RLock()
	out := make([]models.Channel, 0, len(d.channels))
	for _, ch := range d.channels {
		if ch.IsArchived {
			continue
		}
		out = append(out, *ch)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
