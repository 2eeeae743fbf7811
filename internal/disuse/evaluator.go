// Package disuse decides whether a channel has gone quiet for longer than a
// threshold, using the channel cache to avoid re-reading history.
package disuse

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-reaper/internal/cache"
	perrors "github.com/p-blackswan/channel-reaper/internal/errors"
	"github.com/p-blackswan/channel-reaper/internal/metrics"
	"github.com/p-blackswan/channel-reaper/internal/models"
	"github.com/p-blackswan/channel-reaper/internal/retry"
)

const dayMillis int64 = 86_400_000

// DefaultHistoryLimit is how many recent messages are read per evaluation.
const DefaultHistoryLimit = 10

// HistoryFetcher reads recent channel history, newest first.
type HistoryFetcher interface {
	RecentMessages(ctx context.Context, channelID string, limit int) ([]models.Message, error)
}

// Directory is the channel source used by a sweep.
type Directory interface {
	ListAll(ctx context.Context) ([]models.Channel, error)
	EnsureJoined(ctx context.Context, channelID string) error
}

// Config tunes the evaluator.
type Config struct {
	HistoryLimit int
	Retry        retry.Config
}

// Evaluator applies the disuse rule to channels.
type Evaluator struct {
	history HistoryFetcher
	cache   *cache.Cache
	cfg     Config
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates an Evaluator.
func New(history HistoryFetcher, c *cache.Cache, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Evaluator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Evaluator{
		history: history,
		cache:   c,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With().Str("component", "disuse").Logger(),
		now:     time.Now,
	}
}

// IsOld reports whether msg is more than days old at now, compared in
// milliseconds. A threshold too large to represent is never exceeded, and an
// unparseable timestamp is never old.
func IsOld(msg models.Message, days int, now time.Time) bool {
	t, err := msg.Time()
	if err != nil {
		return false
	}
	if int64(days) > math.MaxInt64/dayMillis {
		return false
	}
	return now.UnixMilli()-t.UnixMilli() > int64(days)*dayMillis
}

// LastQualifying returns the newest message that is not a join notice.
func LastQualifying(msgs []models.Message) (models.Message, bool) {
	for _, m := range msgs {
		if !m.IsJoin() {
			return m, true
		}
	}
	return models.Message{}, false
}

// IsDisused reports whether channelID has had no qualifying message for more
// than days. Any failure to decide yields false.
func (e *Evaluator) IsDisused(ctx context.Context, channelID string, days int) bool {
	now := e.now()
	log := e.logger.With().Str("channel", channelID).Int("days", days).Logger()

	if entry, ok := e.cache.Get(channelID); ok {
		if !IsOld(entry.LastMessage, days, now) {
			e.metrics.RecordCacheLookup("hit")
			e.metrics.RecordEvaluation("active")
			return false
		}
		e.metrics.RecordCacheLookup("stale")
	} else {
		e.metrics.RecordCacheLookup("miss")
	}

	msgs, err := e.fetch(ctx, channelID)
	if err != nil {
		e.metrics.RecordAPIFailure("history")
		e.metrics.RecordEvaluation("skipped")
		if errors.Is(err, perrors.ErrNotMember) {
			log.Warn().Msg("bot is not a member, history unavailable")
			return false
		}
		log.Error().Err(err).Msg("failed to read channel history")
		return false
	}

	last, ok := LastQualifying(msgs)
	if !ok {
		e.metrics.RecordEvaluation("skipped")
		log.Debug().Int("messages", len(msgs)).Msg("no qualifying message")
		return false
	}

	old := IsOld(last, days, now)
	if err := e.cache.Put(channelID, cache.Entry{LastMessage: last}); err != nil {
		log.Warn().Err(err).Msg("failed to persist cache")
	}

	if old {
		e.metrics.RecordEvaluation("disused")
	} else {
		e.metrics.RecordEvaluation("active")
	}
	log.Debug().Str("last_ts", last.TS).Bool("disused", old).Msg("evaluated channel")
	return old
}

func (e *Evaluator) fetch(ctx context.Context, channelID string) ([]models.Message, error) {
	cfg := e.cfg.Retry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		e.logger.Warn().Err(err).Str("channel", channelID).Dur("backoff", delay).Msg("history fetch failed, retrying")
	}

	var msgs []models.Message
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		var err error
		msgs, err = e.history.RecentMessages(ctx, channelID, e.cfg.HistoryLimit)
		return err
	})
	return msgs, err
}

// FindDisused lists every channel, joins the ones the bot is not in, and
// returns those that are disused, in listing order, each carrying its last
// qualifying message. Only a listing failure is an error; a cancelled context
// stops the sweep and returns what was found so far.
func (e *Evaluator) FindDisused(ctx context.Context, dir Directory, days int) ([]models.Channel, error) {
	channels, err := dir.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var disused []models.Channel
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return disused, err
		}
		if !ch.IsMember {
			// logged by the directory; history may still be readable
			_ = dir.EnsureJoined(ctx, ch.ID)
		}
		if !e.IsDisused(ctx, ch.ID, days) {
			continue
		}
		if entry, ok := e.cache.Get(ch.ID); ok {
			last := entry.LastMessage
			ch.Latest = &last
		}
		disused = append(disused, ch)
	}

	e.logger.Info().Int("days", days).Int("channels", len(channels)).Int("disused", len(disused)).Msg("sweep completed")
	return disused, nil
}
