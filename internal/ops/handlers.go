package ops

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-reaper/internal/cache"
	"github.com/p-blackswan/channel-reaper/internal/event"
	"github.com/p-blackswan/channel-reaper/internal/models"
	"github.com/p-blackswan/channel-reaper/internal/store"
)

// ChannelLister exposes the directory's current view.
type ChannelLister interface {
	Snapshot() []models.Channel
}

// CacheReader exposes the last-message cache.
type CacheReader interface {
	Snapshot() cache.Entries
}

// ArchiveLog lists recorded archive attempts.
type ArchiveLog interface {
	ListArchives(ctx context.Context, limit int) ([]store.ArchiveRecord, error)
}

// SweepPublisher queues events without blocking the request.
type SweepPublisher interface {
	TryPublish(ev event.Event) error
}

// Handlers holds the ops API route handlers.
type Handlers struct {
	channels  ChannelLister
	cache     CacheReader
	archives  ArchiveLog
	publisher SweepPublisher
	sweep     SweepDefaults
	logger    zerolog.Logger
}

// SweepDefaults fill in fields a sweep request leaves empty.
type SweepDefaults struct {
	ChannelID string
	Days      int
}

// ListChannels handles GET /api/v1/channels.
func (h *Handlers) ListChannels(c *fiber.Ctx) error {
	chs := h.channels.Snapshot()
	return c.JSON(ChannelsResponse{Channels: chs, Total: len(chs)})
}

// GetCache handles GET /api/v1/cache.
func (h *Handlers) GetCache(c *fiber.Ctx) error {
	entries := h.cache.Snapshot()
	return c.JSON(CacheResponse{Entries: entries, Total: len(entries)})
}

// ListArchives handles GET /api/v1/archives.
func (h *Handlers) ListArchives(c *fiber.Ctx) error {
	if h.archives == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"audit_disabled", "Not Found",
			"Archive audit log is not enabled (set DB_PATH)")
	}

	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 1000 {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_limit", "Bad Request",
			"limit must be between 1 and 1000")
	}

	recs, err := h.archives.ListArchives(c.UserContext(), limit)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []store.ArchiveRecord{}
	}
	return c.JSON(ArchivesResponse{Archives: recs, Total: len(recs)})
}

// TriggerSweep handles POST /api/v1/sweeps. The sweep runs on the event loop;
// the response only confirms it was queued.
func (h *Handlers) TriggerSweep(c *fiber.Ctx) error {
	var req SweepRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_body", "Bad Request",
				"Invalid request body: "+err.Error())
		}
	}

	channelID := req.ChannelID
	if channelID == "" {
		channelID = h.sweep.ChannelID
	}
	days := h.sweep.Days
	if req.Days != nil {
		days = *req.Days
	}

	if channelID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_channel", "Bad Request",
			"channel_id is required when no sweep report channel is configured")
	}
	if days < 0 {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_days", "Bad Request",
			"days must not be negative")
	}

	ev := event.Sweep(channelID, days)
	if err := h.publisher.TryPublish(ev); err != nil {
		if errors.Is(err, event.ErrQueueFull) {
			return problemResponse(c, fiber.StatusServiceUnavailable,
				"queue_full", "Service Unavailable",
				"Event queue is full, retry later")
		}
		return err
	}

	h.logger.Info().
		Str("event_id", ev.ID).
		Str("channel", channelID).
		Int("days", days).
		Msg("sweep queued via ops api")

	return c.Status(fiber.StatusAccepted).JSON(SweepResponse{
		EventID:   ev.ID,
		ChannelID: channelID,
		Days:      days,
	})
}
