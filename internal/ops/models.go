package ops

import (
	"github.com/p-blackswan/channel-reaper/internal/cache"
	"github.com/p-blackswan/channel-reaper/internal/models"
	"github.com/p-blackswan/channel-reaper/internal/store"
)

// ChannelsResponse is the body of GET /api/v1/channels.
type ChannelsResponse struct {
	Channels []models.Channel `json:"channels"`
	Total    int              `json:"total"`
}

// CacheResponse is the body of GET /api/v1/cache.
type CacheResponse struct {
	Entries cache.Entries `json:"entries"`
	Total   int           `json:"total"`
}

// ArchivesResponse is the body of GET /api/v1/archives.
type ArchivesResponse struct {
	Archives []store.ArchiveRecord `json:"archives"`
	Total    int                   `json:"total"`
}

// SweepRequest is the optional body of POST /api/v1/sweeps. Zero values fall
// back to the configured sweep channel and threshold.
type SweepRequest struct {
	ChannelID string `json:"channel_id"`
	Days      *int   `json:"days"`
}

// SweepResponse acknowledges a queued sweep.
type SweepResponse struct {
	EventID   string `json:"event_id"`
	ChannelID string `json:"channel_id"`
	Days      int    `json:"days"`
}

// ProblemDetail is an RFC 7807 error body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
