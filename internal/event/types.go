// Package event carries every stimulus the reaper reacts to (Slack events,
// mentions, scheduled sweeps) through one sequential loop.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/p-blackswan/channel-reaper/internal/models"
)

// Kind identifies what happened.
type Kind string

const (
	KindMessage          Kind = "message"
	KindMention          Kind = "mention"
	KindChannelCreated   Kind = "channel_created"
	KindChannelArchive   Kind = "channel_archive"
	KindChannelUnarchive Kind = "channel_unarchive"
	KindChannelLeft      Kind = "channel_left"
	KindChannelDeleted   Kind = "channel_deleted"
	KindChannelRename    Kind = "channel_rename"
	KindSweep            Kind = "sweep"
	KindRetention        Kind = "retention"
)

// Event is one unit of work for the loop. Fields beyond Kind are filled
// according to the kind.
type Event struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	ChannelID   string          `json:"channel_id,omitempty"`
	ChannelName string          `json:"channel_name,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	Text        string          `json:"text,omitempty"`
	ThreadTS    string          `json:"thread_ts,omitempty"`
	Message     *models.Message `json:"message,omitempty"`
	Days        int             `json:"days,omitempty"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// New returns an event of the given kind with a fresh ID and timestamp.
func New(kind Kind) Event {
	return Event{
		ID:         "evt_" + uuid.NewString(),
		Kind:       kind,
		ReceivedAt: time.Now().UTC(),
	}
}

// Sweep builds the event that asks for a read-only report to channelID.
func Sweep(channelID string, days int) Event {
	ev := New(KindSweep)
	ev.ChannelID = channelID
	ev.Days = days
	return ev
}
