package event

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-reaper/internal/models"
)

// Directory is the channel map the router keeps current.
type Directory interface {
	RecordMessage(channelID string, msg models.Message)
	Forget(channelID string)
	HandleCreated(ctx context.Context, channelID, name string) error
	HandleUnarchived(ctx context.Context, channelID string) error
	HandleLeft(ctx context.Context, channelID string) error
	HandleArchived(channelID string)
	HandleRenamed(channelID, name string)
}

// Commands runs chat commands and reports.
type Commands interface {
	HandleMention(ctx context.Context, channelID, userID, text, threadTS string) error
	RunReport(ctx context.Context, channelID string, days int) error
}

// Pruner trims the archive audit log.
type Pruner interface {
	RunRetention(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Router is the loop's Handler: one case per event kind.
type Router struct {
	dir       Directory
	commands  Commands
	pruner    Pruner
	retention time.Duration
	logger    zerolog.Logger
}

// NewRouter creates a Router.
func NewRouter(dir Directory, commands Commands, logger zerolog.Logger) *Router {
	return &Router{
		dir:      dir,
		commands: commands,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// WithRetention enables KindRetention events.
func (r *Router) WithRetention(p Pruner, maxAge time.Duration) *Router {
	r.pruner = p
	r.retention = maxAge
	return r
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, ev Event) {
	log := r.logger.With().Str("event_id", ev.ID).Str("kind", string(ev.Kind)).Str("channel", ev.ChannelID).Logger()

	var err error
	switch ev.Kind {
	case KindMessage:
		if ev.Message != nil {
			r.dir.RecordMessage(ev.ChannelID, *ev.Message)
		}
	case KindMention:
		err = r.commands.HandleMention(ctx, ev.ChannelID, ev.UserID, ev.Text, ev.ThreadTS)
	case KindChannelCreated:
		err = r.dir.HandleCreated(ctx, ev.ChannelID, ev.ChannelName)
	case KindChannelUnarchive:
		err = r.dir.HandleUnarchived(ctx, ev.ChannelID)
	case KindChannelLeft:
		err = r.dir.HandleLeft(ctx, ev.ChannelID)
	case KindChannelArchive:
		r.dir.HandleArchived(ev.ChannelID)
	case KindChannelRename:
		r.dir.HandleRenamed(ev.ChannelID, ev.ChannelName)
	case KindChannelDeleted:
		r.dir.Forget(ev.ChannelID)
	case KindSweep:
		if ev.ChannelID == "" {
			log.Warn().Msg("sweep without report channel, skipping")
			return
		}
		err = r.commands.RunReport(ctx, ev.ChannelID, ev.Days)
	case KindRetention:
		if r.pruner == nil {
			return
		}
		_, err = r.pruner.RunRetention(ctx, r.retention)
	default:
		log.Warn().Msg("unhandled event kind")
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("event handling failed")
	}
}
