package slack

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/p-blackswan/channel-reaper/internal/event"
	"github.com/p-blackswan/channel-reaper/internal/metrics"
	"github.com/p-blackswan/channel-reaper/internal/models"
)

// Publisher hands decoded events to the event loop. TryPublish must not block.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event) error
	TryPublish(ev event.Event) error
}

// Acker acknowledges Socket Mode requests.
type Acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// Handler decodes Socket Mode events into event.Events. It does no work
// itself: everything is published to the loop.
type Handler struct {
	socket     Acker
	pub        Publisher
	middleware *Middleware
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewHandler creates a new event handler.
func NewHandler(pub Publisher, middleware *Middleware, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		pub:        pub,
		middleware: middleware,
		metrics:    m,
		logger:     logger.With().Str("component", "slack.handler").Logger(),
	}
}

// SetSocket sets the Socket Mode client for acknowledging events.
func (h *Handler) SetSocket(s Acker) {
	h.socket = s
}

// HandleEvent routes Socket Mode events to the appropriate handler.
func (h *Handler) HandleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		h.handleEventsAPI(ctx, evt)
	case socketmode.EventTypeConnecting:
		h.logger.Info().Msg("connecting to Slack")
	case socketmode.EventTypeConnected:
		h.logger.Info().Msg("connected to Slack")
	case socketmode.EventTypeConnectionError:
		h.logger.Warn().Msg("Slack connection error, retrying")
	default:
		h.logger.Debug().Str("type", string(evt.Type)).Msg("unhandled event type")
	}
}

// handleEventsAPI processes Events API payloads.
func (h *Handler) handleEventsAPI(ctx context.Context, evt socketmode.Event) {
	// Slack requires the ack within 3 seconds
	if h.socket != nil && evt.Request != nil {
		h.socket.Ack(*evt.Request)
	}

	eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		h.logger.Warn().Str("type", string(evt.Type)).Msg("failed to cast events_api data")
		return
	}

	if eventsAPIEvent.Type != slackevents.CallbackEvent {
		return
	}
	if ev, ok := h.decode(eventsAPIEvent.InnerEvent); ok {
		h.publish(ctx, ev)
	}
}

// publish enqueues ev. Message events only refresh the directory's latest
// message, so they are dropped when the loop is backed up rather than
// stalling the socket reader; mentions and lifecycle events wait for room.
func (h *Handler) publish(ctx context.Context, ev event.Event) {
	if ev.Kind == event.KindMessage {
		err := h.pub.TryPublish(ev)
		if errors.Is(err, event.ErrQueueFull) {
			h.metrics.RecordEventDropped(string(ev.Kind))
			h.logger.Debug().Str("channel", ev.ChannelID).Msg("event queue full, message event dropped")
			return
		}
		if err != nil {
			h.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("failed to publish event")
		}
		return
	}

	if err := h.pub.Publish(ctx, ev); err != nil {
		h.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("failed to publish event")
	}
}

// decode maps a callback event to an event.Event. ok is false for events
// the reaper ignores.
func (h *Handler) decode(inner slackevents.EventsAPIInnerEvent) (event.Event, bool) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		if !h.middleware.CheckRateLimit(ev.User) {
			return event.Event{}, false
		}
		h.logger.Info().Str("user", ev.User).Str("channel", ev.Channel).Str("text", ev.Text).Msg("app mention received")

		out := event.New(event.KindMention)
		out.ChannelID = ev.Channel
		out.UserID = ev.User
		out.Text = ev.Text
		out.ThreadTS = ev.ThreadTimeStamp
		return out, true

	case *slackevents.MessageEvent:
		if ev.ChannelType != "" && ev.ChannelType != "channel" {
			return event.Event{}, false
		}
		out := event.New(event.KindMessage)
		out.ChannelID = ev.Channel
		out.UserID = ev.User
		out.Message = &models.Message{
			TS:      ev.TimeStamp,
			User:    ev.User,
			SubType: ev.SubType,
			BotID:   ev.BotID,
		}
		return out, true

	case *slackevents.ChannelCreatedEvent:
		out := event.New(event.KindChannelCreated)
		out.ChannelID = ev.Channel.ID
		out.ChannelName = ev.Channel.Name
		return out, true

	case *slackevents.ChannelArchiveEvent:
		return channelEvent(event.KindChannelArchive, ev.Channel), true

	case *slackevents.ChannelUnarchiveEvent:
		return channelEvent(event.KindChannelUnarchive, ev.Channel), true

	case *slackevents.ChannelLeftEvent:
		return channelEvent(event.KindChannelLeft, ev.Channel), true

	case *slackevents.ChannelDeletedEvent:
		return channelEvent(event.KindChannelDeleted, ev.Channel), true

	case *slackevents.ChannelRenameEvent:
		out := event.New(event.KindChannelRename)
		out.ChannelID = ev.Channel.ID
		out.ChannelName = ev.Channel.Name
		return out, true

	default:
		h.logger.Debug().Str("inner_type", inner.Type).Msg("unhandled callback event type")
		return event.Event{}, false
	}
}

func channelEvent(kind event.Kind, channelID string) event.Event {
	out := event.New(kind)
	out.ChannelID = channelID
	return out
}
