package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-reaper/internal/metrics"
)

// ErrQueueFull is returned by TryPublish when the queue has no room.
var ErrQueueFull = errors.New("event queue full")

// DefaultQueueSize is used when NewLoop is given a non-positive size.
const DefaultQueueSize = 256

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

func (f HandlerFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }

// Loop is a bounded queue with a single consumer. Events are handled one at a
// time in arrival order, so handlers never run concurrently with each other.
type Loop struct {
	queue   chan Event
	handler Handler
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewLoop creates a loop that feeds handler.
func NewLoop(size int, handler Handler, m *metrics.Metrics, logger zerolog.Logger) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		queue:   make(chan Event, size),
		handler: handler,
		metrics: m,
		logger:  logger.With().Str("component", "event_loop").Logger(),
	}
}

// Publish enqueues ev, blocking while the queue is full.
func (l *Loop) Publish(ctx context.Context, ev Event) error {
	select {
	case l.queue <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", ev.Kind, ctx.Err())
	}
}

// TryPublish enqueues ev without blocking.
func (l *Loop) TryPublish(ev Event) error {
	select {
	case l.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued events.
func (l *Loop) Pending() int {
	return len(l.queue)
}

// Run consumes events until ctx is cancelled. Events still queued at that
// point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().Int("capacity", cap(l.queue)).Msg("event loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Int("dropped", len(l.queue)).Msg("event loop stopped")
			return nil
		case ev := <-l.queue:
			l.dispatch(ctx, ev)
		}
	}
}

func (l *Loop) dispatch(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Str("event_id", ev.ID).
				Str("kind", string(ev.Kind)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()

	l.metrics.RecordEvent(string(ev.Kind))
	l.logger.Debug().Str("event_id", ev.ID).Str("kind", string(ev.Kind)).Str("channel", ev.ChannelID).Msg("handling event")
	l.handler.Handle(ctx, ev)
}
