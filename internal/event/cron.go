package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Publisher accepts events for the loop.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec checks a cron expression ("0 9 * * MON", "@daily", "@every 6h").
func ValidateSpec(spec string) error {
	if _, err := specParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Scheduler publishes events on cron schedules. It never does work itself;
// everything runs on the loop.
type Scheduler struct {
	cron   *cron.Cron
	pub    Publisher
	logger zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	started bool
	jobs    map[string]cron.EntryID
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(pub Publisher, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithParser(specParser)),
		pub:    pub,
		logger: logger.With().Str("component", "scheduler").Logger(),
		ctx:    context.Background(),
		jobs:   make(map[string]cron.EntryID),
	}
}

// Add registers a named job that publishes build() on spec.
func (s *Scheduler) Add(name, spec string, build func() Event) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already scheduled", name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.fire(name, build) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	s.jobs[name] = id
	s.logger.Info().Str("job", name).Str("spec", spec).Msg("job scheduled")
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) fire(name string, build func() Event) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	ev := build()
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("failed to publish scheduled event")
		return
	}
	s.logger.Debug().Str("job", name).Str("event_id", ev.ID).Msg("scheduled event published")
}

// Start runs the schedule until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("jobs", s.Jobs()).Msg("scheduler started")

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.logger.Info().Msg("scheduler stopped")
	}()
	return nil
}
