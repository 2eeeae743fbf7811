package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/channel-reaper/internal/event"
	"github.com/p-blackswan/channel-reaper/internal/health"
	"github.com/p-blackswan/channel-reaper/internal/ops"
	slackpkg "github.com/p-blackswan/channel-reaper/internal/slack"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot over Slack Socket Mode",
	Long: `Connect to Slack over Socket Mode, keep the channel directory current from
workspace events and answer "list <N>days" and "archive <N>days" mentions.
Scheduled sweeps and the ops API are enabled by configuration.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	comp, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	botUserID, err := comp.client.AuthTest(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("bot_user_id", botUserID).
		Str("cache_backend", cfg.CacheBackend).
		Bool("audit", cfg.AuditEnabled()).
		Bool("sweep", cfg.SweepEnabled()).
		Str("ops_addr", cfg.OpsListenAddr).
		Msg("starting channel reaper")

	// Warm the directory so the first command does not start cold. Not fatal:
	// every command lists again anyway.
	if chs, err := comp.directory.ListAll(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial channel listing failed")
	} else {
		logger.Info().Int("channels", len(chs)).Msg("channel directory loaded")
	}

	router := event.NewRouter(comp.directory, comp.dispatcher, logger)
	if comp.store != nil && cfg.ArchiveLogRetention > 0 {
		router.WithRetention(comp.store, cfg.ArchiveLogRetention)
	}
	loop := event.NewLoop(cfg.EventQueueSize, router, comp.metrics, logger)

	scheduler := event.NewScheduler(loop, logger)
	if cfg.SweepEnabled() {
		channel, days := cfg.SweepReportChannel, cfg.SweepDays
		if err := scheduler.Add("sweep", cfg.SweepSchedule, func() event.Event {
			return event.Sweep(channel, days)
		}); err != nil {
			return err
		}
	}
	if comp.store != nil && cfg.ArchiveLogRetention > 0 && cfg.RetentionSchedule != "" {
		if err := scheduler.Add("retention", cfg.RetentionSchedule, func() event.Event {
			return event.New(event.KindRetention)
		}); err != nil {
			return err
		}
	}

	middleware := slackpkg.NewMiddleware(logger, cfg.CommandRateLimit, cfg.CommandRateWindow)
	handler := slackpkg.NewHandler(loop, middleware, comp.metrics, logger)
	slackApp := slackpkg.NewApp(comp.api, handler, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("event loop error")
		}
	}()

	if scheduler.Jobs() > 0 {
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
	}

	var opsServer *ops.Server
	if cfg.OpsListenAddr != "" {
		checker := health.NewChecker(logger)
		checker.Register("slack", health.FromError(func(ctx context.Context) error {
			_, err := comp.client.AuthTest(ctx)
			return err
		}))
		if comp.store != nil {
			checker.Register("store", health.FromError(comp.store.Ping))
		}
		checker.Register("event_queue", health.Backlog(loop.Pending, cfg.EventQueueSize*3/4))

		deps := ops.Deps{
			Channels:  comp.directory,
			Cache:     comp.cache,
			Publisher: loop,
			Checker:   checker,
			Metrics:   comp.metrics,
		}
		if comp.store != nil {
			deps.Archives = comp.store
		}

		opsServer = ops.NewServer(ops.ServerConfig{
			ListenAddr: cfg.OpsListenAddr,
			Auth:       ops.AuthConfig{Mode: cfg.OpsAuthMode, APIKey: cfg.OpsAPIKey},
			Sweep:      ops.SweepDefaults{ChannelID: cfg.SweepReportChannel, Days: cfg.SweepDays},
		}, deps, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := opsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("ops server error")
			}
		}()
	}

	slackErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := slackApp.Run(ctx); err != nil {
			slackErr <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err = <-slackErr:
		logger.Error().Err(err).Msg("Slack Socket Mode error, shutting down")
	}

	cancel()

	if opsServer != nil {
		if serr := opsServer.Shutdown(); serr != nil {
			logger.Error().Err(serr).Msg("ops server shutdown error")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("channel reaper stopped")
	return err
}
