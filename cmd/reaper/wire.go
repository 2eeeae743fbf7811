package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/p-blackswan/channel-reaper/internal/cache"
	"github.com/p-blackswan/channel-reaper/internal/command"
	"github.com/p-blackswan/channel-reaper/internal/config"
	"github.com/p-blackswan/channel-reaper/internal/directory"
	"github.com/p-blackswan/channel-reaper/internal/disuse"
	"github.com/p-blackswan/channel-reaper/internal/metrics"
	"github.com/p-blackswan/channel-reaper/internal/policy"
	"github.com/p-blackswan/channel-reaper/internal/retry"
	slackpkg "github.com/p-blackswan/channel-reaper/internal/slack"
	"github.com/p-blackswan/channel-reaper/internal/store"
)

// components are the pieces every subcommand shares.
type components struct {
	metrics    *metrics.Metrics
	api        *slack.Client
	client     *slackpkg.Client
	store      *store.Store // nil unless DB_PATH is set
	cache      *cache.Cache
	directory  *directory.Directory
	evaluator  *disuse.Evaluator
	dispatcher *command.Dispatcher
}

func buildComponents(c *config.Config, logger zerolog.Logger) (*components, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	pol, err := policy.Load(c.PolicyFile)
	if err != nil {
		return nil, err
	}

	comp := &components{metrics: metrics.New()}

	comp.store, comp.cache, err = openCache(c, logger)
	if err != nil {
		return nil, err
	}

	comp.api = slackpkg.NewAPI(c.SlackBotToken, c.SlackAppToken)
	comp.client = slackpkg.NewClient(comp.api, c.ListPageLimit, logger)

	retryCfg := retry.Fixed(c.APIBackoff)
	comp.directory = directory.New(comp.client, retryCfg, comp.metrics, logger)
	comp.evaluator = disuse.New(comp.client, comp.cache, disuse.Config{
		HistoryLimit: c.HistoryLimit,
		Retry:        retryCfg,
	}, comp.metrics, logger)

	comp.dispatcher = command.NewDispatcher(comp.evaluator, comp.directory, comp.client, comp.client, pol, comp.metrics, logger)
	if comp.store != nil {
		comp.dispatcher.WithAudit(comp.store)
	}

	logger.Debug().
		Str("cache_backend", c.CacheBackend).
		Bool("audit", c.AuditEnabled()).
		Int("min_archive_days", pol.MinArchiveDays).
		Int("protected", len(pol.ProtectedChannels)).
		Msg("components ready")

	return comp, nil
}

// openCache builds the cache over the configured backend, plus the store when
// DB_PATH is set. It needs no Slack settings, so the cache subcommands use it
// directly. The returned store is nil without DB_PATH.
func openCache(c *config.Config, logger zerolog.Logger) (*store.Store, *cache.Cache, error) {
	if err := c.ValidateCache(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	var st *store.Store
	if c.DBPath != "" {
		var err error
		st, err = store.New(c.DBPath, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	var backend cache.Backend
	switch c.CacheBackend {
	case config.BackendSQLite:
		backend = st.CacheTable()
	default:
		backend = cache.NewFileBackend(c.CacheFile)
	}
	return st, cache.New(backend, logger), nil
}

func (c *components) Close() {
	if c.store != nil {
		_ = c.store.Close()
	}
}
