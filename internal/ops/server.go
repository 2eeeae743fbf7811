// Package ops serves the reaper's operational HTTP API: probes, Prometheus
// metrics, read-only views of the directory, cache and archive log, and a
// manual sweep trigger.
package ops

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-reaper/internal/health"
	"github.com/p-blackswan/channel-reaper/internal/metrics"
	"github.com/p-blackswan/channel-reaper/internal/requestid"
)

// DefaultListenAddr is used when ServerConfig.ListenAddr is empty.
const DefaultListenAddr = ":8080"

// ServerConfig holds configuration for the ops server.
type ServerConfig struct {
	ListenAddr string
	Auth       AuthConfig
	Sweep      SweepDefaults
}

// Deps are the components the ops API reads from or publishes to.
// Archives may be nil when the audit log is disabled.
type Deps struct {
	Channels  ChannelLister
	Cache     CacheReader
	Archives  ArchiveLog
	Publisher SweepPublisher
	Checker   *health.Checker
	Metrics   *metrics.Metrics
}

// Server is the ops API Fiber application.
type Server struct {
	app    *fiber.App
	logger zerolog.Logger
	config ServerConfig
}

// NewServer creates and configures the ops server.
func NewServer(cfg ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "ops_server").Logger()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
	})

	s := &Server{
		app:    app,
		logger: logger,
		config: cfg,
	}

	h := &Handlers{
		channels:  deps.Channels,
		cache:     deps.Cache,
		archives:  deps.Archives,
		publisher: deps.Publisher,
		sweep:     cfg.Sweep,
		logger:    logger,
	}

	s.setupMiddleware(cfg)
	s.setupRoutes(h, deps)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID: honour the caller's header, otherwise generate one.
	s.app.Use(func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if id := c.Get(requestid.Header); id != "" {
			ctx = requestid.WithRequestID(ctx, strings.Clone(id))
		}
		ctx, reqID := requestid.Ensure(ctx)
		c.SetUserContext(ctx)
		c.Set(requestid.Header, reqID)
		return c.Next()
	})

	s.app.Use(NewAuthMiddleware(cfg.Auth, s.logger))

	s.app.Use(func(c *fiber.Ctx) error {
		if isProbe(c.Path()) {
			return c.Next()
		}

		s.logger.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Str("request_id", requestid.FromContext(c.UserContext())).
			Msg("ops api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, deps Deps) {
	checker := deps.Checker
	if checker == nil {
		checker = health.NewChecker(s.logger)
	}
	s.app.Get("/healthz", health.LivenessHandler())
	s.app.Get("/readyz", checker.ReadinessHandler())

	if deps.Metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	v1 := s.app.Group("/api/v1")
	v1.Get("/channels", h.ListChannels)
	v1.Get("/cache", h.GetCache)
	v1.Get("/archives", h.ListArchives)
	v1.Post("/sweeps", h.TriggerSweep)
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = DefaultListenAddr
	}

	s.logger.Info().Str("addr", addr).Msg("ops server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("ops server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		if code == fiber.StatusInternalServerError {
			return problemResponse(c, code, "internal_error",
				"Internal Server Error", "An internal error occurred")
		}
		return problemResponse(c, code, "request_failed", "Request Failed", err.Error())
	}
}
