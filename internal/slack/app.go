// Package slack connects the reaper to Slack: the Socket Mode connection that
// delivers events, and the Web API adapter used by the directory, evaluator and commands.
package slack

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// NewAPI builds the Slack Web API client. appToken may be empty when Socket
// Mode is not used (CLI runs).
func NewAPI(botToken, appToken string) *slack.Client {
	opts := []slack.Option{}
	if appToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(appToken))
	}
	return slack.New(botToken, opts...)
}

// App is the Slack bot application using Socket Mode.
type App struct {
	socket  *socketmode.Client
	logger  zerolog.Logger
	handler *Handler
}

// NewApp creates the Socket Mode app over api and wires handler to acknowledge through it.
func NewApp(api *slack.Client, handler *Handler, logger zerolog.Logger) *App {
	socket := socketmode.New(api)
	handler.SetSocket(socket)

	return &App{
		socket:  socket,
		logger:  logger.With().Str("component", "slack").Logger(),
		handler: handler,
	}
}

// Run starts the Socket Mode event loop. Blocks until context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Msg("starting Slack Socket Mode connection")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-a.socket.Events:
				if !ok {
					return
				}
				a.handler.HandleEvent(ctx, evt)
			}
		}
	}()

	if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("socket mode error: %w", err)
	}
	a.logger.Info().Msg("Slack Socket Mode stopped")
	return nil
}
