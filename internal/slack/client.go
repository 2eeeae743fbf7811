package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	perrors "github.com/p-blackswan/channel-reaper/internal/errors"
	"github.com/p-blackswan/channel-reaper/internal/models"
)

// API is the subset of *slack.Client the reaper calls.
type API interface {
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	JoinConversationContext(ctx context.Context, channelID string) (*slack.Channel, string, []string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	ArchiveConversationContext(ctx context.Context, channelID string) error
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
}

// DefaultPageLimit is the conversations.list page size.
const DefaultPageLimit = 1000

// Client adapts the Slack Web API to the directory, evaluator and command
// interfaces. Transient Slack failures come back as *perrors.APIError so the
// retry policy can recognise them.
type Client struct {
	api       API
	pageLimit int
	logger    zerolog.Logger
}

// NewClient wraps api.
func NewClient(api API, pageLimit int, logger zerolog.Logger) *Client {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &Client{
		api:       api,
		pageLimit: pageLimit,
		logger:    logger.With().Str("component", "slack.client").Logger(),
	}
}

// ListChannels returns one page of public, non-archived channels.
func (c *Client) ListChannels(ctx context.Context, cursor string) ([]models.Channel, string, error) {
	chans, next, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Cursor:          cursor,
		ExcludeArchived: true,
		Limit:           c.pageLimit,
		Types:           []string{"public_channel"},
	})
	if err != nil {
		return nil, "", classify("conversations.list", err)
	}

	out := make([]models.Channel, 0, len(chans))
	for _, ch := range chans {
		out = append(out, models.Channel{
			ID:         ch.ID,
			Name:       ch.Name,
			IsMember:   ch.IsMember,
			IsArchived: ch.IsArchived,
			IsGeneral:  ch.IsGeneral,
		})
	}
	return out, next, nil
}

// JoinChannel joins a public channel.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	_, warning, _, err := c.api.JoinConversationContext(ctx, channelID)
	if err != nil {
		return classify("conversations.join", err)
	}
	if warning != "" {
		c.logger.Debug().Str("channel", channelID).Str("warning", warning).Msg("join warning")
	}
	return nil
}

// RecentMessages returns up to limit messages, newest first.
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]models.Message, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, classify("conversations.history", err)
	}

	out := make([]models.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, models.Message{
			TS:      m.Timestamp,
			User:    m.User,
			SubType: m.SubType,
			BotID:   m.BotID,
		})
	}
	return out, nil
}

// ArchiveChannel archives a channel. A channel that is already archived counts as done.
func (c *Client) ArchiveChannel(ctx context.Context, channelID string) error {
	err := c.api.ArchiveConversationContext(ctx, channelID)
	var se slack.SlackErrorResponse
	if errors.As(err, &se) && se.Err == "already_archived" {
		return nil
	}
	if err != nil {
		return classify("conversations.archive", err)
	}
	return nil
}

// PostMessage posts text, threaded when threadTS is set, and returns the message timestamp.
func (c *Client) PostMessage(channelID, text, threadTS string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessage(channelID, opts...)
	if err != nil {
		return "", classify("chat.postMessage", err)
	}
	return ts, nil
}

// PostBlocks posts a Block Kit message with a plain-text fallback.
func (c *Client) PostBlocks(channelID, threadTS, fallbackText string, blocks ...slack.Block) (string, error) {
	opts := []slack.MsgOption{
		slack.MsgOptionText(fallbackText, false),
		slack.MsgOptionBlocks(blocks...),
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessage(channelID, opts...)
	if err != nil {
		return "", classify("chat.postMessage", err)
	}
	return ts, nil
}

// AuthTest verifies the bot token and returns the bot's user ID.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", classify("auth.test", err)
	}
	return resp.UserID, nil
}

// classify turns Slack's transient error codes into retryable API errors and
// maps the permanent ones the reaper can meet onto sentinels.
// Everything else is wrapped unchanged.
func classify(method string, err error) error {
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		switch se.Err {
		case "not_in_channel":
			return fmt.Errorf("%s: %w: %w", method, perrors.ErrNotMember, err)
		case "channel_not_found":
			return fmt.Errorf("%s: %w: %w", method, perrors.ErrNotFound, err)
		case "invalid_cursor", "invalid_limit", "invalid_arguments":
			return fmt.Errorf("%s: %w: %w", method, perrors.ErrInvalidInput, err)
		case "ratelimited":
			return &perrors.APIError{Service: "slack", StatusCode: http.StatusTooManyRequests, Message: method, Err: err}
		case "internal_error", "fatal_error", "service_unavailable", "request_timeout":
			return &perrors.APIError{Service: "slack", StatusCode: http.StatusServiceUnavailable, Message: method, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", method, err)
}
