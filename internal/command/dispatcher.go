package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/p-blackswan/channel-reaper/internal/disuse"
	"github.com/p-blackswan/channel-reaper/internal/metrics"
	"github.com/p-blackswan/channel-reaper/internal/models"
	"github.com/p-blackswan/channel-reaper/internal/policy"
	"github.com/p-blackswan/channel-reaper/internal/requestid"
	"github.com/p-blackswan/channel-reaper/internal/store"
)

// Replies.
const (
	replyWait    = "hold on, checking channels…"
	replyUnknown = "??? try `list <N>days` or `archive <N>days`"
	replyFailed  = "could not list channels, try again later"
)

// ErrThresholdTooShort is returned by Archive when days is below the policy minimum.
var ErrThresholdTooShort = errors.New("archive threshold too short")

// Poster posts replies to Slack.
type Poster interface {
	PostMessage(channelID string, text string, threadTS string) (string, error)
	PostBlocks(channelID string, threadTS string, fallbackText string, blocks ...slack.Block) (string, error)
}

// Archiver archives a channel.
type Archiver interface {
	ArchiveChannel(ctx context.Context, channelID string) error
}

// Finder produces the disused channels in listing order.
type Finder interface {
	FindDisused(ctx context.Context, dir disuse.Directory, days int) ([]models.Channel, error)
}

// AuditLog records archive attempts.
type AuditLog interface {
	RecordArchive(ctx context.Context, rec *store.ArchiveRecord) error
}

// ArchiveResult summarises an archive run.
type ArchiveResult struct {
	Candidates []models.Channel
	Protected  []models.Channel
	Archived   []models.Channel
	Failed     []models.Channel
}

// Dispatcher runs commands against the evaluator and replies through the poster.
type Dispatcher struct {
	finder   Finder
	dir      disuse.Directory
	archiver Archiver
	poster   Poster
	policy   *policy.Policy
	audit    AuditLog
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewDispatcher creates a Dispatcher. A nil policy means policy.Default().
func NewDispatcher(finder Finder, dir disuse.Directory, archiver Archiver, poster Poster, pol *policy.Policy, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if pol == nil {
		pol = policy.Default()
	}
	return &Dispatcher{
		finder:   finder,
		dir:      dir,
		archiver: archiver,
		poster:   poster,
		policy:   pol,
		metrics:  m,
		logger:   logger.With().Str("component", "command").Logger(),
	}
}

// WithAudit records every archive attempt in a.
func (d *Dispatcher) WithAudit(a AuditLog) *Dispatcher {
	d.audit = a
	return d
}

// MinArchiveDays is the smallest threshold Archive accepts.
func (d *Dispatcher) MinArchiveDays() int {
	return d.policy.MinArchiveDays
}

// HandleMention parses text and runs the command, replying in channelID
// (in threadTS when the mention was threaded).
func (d *Dispatcher) HandleMention(ctx context.Context, channelID, userID, text, threadTS string) error {
	cmd := Parse(text)
	ctx, runID := requestid.Ensure(ctx)
	log := d.logger.With().
		Str("run_id", runID).
		Str("command", cmd.Kind.String()).
		Int("days", cmd.Days).
		Str("channel", channelID).
		Str("user", userID).
		Logger()
	log.Info().Msg("command received")

	start := time.Now()
	status := "ok"
	var err error

	switch cmd.Kind {
	case KindList:
		err = d.runList(ctx, channelID, threadTS, cmd.Days)
	case KindArchive:
		status, err = d.runArchive(ctx, channelID, userID, threadTS, cmd.Days, log)
	default:
		_, err = d.poster.PostMessage(channelID, replyUnknown, threadTS)
	}
	if err != nil {
		status = "error"
		log.Error().Err(err).Msg("command failed")
	}

	d.metrics.RecordCommand(cmd.Kind.String(), status, time.Since(start).Seconds())
	return err
}

// RunReport posts the list report for days to channelID. It never archives.
func (d *Dispatcher) RunReport(ctx context.Context, channelID string, days int) error {
	start := time.Now()
	err := d.runList(ctx, channelID, "", days)
	status := "ok"
	if err != nil {
		status = "error"
	}
	d.metrics.RecordCommand("report", status, time.Since(start).Seconds())
	return err
}

// Find returns the disused channels for days, split into archivable and protected.
func (d *Dispatcher) Find(ctx context.Context, days int) (allowed, protected []models.Channel, err error) {
	disused, err := d.finder.FindDisused(ctx, d.dir, days)
	if err != nil {
		return nil, nil, err
	}
	allowed, protected = d.policy.Filter(disused)
	return allowed, protected, nil
}

// Archive finds and archives the channels disused for days. It refuses
// thresholds below the policy minimum without touching the evaluator.
func (d *Dispatcher) Archive(ctx context.Context, days int, requestedBy string) (ArchiveResult, error) {
	if days < d.policy.MinArchiveDays {
		return ArchiveResult{}, fmt.Errorf("%w: %d < %d", ErrThresholdTooShort, days, d.policy.MinArchiveDays)
	}
	allowed, protected, err := d.Find(ctx, days)
	if err != nil {
		return ArchiveResult{}, err
	}
	res := d.archiveAll(ctx, allowed, days, requestedBy)
	res.Protected = protected
	return res, nil
}

func (d *Dispatcher) runList(ctx context.Context, channelID, threadTS string, days int) error {
	if _, err := d.poster.PostMessage(channelID, replyWait, threadTS); err != nil {
		return fmt.Errorf("post wait reply: %w", err)
	}

	allowed, protected, err := d.Find(ctx, days)
	if err != nil {
		if _, perr := d.poster.PostMessage(channelID, replyFailed, threadTS); perr != nil {
			d.logger.Warn().Err(perr).Msg("failed to post failure reply")
		}
		return fmt.Errorf("find disused: %w", err)
	}

	if err := d.postReport(channelID, threadTS, listText(days, allowed), allowed); err != nil {
		return err
	}
	return d.postProtected(channelID, threadTS, protected)
}

func (d *Dispatcher) runArchive(ctx context.Context, channelID, userID, threadTS string, days int, log zerolog.Logger) (string, error) {
	if days < d.policy.MinArchiveDays {
		log.Info().Int("min_days", d.policy.MinArchiveDays).Msg("archive threshold refused")
		_, err := d.poster.PostMessage(channelID, refusalText(days, d.policy.MinArchiveDays), threadTS)
		return "refused", err
	}

	if _, err := d.poster.PostMessage(channelID, replyWait, threadTS); err != nil {
		return "error", fmt.Errorf("post wait reply: %w", err)
	}

	allowed, protected, err := d.Find(ctx, days)
	if err != nil {
		if _, perr := d.poster.PostMessage(channelID, replyFailed, threadTS); perr != nil {
			log.Warn().Err(perr).Msg("failed to post failure reply")
		}
		return "error", fmt.Errorf("find disused: %w", err)
	}

	if err := d.postReport(channelID, threadTS, archiveText(days, allowed), allowed); err != nil {
		return "error", err
	}
	if err := d.postProtected(channelID, threadTS, protected); err != nil {
		return "error", err
	}

	res := d.archiveAll(ctx, allowed, days, userID)
	summary := fmt.Sprintf("archived %d of %d channels", len(res.Archived), len(res.Candidates))
	if len(res.Failed) > 0 {
		summary += fmt.Sprintf(" (failed: %s)", formatRefs(res.Failed))
	}
	if _, err := d.poster.PostMessage(channelID, summary, threadTS); err != nil {
		return "error", fmt.Errorf("post summary: %w", err)
	}
	return "ok", nil
}

// archiveAll archives channels in order. Failures are logged and counted; they
// never stop the run.
func (d *Dispatcher) archiveAll(ctx context.Context, channels []models.Channel, days int, requestedBy string) ArchiveResult {
	res := ArchiveResult{Candidates: channels}
	for _, ch := range channels {
		err := d.archiver.ArchiveChannel(ctx, ch.ID)
		rec := &store.ArchiveRecord{
			ChannelID:   ch.ID,
			ChannelName: ch.Name,
			Days:        days,
			RequestedBy: requestedBy,
			Result:      store.ArchiveOK,
		}
		if ch.Latest != nil {
			rec.LastMessageTS = ch.Latest.TS
		}

		if err != nil {
			res.Failed = append(res.Failed, ch)
			rec.Result = store.ArchiveFailed
			rec.Error = err.Error()
			d.metrics.RecordArchive("failed")
			d.metrics.RecordAPIFailure("archive")
			d.logger.Error().Err(err).Str("channel", ch.ID).Str("name", ch.Name).Msg("failed to archive channel")
		} else {
			res.Archived = append(res.Archived, ch)
			d.metrics.RecordArchive("ok")
			d.logger.Info().Str("channel", ch.ID).Str("name", ch.Name).Int("days", days).Msg("channel archived")
		}

		if d.audit != nil {
			if aerr := d.audit.RecordArchive(ctx, rec); aerr != nil {
				d.logger.Warn().Err(aerr).Str("channel", ch.ID).Msg("failed to record archive")
			}
		}
	}
	return res
}

func (d *Dispatcher) postReport(channelID, threadTS, text string, channels []models.Channel) error {
	if len(channels) == 0 {
		if _, err := d.poster.PostMessage(channelID, text, threadTS); err != nil {
			return fmt.Errorf("post report: %w", err)
		}
		return nil
	}

	header, _, _ := strings.Cut(text, ": ")
	for i, blocks := range ReportBlocks(header, channels) {
		fallback := text
		if i > 0 {
			fallback = header + " (continued)"
		}
		if _, err := d.poster.PostBlocks(channelID, threadTS, fallback, blocks...); err != nil {
			return fmt.Errorf("post report: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) postProtected(channelID, threadTS string, protected []models.Channel) error {
	if len(protected) == 0 {
		return nil
	}
	text := "skipped protected channels: " + formatRefs(protected)
	if _, err := d.poster.PostMessage(channelID, text, threadTS); err != nil {
		return fmt.Errorf("post protected: %w", err)
	}
	return nil
}

func listText(days int, channels []models.Channel) string {
	if len(channels) == 0 {
		return fmt.Sprintf("no channels disused for %d days", days)
	}
	return fmt.Sprintf("channels disused for %d days: %s", days, formatRefs(channels))
}

func archiveText(days int, channels []models.Channel) string {
	if len(channels) == 0 {
		return fmt.Sprintf("no channels disused for %d days, nothing to archive", days)
	}
	return fmt.Sprintf("archiving channels disused for %d days: %s", days, formatRefs(channels))
}

func refusalText(days, minDays int) string {
	return fmt.Sprintf("%d days is too short, archiving needs at least %d days", days, minDays)
}
