package command

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/channel-reaper/internal/disuse"
	"github.com/p-blackswan/channel-reaper/internal/models"
	"github.com/p-blackswan/channel-reaper/internal/policy"
	"github.com/p-blackswan/channel-reaper/internal/store"
)

// mockPoster implements Poster for testing.
type mockPoster struct {
	posted []postCall
	err    error
}

type postCall struct {
	channelID, text, threadTS string
	blocks                    int
}

func (m *mockPoster) PostMessage(channelID, text, threadTS string) (string, error) {
	m.posted = append(m.posted, postCall{channelID: channelID, text: text, threadTS: threadTS})
	return "msg-ts-1", m.err
}

func (m *mockPoster) PostBlocks(channelID, threadTS, fallbackText string, blocks ...slack.Block) (string, error) {
	m.posted = append(m.posted, postCall{channelID: channelID, text: fallbackText, threadTS: threadTS, blocks: len(blocks)})
	return "msg-ts-1", m.err
}

func (m *mockPoster) texts() []string {
	out := make([]string, len(m.posted))
	for i, p := range m.posted {
		out[i] = p.text
	}
	return out
}

type fakeFinder struct {
	channels []models.Channel
	err      error
	calls    int
	days     int
}

func (f *fakeFinder) FindDisused(_ context.Context, _ disuse.Directory, days int) ([]models.Channel, error) {
	f.calls++
	f.days = days
	return f.channels, f.err
}

type fakeArchiver struct {
	fail  map[string]error
	calls []string
}

func (f *fakeArchiver) ArchiveChannel(_ context.Context, channelID string) error {
	f.calls = append(f.calls, channelID)
	return f.fail[channelID]
}

type fakeAudit struct {
	records []store.ArchiveRecord
}

func (f *fakeAudit) RecordArchive(_ context.Context, rec *store.ArchiveRecord) error {
	f.records = append(f.records, *rec)
	return nil
}

type harness struct {
	finder   *fakeFinder
	archiver *fakeArchiver
	poster   *mockPoster
	audit    *fakeAudit
	d        *Dispatcher
}

func newHarness(channels ...models.Channel) *harness {
	h := &harness{
		finder:   &fakeFinder{channels: channels},
		archiver: &fakeArchiver{fail: map[string]error{}},
		poster:   &mockPoster{},
		audit:    &fakeAudit{},
	}
	h.d = NewDispatcher(h.finder, nil, h.archiver, h.poster, nil, nil, zerolog.Nop()).WithAudit(h.audit)
	return h
}

func TestHandleMention_List(t *testing.T) {
	h := newHarness(models.Channel{ID: "C1", Name: "old"}, models.Channel{ID: "C2", Name: "older"})

	require.NoError(t, h.d.HandleMention(context.Background(), "CREQ", "U1", "<@B1> list 30days", "111.222"))

	assert.Equal(t, 1, h.finder.calls)
	assert.Equal(t, 30, h.finder.days)
	assert.Equal(t, []string{replyWait, "channels disused for 30 days: <#C1>, <#C2>"}, h.poster.texts())
	assert.Equal(t, 2, h.poster.posted[1].blocks)
	for _, p := range h.poster.posted {
		assert.Equal(t, "CREQ", p.channelID)
		assert.Equal(t, "111.222", p.threadTS)
	}
	assert.Empty(t, h.archiver.calls)
}

func TestHandleMention_ListNothing(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.d.HandleMention(context.Background(), "CREQ", "U1", "list 30days", ""))
	assert.Equal(t, []string{replyWait, "no channels disused for 30 days"}, h.poster.texts())
}

func TestHandleMention_ListSkipsProtected(t *testing.T) {
	h := newHarness(
		models.Channel{ID: "C1", Name: "general", IsGeneral: true},
		models.Channel{ID: "C2", Name: "old"},
	)

	require.NoError(t, h.d.HandleMention(context.Background(), "CREQ", "U1", "list 30days", ""))
	assert.Equal(t, []string{
		replyWait,
		"channels disused for 30 days: <#C2>",
		"skipped protected channels: <#C1>",
	}, h.poster.texts())
}

func TestHandleMention_ArchiveTooShort(t *testing.T) {
	h := newHarness(models.Channel{ID: "C1"})

	require.NoError(t, h.d.HandleMention(context.Background(), "CREQ", "U1", "<@B1> archive 5days", ""))

	assert.Zero(t, h.finder.calls)
	assert.Empty(t, h.archiver.calls)
	assert.Equal(t, []string{"5 days is too short, archiving needs at least 30 days"}, h.poster.texts())
	assert.Empty(t, h.audit.records)
}

func TestHandleMention_ArchiveInOrder(t *testing.T) {
	h := newHarness(
		models.Channel{ID: "C1", Name: "a", Latest: &models.Message{TS: "1.000000"}},
		models.Channel{ID: "C2", Name: "b"},
		models.Channel{ID: "C3", Name: "c"},
	)
	h.archiver.fail["C2"] = errors.New("not_in_channel")

	require.NoError(t, h.d.HandleMention(context.Background(), "CREQ", "U1", "kill 30days", ""))

	assert.Equal(t, []string{"C1", "C2", "C3"}, h.archiver.calls)
	assert.Equal(t, []string{
		replyWait,
		"archiving channels disused for 30 days: <#C1>, <#C2>, <#C3>",
		"archived 2 of 3 channels (failed: <#C2>)",
	}, h.poster.texts())

	require.Len(t, h.audit.records, 3)
	assert.Equal(t, store.ArchiveOK, h.audit.records[0].Result)
	assert.Equal(t, "1.000000", h.audit.records[0].LastMessageTS)
	assert.Equal(t, "U1", h.audit.records[0].RequestedBy)
	assert.Equal(t, 30, h.audit.records[0].Days)
	assert.Equal(t, store.ArchiveFailed, h.audit.records[1].Result)
	assert.Equal(t, "not_in_channel", h.audit.records[1].Error)
}

func TestHandleMention_ArchiveNeverTouchesProtected(t *testing.T) {
	pol, err := policy.LoadBytes([]byte("protected_channels: [keep]\n"))
	require.NoError(t, err)
	h := newHarness(models.Channel{ID: "C1", Name: "keep"}, models.Channel{ID: "C2", Name: "drop"})
	h.d = NewDispatcher(h.finder, nil, h.archiver, h.poster, pol, nil, zerolog.Nop())

	require.NoError(t, h.d.HandleMention(context.Background(), "CREQ", "U1", "archive 30days", ""))
	assert.Equal(t, []string{"C2"}, h.archiver.calls)
}

func TestHandleMention_FinderError(t *testing.T) {
	h := newHarness()
	h.finder.err = errors.New("list failed")

	err := h.d.HandleMention(context.Background(), "CREQ", "U1", "list 30days", "")
	assert.Error(t, err)
	assert.Equal(t, []string{replyWait, replyFailed}, h.poster.texts())
}

func TestHandleMention_Unknown(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.d.HandleMention(context.Background(), "CREQ", "U1", "<@B1> what", ""))
	assert.Equal(t, []string{replyUnknown}, h.poster.texts())
	assert.Zero(t, h.finder.calls)
}

func TestHandleMention_PostFailure(t *testing.T) {
	h := newHarness()
	h.poster.err = errors.New("channel_not_found")

	assert.Error(t, h.d.HandleMention(context.Background(), "CREQ", "U1", "list 30days", ""))
	assert.Zero(t, h.finder.calls)
}

func TestRunReport(t *testing.T) {
	h := newHarness(models.Channel{ID: "C1"})

	require.NoError(t, h.d.RunReport(context.Background(), "CREPORT", 90))
	assert.Equal(t, 90, h.finder.days)
	assert.Equal(t, []string{replyWait, "channels disused for 90 days: <#C1>"}, h.poster.texts())
	assert.Empty(t, h.archiver.calls)
}

func TestArchive_Direct(t *testing.T) {
	h := newHarness(models.Channel{ID: "C1"}, models.Channel{ID: "C2", IsGeneral: true})

	_, err := h.d.Archive(context.Background(), 10, "cli")
	assert.ErrorIs(t, err, ErrThresholdTooShort)
	assert.Zero(t, h.finder.calls)

	res, err := h.d.Archive(context.Background(), 30, "cli")
	require.NoError(t, err)
	assert.Len(t, res.Archived, 1)
	assert.Len(t, res.Protected, 1)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []string{"C1"}, h.archiver.calls)
	assert.Empty(t, h.poster.posted)
}
