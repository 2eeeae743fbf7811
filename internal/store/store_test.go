package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/channel-reaper/internal/cache"
	"github.com/p-blackswan/channel-reaper/internal/models"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "reaper.db")
	s, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dbPath
}

func TestNew_CreatesDB(t *testing.T) {
	s, _ := newTestStore(t)

	for _, table := range []string{"meta", "channel_cache", "archive_log"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	assert.Equal(t, "2", s.schemaVersion())
}

func TestNew_ReopenKeepsSchema(t *testing.T) {
	s, dbPath := newTestStore(t)
	require.NoError(t, s.Close())

	s2, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, "2", s2.schemaVersion())
}

func TestPing(t *testing.T) {
	s, _ := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestCacheTable_EmptyIsNoCache(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.CacheTable().Load()
	assert.ErrorIs(t, err, cache.ErrNoCache)
}

func TestCacheTable_SaveReplaces(t *testing.T) {
	s, _ := newTestStore(t)
	tbl := s.CacheTable()

	require.NoError(t, tbl.Save(cache.Entries{
		"C1": {LastMessage: models.Message{TS: "1.000001", User: "U1"}},
		"C2": {LastMessage: models.Message{TS: "2.000002", BotID: "B1", SubType: "bot_message"}},
	}))
	require.NoError(t, tbl.Save(cache.Entries{
		"C2": {LastMessage: models.Message{TS: "3.000003", User: "U2"}},
	}))

	got, err := tbl.Load()
	require.NoError(t, err)
	assert.Equal(t, cache.Entries{
		"C2": {LastMessage: models.Message{TS: "3.000003", User: "U2"}},
	}, got)
}

func TestCacheTable_RoundTripThroughCache(t *testing.T) {
	s, dbPath := newTestStore(t)

	c := cache.New(s.CacheTable(), zerolog.Nop())
	require.NoError(t, c.Put("C1", cache.Entry{LastMessage: models.Message{TS: "1700000000.000100", User: "U1"}}))
	require.NoError(t, c.Put("C2", cache.Entry{LastMessage: models.Message{TS: "1700000001.000200", User: "U2"}}))
	want := c.Snapshot()
	require.NoError(t, s.Close())

	s2, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()

	fresh := cache.New(s2.CacheTable(), zerolog.Nop())
	assert.Equal(t, want, fresh.Snapshot())
}

func TestArchives_RecordAndList(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first := &ArchiveRecord{ChannelID: "C1", ChannelName: "old", Days: 30, RequestedBy: "U1", LastMessageTS: "1.0", Result: ArchiveOK, CreatedAt: 1000}
	second := &ArchiveRecord{ChannelID: "C2", ChannelName: "older", Days: 30, RequestedBy: "U1", Result: ArchiveFailed, Error: "not_in_channel", CreatedAt: 2000}
	require.NoError(t, s.RecordArchive(ctx, first))
	require.NoError(t, s.RecordArchive(ctx, second))
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := s.ListArchives(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, *second, got[0])
	assert.Equal(t, *first, got[1])

	limited, err := s.ListArchives(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRunRetention(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	require.NoError(t, s.RecordArchive(ctx, &ArchiveRecord{ChannelID: "C1", Days: 30, Result: ArchiveOK, CreatedAt: old}))
	require.NoError(t, s.RecordArchive(ctx, &ArchiveRecord{ChannelID: "C2", Days: 30, Result: ArchiveOK}))

	n, err := s.RunRetention(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.RunRetention(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.ListArchives(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "C2", got[0].ChannelID)
}
