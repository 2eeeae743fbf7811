package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/channel-reaper/internal/models"
)

// countingBackend records how often the cache touches storage.
type countingBackend struct {
	loads   int
	saves   int
	loadErr error
	saveErr error
	stored  Entries
}

func (b *countingBackend) Load() (Entries, error) {
	b.loads++
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	if b.stored == nil {
		return nil, ErrNoCache
	}
	return b.stored.Clone(), nil
}

func (b *countingBackend) Save(e Entries) error {
	b.saves++
	if b.saveErr != nil {
		return b.saveErr
	}
	b.stored = e.Clone()
	return nil
}

func entry(ts string) Entry {
	return Entry{LastMessage: models.Message{TS: ts, User: "U1"}}
}

func TestCache_LoadsLazilyOnce(t *testing.T) {
	b := &countingBackend{stored: Entries{"C1": entry("1700000000.000100")}}
	c := New(b, zerolog.Nop())
	assert.Equal(t, 0, b.loads, "nothing read before first access")

	e, ok := c.Get("C1")
	require.True(t, ok)
	assert.Equal(t, "1700000000.000100", e.LastMessage.TS)

	_, _ = c.Get("C2")
	_ = c.Len()
	assert.Equal(t, 1, b.loads)
}

func TestCache_LoadFailureFallsBackToEmptyAndIsNotRetried(t *testing.T) {
	b := &countingBackend{loadErr: errors.New("disk on fire")}
	c := New(b, zerolog.Nop())

	_, ok := c.Get("C1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	b.loadErr = nil
	b.stored = Entries{"C1": entry("1")}
	_, ok = c.Get("C1")
	assert.False(t, ok, "cache must not re-read the backend after a failed load")
	assert.Equal(t, 1, b.loads)
}

func TestCache_PutPersistsSynchronously(t *testing.T) {
	b := &countingBackend{}
	c := New(b, zerolog.Nop())

	require.NoError(t, c.Put("C1", entry("1700000000.000001")))
	assert.Equal(t, 1, b.saves)
	assert.Contains(t, b.stored, "C1")

	got, ok := c.Get("C1")
	require.True(t, ok)
	assert.Equal(t, "1700000000.000001", got.LastMessage.TS)
}

func TestCache_PutKeepsMemoryWhenSaveFails(t *testing.T) {
	b := &countingBackend{saveErr: errors.New("read-only fs")}
	c := New(b, zerolog.Nop())

	err := c.Put("C1", entry("1"))
	assert.Error(t, err)

	_, ok := c.Get("C1")
	assert.True(t, ok)
}

func TestCache_SnapshotIsACopy(t *testing.T) {
	c := New(&countingBackend{}, zerolog.Nop())
	require.NoError(t, c.Put("C1", entry("1")))

	snap := c.Snapshot()
	delete(snap, "C1")

	_, ok := c.Get("C1")
	assert.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	b := &countingBackend{stored: Entries{"C1": entry("1"), "C2": entry("2")}}
	c := New(b, zerolog.Nop())
	require.Equal(t, 2, c.Len())

	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, b.stored)
}

func TestFileBackend_RoundTripAcrossProcesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	first := New(NewFileBackend(path), zerolog.Nop())
	require.NoError(t, first.Put("C1", entry("1700000000.000001")))
	require.NoError(t, first.Put("C2", Entry{LastMessage: models.Message{TS: "1600000000.5", SubType: "bot_message", BotID: "B1"}}))

	// A fresh Cache over the same file stands in for a restarted process.
	second := New(NewFileBackend(path), zerolog.Nop())
	assert.Equal(t, first.Snapshot(), second.Snapshot())
}

func TestFileBackend_MissingFileIsNoCache(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "absent.json"))
	_, err := b.Load()
	assert.ErrorIs(t, err, ErrNoCache)
}

func TestFileBackend_BlankFileIsNoCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	_, err := NewFileBackend(path).Load()
	assert.ErrorIs(t, err, ErrNoCache)
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"C1": {"lastMessage": `), 0o644))

	_, err := NewFileBackend(path).Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCache)

	c := New(NewFileBackend(path), zerolog.Nop())
	assert.Equal(t, 0, c.Len(), "corrupt file yields an empty cache")
}

func TestFileBackend_ReadsLegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	legacy := `{"C024BE91L":{"lastMessage":{"type":"message","user":"U2147483697","text":"hi","ts":"1512085950.000216"}}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	entries, err := NewFileBackend(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "1512085950.000216", entries["C024BE91L"].LastMessage.TS)
	assert.Equal(t, "U2147483697", entries["C024BE91L"].LastMessage.User)
}

func TestFileBackend_SaveCreatesDirectoryAndLeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	path := filepath.Join(dir, "cache.json")

	require.NoError(t, NewFileBackend(path).Save(Entries{"C1": entry("1")}))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "cache.json", files[0].Name())
}
