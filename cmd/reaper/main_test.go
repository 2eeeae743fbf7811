package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/channel-reaper/internal/cache"
	"github.com/p-blackswan/channel-reaper/internal/config"
	"github.com/p-blackswan/channel-reaper/internal/models"
)

func TestParseDays(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"90days", 90, false},
		{"90 days", 90, false},
		{"30", 30, false},
		{"0days", 0, false},
		{"DAYS", 0, true},
		{"-5days", 0, true},
		{"ninety", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDays(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintChannels(t *testing.T) {
	var buf bytes.Buffer
	printChannels(&buf, []models.Channel{
		{ID: "C1", Name: "old", Latest: &models.Message{TS: "1700000000.000100"}},
		{ID: "C2", Name: "empty"},
	})

	out := buf.String()
	assert.Contains(t, out, "LAST ACTIVITY")
	assert.Contains(t, out, "#old")
	assert.Contains(t, out, "2023-11-14")
	assert.Contains(t, out, "#empty")
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "list", "archive", "cache"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.Contains(t, archiveCmd.Aliases, "kill")
}

func TestOpenCache_NoSlackToken(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"file", &config.Config{CacheBackend: config.BackendFile, CacheFile: filepath.Join(dir, "cache.json")}},
		{"sqlite", &config.Config{CacheBackend: config.BackendSQLite, DBPath: filepath.Join(dir, "reaper.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, c, err := openCache(tt.cfg, zerolog.Nop())
			require.NoError(t, err)
			if st != nil {
				defer st.Close()
			}

			require.NoError(t, c.Put("C1", cache.Entry{LastMessage: models.Message{TS: "1700000000.000100"}}))
			assert.Equal(t, 1, c.Len())
			require.NoError(t, c.Clear())
			assert.Zero(t, c.Len())
		})
	}
}

func TestOpenCache_InvalidBackend(t *testing.T) {
	_, _, err := openCache(&config.Config{CacheBackend: "redis"}, zerolog.Nop())
	assert.Error(t, err)
}
