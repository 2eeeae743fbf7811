package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getMetricsBody(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_RecordEvaluation(t *testing.T) {
	m := New()
	m.RecordEvaluation("disused")
	m.RecordEvaluation("disused")
	m.RecordEvaluation("active")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `reaper_evaluations_total{result="disused"} 2`)
	assert.Contains(t, body, `reaper_evaluations_total{result="active"} 1`)
}

func TestMetrics_RecordCommand(t *testing.T) {
	m := New()
	m.RecordCommand("archive", "rejected", 0.01)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `reaper_commands_total{command="archive",status="rejected"} 1`)
	assert.Contains(t, body, `reaper_command_duration_seconds_count{command="archive"} 1`)
}

func TestMetrics_DirectoryGauge(t *testing.T) {
	m := New()
	m.SetDirectoryChannels(42)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, "reaper_directory_channels 42")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEvaluation("active")
		m.RecordCacheLookup("hit")
		m.RecordAPIFailure("history")
		m.RecordJoin("ok")
		m.RecordArchive("ok")
		m.RecordCommand("list", "ok", 1)
		m.RecordEvent("message")
		m.SetDirectoryChannels(1)
	})
}

func TestMetrics_RecordEventDropped(t *testing.T) {
	m := New()
	m.RecordEventDropped("message")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `reaper_events_dropped_total{kind="message"} 1`)
}
