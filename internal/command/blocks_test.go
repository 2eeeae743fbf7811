package command

import (
	"fmt"
	"strings"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/channel-reaper/internal/models"
)

func TestChunkLines(t *testing.T) {
	chunks := chunkLines([]string{"aaaa", "bbbb", "cccc"}, 9)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, chunks)

	assert.Equal(t, []string{"toolongline"}, chunkLines([]string{"toolongline"}, 4))
	assert.Empty(t, chunkLines(nil, 10))
}

func TestChannelLine(t *testing.T) {
	assert.Equal(t, "• <#C1>", channelLine(models.Channel{ID: "C1"}))

	ch := models.Channel{ID: "C2", Latest: &models.Message{TS: "1700000000.000100"}}
	assert.Equal(t, "• <#C2>  _last activity 2023-11-14_", channelLine(ch))
}

func sectionText(t *testing.T, b slack.Block) string {
	t.Helper()
	s, ok := b.(*slack.SectionBlock)
	require.True(t, ok)
	return s.Text.Text
}

func TestReportBlocks_Small(t *testing.T) {
	msgs := ReportBlocks("channels disused for 30 days", []models.Channel{{ID: "C1"}, {ID: "C2"}})
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0], 2)
	assert.Equal(t, "*channels disused for 30 days*", sectionText(t, msgs[0][0]))
	assert.Equal(t, "• <#C1>\n• <#C2>", sectionText(t, msgs[0][1]))
}

func TestReportBlocks_RespectsLimits(t *testing.T) {
	var channels []models.Channel
	for i := 0; i < 20000; i++ {
		channels = append(channels, models.Channel{ID: fmt.Sprintf("C%06d", i)})
	}

	msgs := ReportBlocks("header", channels)
	require.Greater(t, len(msgs), 1)

	seen := 0
	for i, blocks := range msgs {
		assert.LessOrEqual(t, len(blocks), maxBlocks)
		for j, b := range blocks {
			text := sectionText(t, b)
			assert.LessOrEqual(t, len(text), maxSectionChars)
			if i == 0 && j == 0 {
				continue
			}
			seen += strings.Count(text, "<#")
		}
	}
	assert.Equal(t, len(channels), seen)
}

func TestFormatRefs(t *testing.T) {
	assert.Equal(t, "<#C1>, <#C2>", formatRefs([]models.Channel{{ID: "C1"}, {ID: "C2"}}))
	assert.Equal(t, "", formatRefs(nil))
}
