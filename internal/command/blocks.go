package command

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/p-blackswan/channel-reaper/internal/models"
)

// Slack rejects section text over 3000 characters and messages over 50 blocks.
const (
	maxSectionChars = 3000
	maxBlocks       = 50
)

// channelLine renders one report row: the channel reference and, when known,
// the date of its last qualifying message.
func channelLine(ch models.Channel) string {
	if ch.Latest != nil {
		if t, err := ch.Latest.Time(); err == nil {
			return fmt.Sprintf("• %s  _last activity %s_", ch.Ref(), t.UTC().Format("2006-01-02"))
		}
	}
	return "• " + ch.Ref()
}

// chunkLines joins lines with newlines into chunks no longer than max.
// A single line longer than max gets a chunk of its own.
func chunkLines(lines []string, max int) []string {
	var (
		chunks []string
		b      strings.Builder
	)
	for _, line := range lines {
		if b.Len() > 0 && b.Len()+1+len(line) > max {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func section(text string) slack.Block {
	return slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", text, false, false), nil, nil)
}

// ReportBlocks lays out a channel report as one or more messages, each within
// Slack's block limits. The header opens the first message.
func ReportBlocks(header string, channels []models.Channel) [][]slack.Block {
	lines := make([]string, 0, len(channels))
	for _, ch := range channels {
		lines = append(lines, channelLine(ch))
	}

	blocks := []slack.Block{section("*" + header + "*")}
	for _, chunk := range chunkLines(lines, maxSectionChars) {
		blocks = append(blocks, section(chunk))
	}

	var messages [][]slack.Block
	for len(blocks) > maxBlocks {
		messages = append(messages, blocks[:maxBlocks])
		blocks = blocks[maxBlocks:]
	}
	return append(messages, blocks)
}

// formatRefs is the plain-text channel list used in replies and fallbacks.
func formatRefs(channels []models.Channel) string {
	refs := make([]string, len(channels))
	for i, ch := range channels {
		refs[i] = ch.Ref()
	}
	return strings.Join(refs, ", ")
}
