// Package command turns bot mentions into list and archive runs and replies in the channel.
package command

import (
	"strconv"

	"github.com/wasilibs/go-re2"
)

// Kind is the recognised command.
type Kind int

const (
	KindUnknown Kind = iota
	KindList
	KindArchive
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Command is a parsed mention.
type Command struct {
	Kind Kind
	Days int
}

// Patterns are tried in order; the first match wins.
var (
	listPattern    = re2.MustCompile(`(?i)\blist\s+([0-9]+)\s*days\b`)
	archivePattern = re2.MustCompile(`(?i)\b(?:archive|kill)\s+([0-9]+)\s*days\b`)
)

// Parse recognises "list <N>days" and "archive <N>days" (or "kill <N>days")
// anywhere in text. A day count that does not fit an int is unknown.
func Parse(text string) Command {
	if days, ok := matchDays(listPattern, text); ok {
		return Command{Kind: KindList, Days: days}
	}
	if days, ok := matchDays(archivePattern, text); ok {
		return Command{Kind: KindArchive, Days: days}
	}
	return Command{Kind: KindUnknown}
}

func matchDays(re *re2.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	days, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return days, true
}
