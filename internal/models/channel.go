package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SubTypeChannelJoin is the message subtype Slack posts when a user joins a channel.
const SubTypeChannelJoin = "channel_join"

// Message is the subset of a Slack message the reaper keeps.
// Field names match the Slack message object so older cache files still decode.
type Message struct {
	TS      string `json:"ts"`
	User    string `json:"user,omitempty"`
	SubType string `json:"subtype,omitempty"`
	BotID   string `json:"bot_id,omitempty"`
}

// IsJoin reports whether the message is a synthetic "member joined" notice.
func (m Message) IsJoin() bool {
	return m.SubType == SubTypeChannelJoin
}

// Time parses the Slack timestamp ("1700000000.123456").
func (m Message) Time() (time.Time, error) {
	return ParseTS(m.TS)
}

// ParseTS converts a Slack "seconds.micros" timestamp into a time.Time.
func ParseTS(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	secPart, fracPart, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}

	var nsec int64
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		frac, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		for i := len(fracPart); i < 9; i++ {
			frac *= 10
		}
		nsec = frac
	}
	return time.Unix(sec, nsec), nil
}

// FormatTS renders t in Slack's timestamp format.
func FormatTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// Channel is the last known state of a public channel.
type Channel struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	IsMember   bool     `json:"is_member"`
	IsArchived bool     `json:"is_archived"`
	IsGeneral  bool     `json:"is_general,omitempty"`
	Latest     *Message `json:"latest,omitempty"`
}

// Ref returns the Slack mrkdwn reference for the channel ("<#C123>").
func (c Channel) Ref() string {
	return "<#" + c.ID + ">"
}
