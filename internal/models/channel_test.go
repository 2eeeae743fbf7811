package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTS(t *testing.T) {
	got, err := ParseTS("1700000000.123456")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), got.Unix())
	assert.Equal(t, 123456000, got.Nanosecond())
}

func TestParseTS_NoFraction(t *testing.T) {
	got, err := ParseTS("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), got.Unix())
	assert.Equal(t, 0, got.Nanosecond())
}

func TestParseTS_Invalid(t *testing.T) {
	for _, ts := range []string{"", "abc", "12.x"} {
		_, err := ParseTS(ts)
		assert.Error(t, err, "ts %q", ts)
	}
}

func TestFormatTS_RoundTrip(t *testing.T) {
	now := time.Unix(1712345678, 987654000)
	got, err := ParseTS(FormatTS(now))
	require.NoError(t, err)
	assert.True(t, now.Equal(got))
}

func TestMessage_IsJoin(t *testing.T) {
	assert.True(t, Message{SubType: "channel_join"}.IsJoin())
	assert.False(t, Message{}.IsJoin())
	assert.False(t, Message{SubType: "bot_message"}.IsJoin())
}

func TestChannel_Ref(t *testing.T) {
	assert.Equal(t, "<#C123>", Channel{ID: "C123"}.Ref())
}
