package tgbot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrack(t *testing.T) {
	cmd, err := ParseCommand("/track https://demo.ctfd.io s3cret 2026-09-01T18:00 The Team Name")
	require.NoError(t, err)

	st, ok := cmd.(StartTracking)
	require.True(t, ok)
	assert.Equal(t, "https://demo.ctfd.io", st.PlatformURL)
	assert.Equal(t, "s3cret", st.Token)
	assert.Equal(t, "The Team Name", st.TeamName)
	assert.Equal(t, time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC), st.End)
}

func TestParseTrackRFC3339(t *testing.T) {
	cmd, err := ParseCommand("/track https://demo.ctfd.io tok 2026-09-01T18:00:00+02:00 solo")
	require.NoError(t, err)
	st := cmd.(StartTracking)
	assert.Equal(t, "solo", st.TeamName)
	assert.Equal(t, 16, st.End.UTC().Hour())
}

func TestParseTrackBadEndTime(t *testing.T) {
	_, err := ParseCommand("/track https://demo.ctfd.io tok tomorrow team")
	assert.ErrorIs(t, err, ErrBadEndTime)
}

func TestParseTrackMissingArgs(t *testing.T) {
	_, err := ParseCommand("/track https://demo.ctfd.io tok")
	assert.ErrorIs(t, err, ErrBadTrackArgs)
}

func TestParseStop(t *testing.T) {
	cmd, err := ParseCommand("/stop")
	require.NoError(t, err)
	assert.IsType(t, StopTracking{}, cmd)
}

func TestParseEasy(t *testing.T) {
	cmd, err := ParseCommand("/easy")
	require.NoError(t, err)
	assert.Equal(t, FindEasy{Limit: 5}, cmd)

	cmd, err = ParseCommand("/easy 10")
	require.NoError(t, err)
	assert.Equal(t, FindEasy{Limit: 10}, cmd)

	_, err = ParseCommand("/easy zero")
	assert.Error(t, err)
}

func TestParseUpcomingWithBotSuffix(t *testing.T) {
	cmd, err := ParseCommand("/upcoming@ctf_notify_bot")
	require.NoError(t, err)
	assert.IsType(t, ListUpcoming{}, cmd)
}

func TestParseUnknown(t *testing.T) {
	_, err := ParseCommand("just chatting")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
