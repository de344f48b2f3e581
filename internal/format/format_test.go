package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"ctf-notify-bot/internal/models"
)

func TestEscapeMarkdownV2ReservedSet(t *testing.T) {
	for _, r := range mdv2Reserved {
		out := EscapeMarkdownV2(string(r))
		assert.Equal(t, `\`+string(r), out, "reserved %q must get exactly one backslash", r)
	}
}

func TestEscapeMarkdownV2LeavesOthersAlone(t *testing.T) {
	in := "plain text, digits 123 and unicode Ω"
	assert.Equal(t, in, EscapeMarkdownV2(in))
}

func TestEscapeMarkdownV2Mixed(t *testing.T) {
	assert.Equal(t, `team\_one \(2nd\)\!`, EscapeMarkdownV2("team_one (2nd)!"))
}

func TestStripOrdinal(t *testing.T) {
	cases := map[string]string{
		"1st":     "1",
		"2nd":     "2",
		"3rd":     "3",
		"4th":     "4",
		"22nd":    "22",
		"101st":   "101",
		"12":      "12",
		"?":       "?",
		"first":   "first",
		"st":      "st",
		"notrank": "notrank",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripOrdinal(in), "input %q", in)
	}
}

func TestSolveMessageFields(t *testing.T) {
	msg := SolveMessage("My CTF", "team_one", "baby-pwn", "pwn", 100, 350, "3rd", "120")
	assert.Contains(t, msg, `My CTF`)
	assert.Contains(t, msg, `team\_one`)
	assert.Contains(t, msg, `baby\-pwn`)
	assert.Contains(t, msg, "*100*")
	assert.Contains(t, msg, "*350*")
	assert.Contains(t, msg, "*3*")
	assert.NotContains(t, msg, "3rd")
}

func TestSummaryMessageFields(t *testing.T) {
	msg := SummaryMessage("My CTF", "team", 7, 30, 2100, "12", "300")
	assert.Contains(t, msg, "*7* of 30")
	assert.Contains(t, msg, "*2100*")
	assert.Contains(t, msg, "*12* of 300")
}

func TestReminderMessage(t *testing.T) {
	ev := models.ContestEvent{
		Title:        "Test CTF 2026",
		URL:          "https://example.org/ctf",
		Duration:     models.Duration{Days: 1, Hours: 12},
		Weight:       24.5,
		Participants: 480,
	}
	msg := ReminderMessage(ev)
	assert.Contains(t, msg, "Test CTF 2026")
	assert.Contains(t, msg, "1 days 12 hours")
	assert.Contains(t, msg, `24\.50`)
	assert.Contains(t, msg, "480 teams")
}

func TestUpcomingMessageEmpty(t *testing.T) {
	assert.True(t, strings.HasPrefix(UpcomingMessage(nil), "No upcoming"))
}
