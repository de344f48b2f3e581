package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("NOTIFY_CHAT_ID", "-100200300")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "sheet-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "/tmp/sa.json")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("CTFTIME_API_URL", "")
}

func TestFromEnv(t *testing.T) {
	setRequired(t)
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(-100200300), cfg.NotifyChatID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestFromEnvMissingToken(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvBadChatID(t *testing.T) {
	setRequired(t)
	t.Setenv("NOTIFY_CHAT_ID", "not-a-number")
	_, err := FromEnv()
	assert.Error(t, err)
}
