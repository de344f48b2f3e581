package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramToken string
	NotifyChatID  int64

	SpreadsheetID            string
	GoogleServiceAccountJSON string

	CTFTimeAPIURL string

	HTTPAddr string
}

func FromEnv() (Config, error) {
	var c Config
	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	c.SpreadsheetID = strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	c.GoogleServiceAccountJSON = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	c.CTFTimeAPIURL = strings.TrimSpace(os.Getenv("CTFTIME_API_URL"))

	c.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}

	if c.TelegramToken == "" {
		return c, fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}

	rawChat := strings.TrimSpace(os.Getenv("NOTIFY_CHAT_ID"))
	if rawChat == "" {
		return c, fmt.Errorf("NOTIFY_CHAT_ID is empty")
	}
	chatID, err := strconv.ParseInt(rawChat, 10, 64)
	if err != nil {
		return c, fmt.Errorf("NOTIFY_CHAT_ID: %w", err)
	}
	c.NotifyChatID = chatID

	if c.SpreadsheetID == "" {
		return c, fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID is empty")
	}
	if c.GoogleServiceAccountJSON == "" {
		return c, fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
	}

	return c, nil
}
