package ctftime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ctf-notify-bot/internal/models"
)

const DefaultBaseURL = "https://ctftime.org/api/v1"

// Client reads the public CTFtime events listing. Stateless.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

// UpcomingEvents fetches events whose window overlaps [from, to].
func (c *Client) UpcomingEvents(ctx context.Context, from, to time.Time, limit int) ([]models.ContestEvent, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("start", strconv.FormatInt(from.Unix(), 10))
	q.Set("finish", strconv.FormatInt(to.Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ctf-notify-bot")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ctftime: unexpected status %d", resp.StatusCode)
	}

	var events []models.ContestEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("ctftime: decode events: %w", err)
	}
	return events, nil
}
