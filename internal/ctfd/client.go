package ctfd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Client reads one CTFd deployment on behalf of one tracking session.
// All endpoints are read-only; the token is passed through verbatim.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

// Solve is one solved challenge from the team's solve list.
type Solve struct {
	ChallengeID int
	Name        string
	Category    string
	Value       int
}

// Challenge is one entry of the challenge listing.
type Challenge struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Value    int    `json:"value"`
	Solves   int    `json:"solves"`
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ctfd: %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ctfd: %s: decode: %w", path, err)
	}
	return nil
}

// ---------- Team lookup ----------

type teamsPage struct {
	Data []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
	Meta struct {
		Pagination struct {
			Pages int `json:"pages"`
		} `json:"pagination"`
	} `json:"meta"`
}

// FindTeam resolves a team name to its numeric id. The paginated /teams
// listing is tried first (case-insensitive exact match); if that endpoint
// is unavailable or yields nothing, the scoreboard is scanned instead.
func (c *Client) FindTeam(ctx context.Context, name string) (int, bool) {
	page := 1
	for {
		var tp teamsPage
		if err := c.getJSON(ctx, "/api/v1/teams?page="+strconv.Itoa(page), &tp); err != nil {
			break
		}
		if len(tp.Data) == 0 {
			break
		}
		for _, t := range tp.Data {
			if strings.EqualFold(t.Name, name) {
				return t.ID, true
			}
		}
		if page >= tp.Meta.Pagination.Pages {
			break
		}
		page++
	}

	for _, row := range c.standings(ctx) {
		if strings.EqualFold(row.Name, name) {
			return row.ID, true
		}
	}
	return 0, false
}

// ---------- Solves / challenges ----------

type solvesResponse struct {
	Data []struct {
		ChallengeID int `json:"challenge_id"`
		Challenge   struct {
			ID       int    `json:"id"`
			Name     string `json:"name"`
			Category string `json:"category"`
			Value    int    `json:"value"`
		} `json:"challenge"`
	} `json:"data"`
}

// TeamSolves fetches the team's full current solve list.
func (c *Client) TeamSolves(ctx context.Context, teamID int) ([]Solve, error) {
	var sr solvesResponse
	if err := c.getJSON(ctx, "/api/v1/teams/"+strconv.Itoa(teamID)+"/solves", &sr); err != nil {
		return nil, err
	}
	solves := make([]Solve, 0, len(sr.Data))
	for _, d := range sr.Data {
		id := d.ChallengeID
		if id == 0 {
			id = d.Challenge.ID
		}
		solves = append(solves, Solve{
			ChallengeID: id,
			Name:        d.Challenge.Name,
			Category:    d.Challenge.Category,
			Value:       d.Challenge.Value,
		})
	}
	return solves, nil
}

// Challenges fetches the challenge listing, including per-challenge solve
// counts where the deployment exposes them.
func (c *Client) Challenges(ctx context.Context) ([]Challenge, error) {
	var cr struct {
		Data []Challenge `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/v1/challenges", &cr); err != nil {
		return nil, err
	}
	return cr.Data, nil
}

// ---------- Scoreboard ----------

type standingRow struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Place string  `json:"place"`
}

// standings fetches the scoreboard. The response shape varies across
// deployments, so three nestings are probed: a top-level array, an array
// under "data", and an array under "data.standings". Failure means an
// empty result, never an error.
func (c *Client) standings(ctx context.Context) []standingRow {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/v1/scoreboard", &raw); err != nil {
		return nil
	}

	var rows []standingRow
	if json.Unmarshal(raw, &rows) == nil && len(rows) > 0 {
		return rows
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &wrapped) != nil || len(wrapped.Data) == 0 {
		return nil
	}
	if json.Unmarshal(wrapped.Data, &rows) == nil && len(rows) > 0 {
		return rows
	}
	var nested struct {
		Standings []standingRow `json:"standings"`
	}
	if json.Unmarshal(wrapped.Data, &nested) == nil {
		return nested.Standings
	}
	return nil
}

// Rank returns the team's current place and the total number of teams on
// the scoreboard, both as display strings. Unknown values come back as "?".
func (c *Client) Rank(ctx context.Context, teamID int) (rank, totalTeams string) {
	rows := c.standings(ctx)
	if len(rows) == 0 {
		return "?", "?"
	}
	rank = "?"
	for i, row := range rows {
		if row.ID == teamID {
			if row.Place != "" {
				rank = row.Place
			} else {
				rank = strconv.Itoa(i + 1)
			}
			break
		}
	}
	return rank, strconv.Itoa(len(rows))
}

// ---------- Event name ----------

// EventName extracts the deployment's display name from its config
// listing, trying the ctf_name and name keys. Empty string when unknown.
func (c *Client) EventName(ctx context.Context) string {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/v1/configs", &raw); err != nil {
		return ""
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && len(wrapped.Data) > 0 {
		raw = wrapped.Data
	}

	var kvs []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if json.Unmarshal(raw, &kvs) == nil {
		for _, key := range []string{"ctf_name", "name"} {
			for _, kv := range kvs {
				if kv.Key == key && kv.Value != "" {
					return kv.Value
				}
			}
		}
		return ""
	}

	var m map[string]interface{}
	if json.Unmarshal(raw, &m) == nil {
		for _, key := range []string{"ctf_name", "name"} {
			if v, ok := m[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}
