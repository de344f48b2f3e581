package sheets

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ctf-notify-bot/internal/models"
)

const (
	SheetReminders = "Reminders"
	SheetSessions  = "Sessions"
)

var remindersHeader = []interface{}{
	"event_id", "title", "url", "start", "finish", "days", "hours",
	"weight", "participants", "scheduled", "notified",
}

var sessionsHeader = []interface{}{
	"chat_id", "platform_url", "team_name", "token", "team_id",
	"known_ids", "notified_ids", "end", "total_challenges",
}

// ---------- Reminders ----------

func (c *Client) LoadReminders() ([]models.ScheduledReminder, error) {
	values, err := c.readAll(SheetReminders)
	if err != nil {
		return nil, err
	}
	out := []models.ScheduledReminder{}
	// header row at index 0
	for i := 1; i < len(values); i++ {
		row := values[i]
		id, err := strconv.Atoi(get(row, 0))
		if err != nil {
			continue
		}
		days, _ := strconv.Atoi(get(row, 5))
		hours, _ := strconv.Atoi(get(row, 6))
		weight, _ := strconv.ParseFloat(get(row, 7), 64)
		participants, _ := strconv.Atoi(get(row, 8))
		out = append(out, models.ScheduledReminder{
			Event: models.ContestEvent{
				ID:           id,
				Title:        get(row, 1),
				URL:          get(row, 2),
				Start:        parseTime(get(row, 3)),
				Finish:       parseTime(get(row, 4)),
				Duration:     models.Duration{Days: days, Hours: hours},
				Weight:       weight,
				Participants: participants,
			},
			Scheduled: get(row, 9) == "true",
			Notified:  get(row, 10) == "true",
		})
	}
	return out, nil
}

func (c *Client) SaveReminders(reminders []models.ScheduledReminder) error {
	rows := [][]interface{}{remindersHeader}
	for _, r := range reminders {
		rows = append(rows, []interface{}{
			strconv.Itoa(r.Event.ID),
			r.Event.Title,
			r.Event.URL,
			r.Event.Start.UTC().Format(time.RFC3339),
			r.Event.Finish.UTC().Format(time.RFC3339),
			strconv.Itoa(r.Event.Duration.Days),
			strconv.Itoa(r.Event.Duration.Hours),
			strconv.FormatFloat(r.Event.Weight, 'f', 2, 64),
			strconv.Itoa(r.Event.Participants),
			strconv.FormatBool(r.Scheduled),
			strconv.FormatBool(r.Notified),
		})
	}
	return c.writeAll(SheetReminders, rows)
}

// ---------- Sessions ----------

func (c *Client) LoadSessions() ([]models.TrackingSession, error) {
	values, err := c.readAll(SheetSessions)
	if err != nil {
		return nil, err
	}
	out := []models.TrackingSession{}
	for i := 1; i < len(values); i++ {
		row := values[i]
		chatID, err := strconv.ParseInt(get(row, 0), 10, 64)
		if err != nil {
			continue
		}
		teamID, _ := strconv.Atoi(get(row, 4))
		total, _ := strconv.Atoi(get(row, 8))
		out = append(out, models.TrackingSession{
			ChatID:           chatID,
			PlatformURL:      get(row, 1),
			TeamName:         get(row, 2),
			Token:            get(row, 3),
			TeamID:           teamID,
			KnownSolveIDs:    parseIDSet(get(row, 5)),
			NotifiedSolveIDs: parseIDSet(get(row, 6)),
			End:              parseTime(get(row, 7)),
			TotalChallenges:  total,
		})
	}
	return out, nil
}

func (c *Client) SaveSessions(sessions []models.TrackingSession) error {
	rows := [][]interface{}{sessionsHeader}
	for _, s := range sessions {
		rows = append(rows, []interface{}{
			strconv.FormatInt(s.ChatID, 10),
			s.PlatformURL,
			s.TeamName,
			s.Token,
			strconv.Itoa(s.TeamID),
			formatIDSet(s.KnownSolveIDs),
			formatIDSet(s.NotifiedSolveIDs),
			s.End.UTC().Format(time.RFC3339),
			strconv.Itoa(s.TotalChallenges),
		})
	}
	return c.writeAll(SheetSessions, rows)
}

// ---------- helpers ----------

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, strings.TrimSpace(s))
	return t
}

func parseIDSet(s string) map[int]bool {
	out := map[int]bool{}
	for _, f := range strings.Fields(s) {
		if id, err := strconv.Atoi(f); err == nil {
			out[id] = true
		}
	}
	return out
}

func formatIDSet(ids map[int]bool) string {
	sorted := make([]int, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
