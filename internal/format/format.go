package format

import (
	"fmt"
	"strings"

	"ctf-notify-bot/internal/models"
)

// Telegram MarkdownV2 reserves this punctuation set; every occurrence in
// user- or platform-supplied text must be backslash-escaped.
const mdv2Reserved = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 escapes s for inclusion in a MarkdownV2 message.
func EscapeMarkdownV2(s string) string {
	b := strings.Builder{}
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(mdv2Reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// StripOrdinal drops an English ordinal suffix from a rank string
// ("1st" -> "1", "22nd" -> "22"). Unknown shapes pass through unchanged.
func StripOrdinal(rank string) string {
	for _, suf := range []string{"st", "nd", "rd", "th"} {
		if strings.HasSuffix(rank, suf) && len(rank) > len(suf) {
			head := rank[:len(rank)-len(suf)]
			if isDigits(head) {
				return head
			}
		}
	}
	return rank
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ---------- Message shapes ----------

// SolveMessage formats one newly observed solve.
func SolveMessage(eventName, teamName, challenge, category string, points, totalPoints int, rank, totalTeams string) string {
	return fmt.Sprintf(
		"🚩 *%s*\nTeam *%s* solved *%s* \\(%s\\) for *%d* points\\!\nTotal: *%d* points, rank *%s* of %s",
		EscapeMarkdownV2(eventName),
		EscapeMarkdownV2(teamName),
		EscapeMarkdownV2(challenge),
		EscapeMarkdownV2(category),
		points,
		totalPoints,
		EscapeMarkdownV2(StripOrdinal(rank)),
		EscapeMarkdownV2(totalTeams),
	)
}

// SummaryMessage formats the end-of-contest summary.
func SummaryMessage(eventName, teamName string, solved, total, points int, rank, totalTeams string) string {
	return fmt.Sprintf(
		"🏁 *%s* is over\\.\nTeam *%s* solved *%d* of %d challenges for *%d* points\\.\nFinal rank: *%s* of %s",
		EscapeMarkdownV2(eventName),
		EscapeMarkdownV2(teamName),
		solved,
		total,
		points,
		EscapeMarkdownV2(StripOrdinal(rank)),
		EscapeMarkdownV2(totalTeams),
	)
}

// ReminderMessage formats the contest-start reminder.
func ReminderMessage(ev models.ContestEvent) string {
	return fmt.Sprintf(
		"⏰ *%s* is starting now\\!\n%s\nDuration: %d days %d hours, weight %s, %d teams registered",
		EscapeMarkdownV2(ev.Title),
		EscapeMarkdownV2(ev.URL),
		ev.Duration.Days,
		ev.Duration.Hours,
		EscapeMarkdownV2(fmt.Sprintf("%.2f", ev.Weight)),
		ev.Participants,
	)
}

// UpcomingMessage formats a short list of upcoming contests.
func UpcomingMessage(events []models.ContestEvent) string {
	if len(events) == 0 {
		return "No upcoming contests found\\."
	}
	b := strings.Builder{}
	b.WriteString("📅 *Upcoming CTFs*\n")
	for _, ev := range events {
		b.WriteString(fmt.Sprintf(
			"\n*%s*\n%s\nStarts: %s UTC",
			EscapeMarkdownV2(ev.Title),
			EscapeMarkdownV2(ev.URL),
			EscapeMarkdownV2(ev.Start.UTC().Format("2006-01-02 15:04")),
		))
		b.WriteString("\n")
	}
	return b.String()
}

// EasyChallengesMessage formats the most-solved unsolved challenges.
func EasyChallengesMessage(names []string, counts []int) string {
	if len(names) == 0 {
		return "No unsolved challenges found\\."
	}
	b := strings.Builder{}
	b.WriteString("🎯 *Most solved challenges you haven't done yet*\n")
	for i, n := range names {
		b.WriteString(fmt.Sprintf("\n*%s*: %d solves", EscapeMarkdownV2(n), counts[i]))
	}
	return b.String()
}
