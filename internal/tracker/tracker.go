package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ctf-notify-bot/internal/clock"
	"ctf-notify-bot/internal/ctfd"
	"ctf-notify-bot/internal/format"
	"ctf-notify-bot/internal/models"
)

const (
	// PollInterval is the cadence of the recurring solve check.
	PollInterval = 30 * time.Second
	// SummaryLead is how long before contest end the summary replaces
	// further polling.
	SummaryLead = 2 * time.Minute
)

var (
	ErrAlreadyEnded = errors.New("contest already ended")
	ErrTeamNotFound = errors.New("team not found")
)

// Store is the session slice of the durable store.
type Store interface {
	LoadSessions() ([]models.TrackingSession, error)
	SaveSessions([]models.TrackingSession) error
}

// Sender delivers one MarkdownV2 message to a chat.
type Sender interface {
	SendMarkdown(chatID int64, text string) error
}

// Platform is the read-only view of one CTFd deployment.
type Platform interface {
	FindTeam(ctx context.Context, name string) (int, bool)
	TeamSolves(ctx context.Context, teamID int) ([]ctfd.Solve, error)
	Challenges(ctx context.Context) ([]ctfd.Challenge, error)
	Rank(ctx context.Context, teamID int) (rank, totalTeams string)
	EventName(ctx context.Context) string
}

// PlatformFunc builds a Platform client for one session's deployment.
type PlatformFunc func(baseURL, token string) Platform

// DefaultPlatform is the real CTFd client.
func DefaultPlatform(baseURL, token string) Platform {
	return ctfd.New(baseURL, token)
}

type session struct {
	rec     models.TrackingSession
	poll    clock.Recurring
	summary clock.OneShot
}

// Manager owns all live tracking sessions, at most one per chat. Each
// session exclusively owns its two timer handles. The mutex guards the
// registry and session records; it is never held across network calls, so
// a session stopped mid-poll is caught by the existence check before any
// late write.
type Manager struct {
	store       Store
	sender      Sender
	clk         clock.Clock
	platformFor PlatformFunc

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(store Store, sender Sender, clk clock.Clock, platformFor PlatformFunc) *Manager {
	if platformFor == nil {
		platformFor = DefaultPlatform
	}
	return &Manager{
		store:       store,
		sender:      sender,
		clk:         clk,
		platformFor: platformFor,
		sessions:    map[int64]*session{},
	}
}

// Start creates a tracking session for chatID, superseding any existing
// one on the same chat. The returned string is the user-facing outcome.
func (m *Manager) Start(ctx context.Context, chatID int64, platformURL, teamName, token string, end time.Time) (string, error) {
	now := m.clk.Now()
	if !end.After(now) {
		return "", ErrAlreadyEnded
	}

	// Last writer wins: an existing session on this chat is discarded.
	m.Stop(chatID)

	p := m.platformFor(platformURL, token)
	teamID, ok := p.FindTeam(ctx, teamName)
	if !ok {
		return "", ErrTeamNotFound
	}

	challenges, err := p.Challenges(ctx)
	if err != nil {
		log.Printf("tracker: chat %d: challenge snapshot: %v", chatID, err)
		challenges = nil
	}
	solves, err := p.TeamSolves(ctx, teamID)
	if err != nil {
		log.Printf("tracker: chat %d: solve snapshot: %v", chatID, err)
		solves = nil
	}

	rec := models.TrackingSession{
		ChatID:           chatID,
		PlatformURL:      platformURL,
		TeamName:         teamName,
		Token:            token,
		TeamID:           teamID,
		KnownSolveIDs:    map[int]bool{},
		NotifiedSolveIDs: map[int]bool{},
		End:              end,
		TotalChallenges:  len(challenges),
	}
	// Solves that predate tracking are not re-announced but still count
	// toward the summary.
	for _, s := range solves {
		rec.MarkKnown(s.ChallengeID)
	}

	m.mu.Lock()
	sess := &session{rec: rec}
	m.sessions[chatID] = sess
	if err := m.persistLocked(chatID); err != nil {
		delete(m.sessions, chatID)
		m.mu.Unlock()
		return "", fmt.Errorf("persist session: %w", err)
	}
	armed := m.armLocked(sess)
	m.mu.Unlock()

	if !armed {
		m.Summarize(chatID)
		return fmt.Sprintf("Contest ends in under %s, sending the summary right away.", SummaryLead), nil
	}
	return fmt.Sprintf(
		"Tracking team %q (%d challenges, %d already solved). New solves are announced every %s.",
		teamName, rec.TotalChallenges, len(rec.KnownSolveIDs), PollInterval,
	), nil
}

// armLocked arms the poll timer and, if more than SummaryLead remains, the
// summary timer. Returns false when the summary must fire immediately
// instead; the caller runs it outside the lock.
func (m *Manager) armLocked(sess *session) bool {
	chatID := sess.rec.ChatID
	sess.poll = m.clk.ScheduleRecurring(PollInterval, func() {
		m.pollCycle(chatID)
	})
	remaining := sess.rec.End.Sub(m.clk.Now())
	if remaining <= SummaryLead {
		return false
	}
	sess.summary = m.clk.ScheduleOnce(remaining-SummaryLead, func() {
		m.Summarize(chatID)
	})
	return true
}

// pollCycle is one execution of the recurring solve check. Upstream
// failures are treated as empty data; the cycle always completes.
func (m *Manager) pollCycle(chatID int64) {
	ctx := context.Background()

	m.mu.Lock()
	sess, ok := m.sessions[chatID]
	if !ok {
		m.mu.Unlock()
		return
	}
	rec := sess.rec
	m.mu.Unlock()

	p := m.platformFor(rec.PlatformURL, rec.Token)
	solves, err := p.TeamSolves(ctx, rec.TeamID)
	if err != nil {
		log.Printf("tracker: chat %d: poll solves: %v", chatID, err)
		return
	}

	total := 0
	for _, s := range solves {
		total += s.Value
	}

	for _, s := range solves {
		if rec.KnownSolveIDs[s.ChallengeID] {
			continue
		}
		if rec.NotifiedSolveIDs[s.ChallengeID] {
			// Already announced before a crash lost the known flag.
			m.markSolve(chatID, s.ChallengeID, false)
			continue
		}

		rank, totalTeams := p.Rank(ctx, rec.TeamID)
		eventName := p.EventName(ctx)
		if eventName == "" {
			eventName = rec.PlatformURL
		}
		msg := format.SolveMessage(eventName, rec.TeamName, s.Name, s.Category, s.Value, total, rank, totalTeams)
		if err := m.sender.SendMarkdown(chatID, msg); err != nil {
			// Not marked notified: the next cycle retries the announcement.
			log.Printf("tracker: chat %d: send solve %d: %v", chatID, s.ChallengeID, err)
			continue
		}
		m.markSolve(chatID, s.ChallengeID, true)
	}
}

// markSolve records a solve as known (and notified, when delivered) and
// persists the session. The existence check keeps a poll that raced with
// Stop from resurrecting the store record.
func (m *Manager) markSolve(chatID int64, challengeID int, notified bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[chatID]
	if !ok {
		return
	}
	if notified {
		sess.rec.MarkNotified(challengeID)
	} else {
		sess.rec.MarkKnown(challengeID)
	}
	if err := m.persistLocked(chatID); err != nil {
		log.Printf("tracker: chat %d: persist: %v", chatID, err)
	}
}

// Summarize sends the end-of-contest summary and tears the session down.
func (m *Manager) Summarize(chatID int64) {
	ctx := context.Background()

	m.mu.Lock()
	sess, ok := m.sessions[chatID]
	if !ok {
		m.mu.Unlock()
		return
	}
	rec := sess.rec
	m.mu.Unlock()

	p := m.platformFor(rec.PlatformURL, rec.Token)
	solves, err := p.TeamSolves(ctx, rec.TeamID)
	if err != nil {
		log.Printf("tracker: chat %d: summary solves: %v", chatID, err)
		solves = nil
	}
	points := 0
	for _, s := range solves {
		points += s.Value
	}
	rank, totalTeams := p.Rank(ctx, rec.TeamID)
	eventName := p.EventName(ctx)
	if eventName == "" {
		eventName = rec.PlatformURL
	}

	msg := format.SummaryMessage(eventName, rec.TeamName, len(solves), rec.TotalChallenges, points, rank, totalTeams)
	if err := m.sender.SendMarkdown(chatID, msg); err != nil {
		log.Printf("tracker: chat %d: send summary: %v", chatID, err)
	}

	m.teardown(chatID)
}

// Stop tears the session down without a message. Reports whether a
// session existed.
func (m *Manager) Stop(chatID int64) bool {
	return m.teardown(chatID)
}

func (m *Manager) teardown(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[chatID]
	if !ok {
		return false
	}
	if sess.poll != nil {
		sess.poll.Cancel()
	}
	if sess.summary != nil {
		sess.summary.Cancel()
	}
	delete(m.sessions, chatID)
	if err := m.persistLocked(chatID); err != nil {
		log.Printf("tracker: chat %d: remove from store: %v", chatID, err)
	}
	return true
}

// persistLocked rewrites the store's session collection from the live
// registry's record for chatID (or removes it when absent). Caller holds
// the mutex.
func (m *Manager) persistLocked(chatID int64) error {
	stored, err := m.store.LoadSessions()
	if err != nil {
		log.Printf("tracker: load sessions: %v", err)
		stored = nil
	}
	out := make([]models.TrackingSession, 0, len(stored)+1)
	for _, s := range stored {
		if s.ChatID != chatID {
			out = append(out, s)
		}
	}
	if sess, ok := m.sessions[chatID]; ok {
		out = append(out, sess.rec)
	}
	return m.store.SaveSessions(out)
}

// RestoreAll rebuilds sessions from the durable store after a restart.
// Sessions whose contest already ended are dropped; the rest get fresh
// timers, or an immediate summary when less than SummaryLead remains.
func (m *Manager) RestoreAll() {
	stored, err := m.store.LoadSessions()
	if err != nil {
		log.Printf("tracker: restore: load sessions: %v", err)
		return
	}
	now := m.clk.Now()

	immediate := []int64{}
	m.mu.Lock()
	for _, rec := range stored {
		if !rec.End.After(now) {
			log.Printf("tracker: restore: dropping stale session for chat %d (ended %s)", rec.ChatID, rec.End)
			continue
		}
		rec := rec
		sess := &session{rec: rec}
		m.sessions[rec.ChatID] = sess
		if !m.armLocked(sess) {
			immediate = append(immediate, rec.ChatID)
		}
	}
	// One rewrite drops the stale records.
	kept := make([]models.TrackingSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		kept = append(kept, sess.rec)
	}
	if err := m.store.SaveSessions(kept); err != nil {
		log.Printf("tracker: restore: save sessions: %v", err)
	}
	m.mu.Unlock()

	for _, chatID := range immediate {
		m.Summarize(chatID)
	}
}

// Session returns a copy of the live session for chatID, if any.
func (m *Manager) Session(chatID int64) (models.TrackingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[chatID]
	if !ok {
		return models.TrackingSession{}, false
	}
	rec := sess.rec
	rec.KnownSolveIDs = copySet(sess.rec.KnownSolveIDs)
	rec.NotifiedSolveIDs = copySet(sess.rec.NotifiedSolveIDs)
	return rec, true
}

func copySet(in map[int]bool) map[int]bool {
	out := make(map[int]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ActiveCount reports the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
