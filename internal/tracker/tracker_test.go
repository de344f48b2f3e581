package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctf-notify-bot/internal/clock"
	"ctf-notify-bot/internal/ctfd"
	"ctf-notify-bot/internal/models"
)

const testChatID int64 = 42

type memStore struct {
	mu       sync.Mutex
	sessions []models.TrackingSession
}

func (s *memStore) LoadSessions() ([]models.TrackingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TrackingSession, len(s.sessions))
	copy(out, s.sessions)
	return out, nil
}

func (s *memStore) SaveSessions(sessions []models.TrackingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make([]models.TrackingSession, len(sessions))
	copy(s.sessions, sessions)
	return nil
}

type memSender struct {
	mu       sync.Mutex
	sent     []string
	failNext int
}

func (s *memSender) SendMarkdown(chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errors.New("telegram down")
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *memSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakePlatform struct {
	mu          sync.Mutex
	teamID      int
	found       bool
	solves      []ctfd.Solve
	solvesErr   error
	challenges  []ctfd.Challenge
	rank        string
	totalTeams  string
	eventName   string
	solvesCalls int
}

func (p *fakePlatform) FindTeam(_ context.Context, name string) (int, bool) {
	return p.teamID, p.found
}

func (p *fakePlatform) TeamSolves(_ context.Context, teamID int) ([]ctfd.Solve, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.solvesCalls++
	if p.solvesErr != nil {
		return nil, p.solvesErr
	}
	out := make([]ctfd.Solve, len(p.solves))
	copy(out, p.solves)
	return out, nil
}

func (p *fakePlatform) Challenges(_ context.Context) ([]ctfd.Challenge, error) {
	return p.challenges, nil
}

func (p *fakePlatform) Rank(_ context.Context, teamID int) (string, string) {
	return p.rank, p.totalTeams
}

func (p *fakePlatform) EventName(_ context.Context) string { return p.eventName }

func (p *fakePlatform) addSolve(s ctfd.Solve) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.solves = append(p.solves, s)
}

func (p *fakePlatform) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.solvesCalls
}

func solve(id, value int) ctfd.Solve {
	return ctfd.Solve{ChallengeID: id, Name: "chall", Category: "misc", Value: value}
}

func newTestManager(p *fakePlatform) (*Manager, *memStore, *memSender, *clock.Fake) {
	store := &memStore{}
	sender := &memSender{}
	clk := clock.NewFake(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC))
	m := New(store, sender, clk, func(url, token string) Platform { return p })
	return m, store, sender, clk
}

func defaultPlatform() *fakePlatform {
	return &fakePlatform{
		teamID:     7,
		found:      true,
		rank:       "3rd",
		totalTeams: "100",
		eventName:  "Test CTF",
		challenges: []ctfd.Challenge{
			{ID: 1, Value: 50}, {ID: 2, Value: 100}, {ID: 3, Value: 200},
		},
	}
}

func start(t *testing.T, m *Manager, clk *clock.Fake, lead time.Duration) string {
	t.Helper()
	out, err := m.Start(context.Background(), testChatID, "https://demo.ctfd.io", "team", "tok", clk.Now().Add(lead))
	require.NoError(t, err)
	return out
}

func TestStartAlreadyEnded(t *testing.T) {
	m, store, sender, clk := newTestManager(defaultPlatform())

	_, err := m.Start(context.Background(), testChatID, "https://demo.ctfd.io", "team", "tok", clk.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyEnded)
	assert.Empty(t, store.sessions)
	assert.Equal(t, 0, m.ActiveCount())
	assert.Equal(t, 0, sender.count())
}

func TestStartTeamNotFound(t *testing.T) {
	p := defaultPlatform()
	p.found = false
	m, store, _, clk := newTestManager(p)

	_, err := m.Start(context.Background(), testChatID, "https://demo.ctfd.io", "ghosts", "tok", clk.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrTeamNotFound)
	assert.Empty(t, store.sessions)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestStartSeedsKnownWithoutAnnouncing(t *testing.T) {
	p := defaultPlatform()
	p.solves = []ctfd.Solve{solve(1, 50), solve(2, 100)}
	m, store, sender, clk := newTestManager(p)

	out := start(t, m, clk, 2*time.Hour)
	assert.Contains(t, out, "Tracking team")

	require.Len(t, store.sessions, 1)
	rec := store.sessions[0]
	assert.Equal(t, 7, rec.TeamID)
	assert.Equal(t, 3, rec.TotalChallenges)
	assert.Equal(t, map[int]bool{1: true, 2: true}, rec.KnownSolveIDs)
	assert.Empty(t, rec.NotifiedSolveIDs)

	// Pre-tracking solves are never announced.
	clk.Advance(PollInterval)
	assert.Equal(t, 0, sender.count())
}

func TestPollAnnouncesNewSolveOnce(t *testing.T) {
	p := defaultPlatform()
	p.solves = []ctfd.Solve{solve(1, 50)}
	m, store, sender, clk := newTestManager(p)

	start(t, m, clk, 2*time.Hour)
	p.addSolve(solve(3, 200))

	clk.Advance(PollInterval)
	require.Equal(t, 1, sender.count())
	assert.Contains(t, sender.sent[0], "Test CTF")
	assert.Contains(t, sender.sent[0], "*250*") // recomputed total, not an increment
	assert.Contains(t, sender.sent[0], "*3* of 100")

	rec := store.sessions[0]
	assert.True(t, rec.NotifiedSolveIDs[3])
	assert.True(t, rec.CheckInvariant())

	// Further cycles stay quiet.
	clk.Advance(3 * PollInterval)
	assert.Equal(t, 1, sender.count())
}

func TestPollSendFailureRetriesNextCycle(t *testing.T) {
	p := defaultPlatform()
	m, store, sender, clk := newTestManager(p)

	start(t, m, clk, 2*time.Hour)
	sender.failNext = 1
	p.addSolve(solve(2, 100))

	clk.Advance(PollInterval)
	assert.Equal(t, 0, sender.count())
	assert.Empty(t, store.sessions[0].NotifiedSolveIDs, "failed send must not mark notified")

	clk.Advance(PollInterval)
	require.Equal(t, 1, sender.count())
	assert.True(t, store.sessions[0].NotifiedSolveIDs[2])
}

func TestPollUpstreamFailureIsQuiet(t *testing.T) {
	p := defaultPlatform()
	m, _, sender, clk := newTestManager(p)

	start(t, m, clk, 2*time.Hour)
	p.solvesErr = errors.New("ctfd down")

	clk.Advance(5 * PollInterval)
	assert.Equal(t, 0, sender.count())
	assert.Equal(t, 1, m.ActiveCount(), "poll failures never kill the session")
}

func TestSupersessionCancelsFirstSession(t *testing.T) {
	p := defaultPlatform()
	m, store, _, clk := newTestManager(p)

	start(t, m, clk, 2*time.Hour)
	before := p.calls()

	// Second start on the same chat discards the first session.
	_, err := m.Start(context.Background(), testChatID, "https://other.ctfd.io", "team", "tok2", clk.Now().Add(3*time.Hour))
	require.NoError(t, err)

	require.Len(t, store.sessions, 1)
	assert.Equal(t, "https://other.ctfd.io", store.sessions[0].PlatformURL)
	assert.Equal(t, 1, m.ActiveCount())

	// One poll tick: only the second session's timer may fire.
	after := p.calls()
	clk.Advance(PollInterval)
	assert.Equal(t, after-before+1, p.calls()-before, "first session's poll timer must be cancelled")
}

func TestStartImmediateSummary(t *testing.T) {
	p := defaultPlatform()
	p.solves = []ctfd.Solve{solve(1, 50), solve(2, 100)}
	m, store, sender, clk := newTestManager(p)

	out := start(t, m, clk, time.Minute) // less than SummaryLead
	assert.Contains(t, out, "summary")

	require.Equal(t, 1, sender.count(), "summary fires synchronously before Start returns")
	assert.Contains(t, sender.sent[0], "is over")
	assert.Contains(t, sender.sent[0], "*2* of 3")
	assert.Contains(t, sender.sent[0], "*150*")

	assert.Empty(t, store.sessions)
	assert.Equal(t, 0, m.ActiveCount())
	clk.Advance(10 * PollInterval)
	assert.Equal(t, 1, sender.count())
}

func TestSummaryTimerFiresAtLeadTime(t *testing.T) {
	p := defaultPlatform()
	m, store, sender, clk := newTestManager(p)

	start(t, m, clk, time.Hour)
	clk.Advance(time.Hour - SummaryLead)

	require.Equal(t, 1, sender.count())
	assert.Contains(t, sender.sent[0], "is over")
	assert.Empty(t, store.sessions)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestStopTearsDownQuietly(t *testing.T) {
	p := defaultPlatform()
	m, store, sender, clk := newTestManager(p)

	start(t, m, clk, 2*time.Hour)
	assert.True(t, m.Stop(testChatID))
	assert.False(t, m.Stop(testChatID))

	assert.Empty(t, store.sessions)
	clk.Advance(10 * PollInterval)
	assert.Equal(t, 0, sender.count())
}

func persistedSession(clk *clock.Fake, end time.Time, known, notified []int) models.TrackingSession {
	rec := models.TrackingSession{
		ChatID:           testChatID,
		PlatformURL:      "https://demo.ctfd.io",
		TeamName:         "team",
		Token:            "tok",
		TeamID:           7,
		KnownSolveIDs:    map[int]bool{},
		NotifiedSolveIDs: map[int]bool{},
		End:              end,
		TotalChallenges:  3,
	}
	for _, id := range known {
		rec.MarkKnown(id)
	}
	for _, id := range notified {
		rec.MarkNotified(id)
	}
	return rec
}

func TestRestoreRearmsPolling(t *testing.T) {
	p := defaultPlatform()
	p.solves = []ctfd.Solve{solve(1, 50)}
	m, store, sender, clk := newTestManager(p)
	store.sessions = []models.TrackingSession{
		persistedSession(clk, clk.Now().Add(time.Hour), []int{1}, []int{1}),
	}

	m.RestoreAll()
	assert.Equal(t, 1, m.ActiveCount())

	p.addSolve(solve(2, 100))
	clk.Advance(PollInterval)
	require.Equal(t, 1, sender.count())
	assert.True(t, store.sessions[0].NotifiedSolveIDs[2])
}

func TestRestoreAtMostOnceAcrossRestart(t *testing.T) {
	// Mid-session snapshot: challenge 1 announced, challenge 2 observed but
	// never delivered (its send failed before the restart).
	p := defaultPlatform()
	p.solves = []ctfd.Solve{solve(1, 50), solve(2, 100), solve(3, 200)}
	m, store, sender, clk := newTestManager(p)
	store.sessions = []models.TrackingSession{
		persistedSession(clk, clk.Now().Add(time.Hour), []int{1, 2}, []int{1}),
	}

	m.RestoreAll()
	clk.Advance(PollInterval)

	// Challenge 3 is new and gets exactly one announcement; 1 and 2 are in
	// the known set and stay silent.
	require.Equal(t, 1, sender.count())
	rec := store.sessions[0]
	assert.True(t, rec.NotifiedSolveIDs[3])
	assert.False(t, rec.NotifiedSolveIDs[2])
	assert.True(t, rec.CheckInvariant())
}

func TestRestoreImmediateSummary(t *testing.T) {
	p := defaultPlatform()
	p.solves = []ctfd.Solve{solve(1, 50)}
	m, store, sender, clk := newTestManager(p)
	store.sessions = []models.TrackingSession{
		persistedSession(clk, clk.Now().Add(time.Minute), []int{1}, nil),
	}

	m.RestoreAll()

	require.Equal(t, 1, sender.count())
	assert.Contains(t, sender.sent[0], "is over")
	assert.Empty(t, store.sessions)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestRestoreDropsStaleSessions(t *testing.T) {
	p := defaultPlatform()
	m, store, sender, clk := newTestManager(p)
	store.sessions = []models.TrackingSession{
		persistedSession(clk, clk.Now().Add(-time.Hour), []int{1}, nil),
	}

	m.RestoreAll()

	assert.Equal(t, 0, m.ActiveCount())
	assert.Empty(t, store.sessions)
	assert.Equal(t, 0, sender.count())
}

func TestInvariantHeldAcrossCycles(t *testing.T) {
	p := defaultPlatform()
	m, _, _, clk := newTestManager(p)

	start(t, m, clk, 2*time.Hour)
	for i := 1; i <= 3; i++ {
		p.addSolve(solve(i, 100*i))
		clk.Advance(PollInterval)
		rec, ok := m.Session(testChatID)
		require.True(t, ok)
		assert.True(t, rec.CheckInvariant())
	}
}
