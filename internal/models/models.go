package models

import "time"

// ContestEvent is one upcoming contest as returned by the CTFtime listing.
// Never mutated after fetch; only referenced.
type ContestEvent struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Start        time.Time `json:"start"`
	Finish       time.Time `json:"finish"`
	Duration     Duration  `json:"duration"`
	Weight       float64   `json:"weight"`
	Participants int       `json:"participants"`
	Format       string    `json:"format"`
	Onsite       bool      `json:"onsite"`
}

type Duration struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// ScheduledReminder tracks one contest-start reminder. The event snapshot
// is persisted alongside the flags so a restart can still render the
// message. Invariant: Notified implies Scheduled.
type ScheduledReminder struct {
	Event     ContestEvent
	Scheduled bool
	Notified  bool
}

// TrackingSession is the persisted state of one per-chat tracking session.
// KnownSolveIDs holds every challenge id observed locally; NotifiedSolveIDs
// holds the subset for which a message was actually delivered. Invariant:
// NotifiedSolveIDs ⊆ KnownSolveIDs.
type TrackingSession struct {
	ChatID           int64
	PlatformURL      string
	TeamName         string
	Token            string
	TeamID           int
	KnownSolveIDs    map[int]bool
	NotifiedSolveIDs map[int]bool
	End              time.Time
	TotalChallenges  int
}

// MarkKnown records a locally observed solve.
func (s *TrackingSession) MarkKnown(challengeID int) {
	if s.KnownSolveIDs == nil {
		s.KnownSolveIDs = map[int]bool{}
	}
	s.KnownSolveIDs[challengeID] = true
}

// MarkNotified records a delivered announcement. The id is added to the
// known set as well, so the subset invariant holds regardless of call order.
func (s *TrackingSession) MarkNotified(challengeID int) {
	s.MarkKnown(challengeID)
	if s.NotifiedSolveIDs == nil {
		s.NotifiedSolveIDs = map[int]bool{}
	}
	s.NotifiedSolveIDs[challengeID] = true
}

// CheckInvariant reports whether every notified id is also known.
func (s *TrackingSession) CheckInvariant() bool {
	for id := range s.NotifiedSolveIDs {
		if !s.KnownSolveIDs[id] {
			return false
		}
	}
	return true
}
