package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"ctf-notify-bot/internal/clock"
	"ctf-notify-bot/internal/format"
	"ctf-notify-bot/internal/models"
)

const (
	ingestInterval = time.Hour
	fetchWindow    = 14 * 24 * time.Hour
	fetchLimit     = 100
)

// Store is the reminder slice of the durable store.
type Store interface {
	LoadReminders() ([]models.ScheduledReminder, error)
	SaveReminders([]models.ScheduledReminder) error
}

// Sender delivers one MarkdownV2 message to a chat.
type Sender interface {
	SendMarkdown(chatID int64, text string) error
}

// Lister fetches upcoming contests from the listing API.
type Lister interface {
	UpcomingEvents(ctx context.Context, from, to time.Time, limit int) ([]models.ContestEvent, error)
}

// Scheduler arms one-shot contest-start reminders, deduplicated against
// the durable store, and re-arms them after a restart.
type Scheduler struct {
	store        Store
	sender       Sender
	lister       Lister
	clk          clock.Clock
	notifyChatID int64

	mu    sync.Mutex
	armed map[int]clock.OneShot
}

func New(store Store, sender Sender, lister Lister, clk clock.Clock, notifyChatID int64) *Scheduler {
	return &Scheduler{
		store:        store,
		sender:       sender,
		lister:       lister,
		clk:          clk,
		notifyChatID: notifyChatID,
		armed:        map[int]clock.OneShot{},
	}
}

// ScheduleReminder arms a reminder for ev unless one is already scheduled
// (force bypasses the dedup check, used when re-arming after restart).
// Events whose start is already past are dropped silently: a reminder that
// can no longer fire on time is best-effort, not an error.
func (s *Scheduler) ScheduleReminder(ev models.ContestEvent, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.store.LoadReminders()
	if err != nil {
		log.Printf("scheduler: load reminders: %v", err)
		reminders = nil
	}
	for _, r := range reminders {
		if r.Event.ID == ev.ID && r.Scheduled && !force {
			return nil
		}
	}

	now := s.clk.Now()
	if !ev.Start.After(now) {
		return nil
	}

	// Persist as pending before arming, so a crash before the timer fires
	// still shows the reminder on restart.
	updated := upsert(reminders, models.ScheduledReminder{Event: ev, Scheduled: true, Notified: false})
	if err := s.store.SaveReminders(updated); err != nil {
		return err
	}

	if old, ok := s.armed[ev.ID]; ok {
		old.Cancel()
	}
	s.armed[ev.ID] = s.clk.ScheduleOnce(ev.Start.Sub(now), func() {
		s.fire(ev)
	})
	return nil
}

// fire sends the "starting now" message and marks the reminder notified.
// A failed send is logged and the reminder is marked notified anyway: the
// design favors no-duplicate over guaranteed delivery.
func (s *Scheduler) fire(ev models.ContestEvent) {
	if err := s.sender.SendMarkdown(s.notifyChatID, format.ReminderMessage(ev)); err != nil {
		log.Printf("scheduler: send reminder for %q: %v", ev.Title, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.armed, ev.ID)

	reminders, err := s.store.LoadReminders()
	if err != nil {
		log.Printf("scheduler: load reminders: %v", err)
		return
	}
	for i := range reminders {
		if reminders[i].Event.ID == ev.ID {
			reminders[i].Notified = true
		}
	}
	if err := s.store.SaveReminders(reminders); err != nil {
		log.Printf("scheduler: persist notified flag for %d: %v", ev.ID, err)
	}
}

// ReconcileOnStartup re-arms every persisted reminder that has not fired
// yet and still lies in the future.
func (s *Scheduler) ReconcileOnStartup() {
	s.mu.Lock()
	reminders, err := s.store.LoadReminders()
	s.mu.Unlock()
	if err != nil {
		log.Printf("scheduler: reconcile: load reminders: %v", err)
		return
	}
	now := s.clk.Now()
	for _, r := range reminders {
		if r.Notified || !r.Event.Start.After(now) {
			continue
		}
		if err := s.ScheduleReminder(r.Event, true); err != nil {
			log.Printf("scheduler: reconcile %d: %v", r.Event.ID, err)
		}
	}
}

// IngestFetchedEvents runs one ingest cycle: purge finished reminders,
// fetch the upcoming window and schedule whatever matches the accepted
// filter (Jeopardy, not onsite). Failures are logged; the next hourly
// tick retries naturally.
func (s *Scheduler) IngestFetchedEvents(ctx context.Context) {
	s.purgeFinished()

	now := s.clk.Now()
	events, err := s.lister.UpcomingEvents(ctx, now, now.Add(fetchWindow), fetchLimit)
	if err != nil {
		log.Printf("scheduler: fetch events: %v", err)
		return
	}
	for _, ev := range events {
		if ev.Format != "Jeopardy" || ev.Onsite {
			continue
		}
		if err := s.ScheduleReminder(ev, false); err != nil {
			log.Printf("scheduler: schedule %q: %v", ev.Title, err)
			return
		}
	}
}

// purgeFinished garbage-collects reminders whose contest is already over.
func (s *Scheduler) purgeFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.store.LoadReminders()
	if err != nil {
		log.Printf("scheduler: purge: load reminders: %v", err)
		return
	}
	now := s.clk.Now()
	kept := reminders[:0]
	changed := false
	for _, r := range reminders {
		if r.Event.Finish.Before(now) {
			changed = true
			continue
		}
		kept = append(kept, r)
	}
	if !changed {
		return
	}
	if err := s.store.SaveReminders(kept); err != nil {
		log.Printf("scheduler: purge: save reminders: %v", err)
	}
}

// Run ingests immediately and then on an hourly cadence until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.IngestFetchedEvents(ctx)
	t := s.clk.ScheduleRecurring(ingestInterval, func() {
		s.IngestFetchedEvents(ctx)
	})
	<-ctx.Done()
	t.Cancel()
}

// PendingCount reports how many reminder timers are currently armed.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

func upsert(reminders []models.ScheduledReminder, r models.ScheduledReminder) []models.ScheduledReminder {
	for i := range reminders {
		if reminders[i].Event.ID == r.Event.ID {
			reminders[i] = r
			return reminders
		}
	}
	return append(reminders, r)
}
