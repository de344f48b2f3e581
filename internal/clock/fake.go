package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Advance fires due callbacks
// synchronously, in time order, on the calling goroutine.
type Fake struct {
	mu         sync.Mutex
	now        time.Time
	oneShots   []*fakeOneShot
	recurrings []*fakeRecurring
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) ScheduleOnce(d time.Duration, fn func()) OneShot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d < 0 {
		d = 0
	}
	o := &fakeOneShot{at: f.now.Add(d), fn: fn}
	f.oneShots = append(f.oneShots, o)
	return o
}

func (f *Fake) ScheduleRecurring(interval time.Duration, fn func()) Recurring {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &fakeRecurring{next: f.now.Add(interval), interval: interval, fn: fn}
	f.recurrings = append(f.recurrings, r)
	return r
}

// Advance moves the clock forward by d, firing every timer that comes due
// along the way.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		fn, at, ok := f.popDue(target)
		if !ok {
			break
		}
		f.mu.Lock()
		if at.After(f.now) {
			f.now = at
		}
		f.mu.Unlock()
		fn()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// popDue returns the earliest pending callback at or before target, if any,
// consuming a one-shot firing or stepping a recurring timer forward.
func (f *Fake) popDue(target time.Time) (func(), time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var bestAt time.Time
	bestShot := -1
	bestRec := -1
	for i, o := range f.oneShots {
		if o.cancelled || o.fired || o.at.After(target) {
			continue
		}
		if bestShot < 0 && bestRec < 0 || o.at.Before(bestAt) {
			bestAt, bestShot, bestRec = o.at, i, -1
		}
	}
	for i, r := range f.recurrings {
		if r.cancelled || r.next.After(target) {
			continue
		}
		if bestShot < 0 && bestRec < 0 || r.next.Before(bestAt) {
			bestAt, bestShot, bestRec = r.next, -1, i
		}
	}
	if bestShot >= 0 {
		o := f.oneShots[bestShot]
		o.fired = true
		return o.fn, o.at, true
	}
	if bestRec >= 0 {
		r := f.recurrings[bestRec]
		at := r.next
		r.next = r.next.Add(r.interval)
		return r.fn, at, true
	}
	return nil, time.Time{}, false
}

// ArmedOneShots counts pending (not fired, not cancelled) one-shot timers.
func (f *Fake) ArmedOneShots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.oneShots {
		if !o.fired && !o.cancelled {
			n++
		}
	}
	return n
}

// ArmedRecurring counts live recurring timers.
func (f *Fake) ArmedRecurring() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.recurrings {
		if !r.cancelled {
			n++
		}
	}
	return n
}

type fakeOneShot struct {
	at        time.Time
	fn        func()
	fired     bool
	cancelled bool
}

func (o *fakeOneShot) Cancel() { o.cancelled = true }

type fakeRecurring struct {
	next      time.Time
	interval  time.Duration
	fn        func()
	cancelled bool
}

func (r *fakeRecurring) Cancel() { r.cancelled = true }
