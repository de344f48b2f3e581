package clock

import (
	"sync"
	"time"
)

// OneShot is a cancellable timer that fires at most once.
type OneShot interface {
	Cancel()
}

// Recurring is a cancellable timer that fires repeatedly at a fixed
// interval. Callbacks run sequentially: a tick that arrives while the
// previous callback is still running is delivered afterwards, never
// concurrently with it.
type Recurring interface {
	Cancel()
}

// Clock is the timer capability handed to the scheduler and the tracker.
// Keeping the two timer kinds as distinct types prevents a recurring
// handle from being stored where a one-shot is expected.
type Clock interface {
	Now() time.Time
	ScheduleOnce(d time.Duration, fn func()) OneShot
	ScheduleRecurring(interval time.Duration, fn func()) Recurring
}

// System is the wall-clock implementation.
type System struct{}

func NewSystem() System { return System{} }

func (System) Now() time.Time { return time.Now() }

func (System) ScheduleOnce(d time.Duration, fn func()) OneShot {
	if d < 0 {
		d = 0
	}
	return &oneShot{t: time.AfterFunc(d, fn)}
}

func (System) ScheduleRecurring(interval time.Duration, fn func()) Recurring {
	r := &recurring{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-r.done:
				return
			case <-r.ticker.C:
				fn()
			}
		}
	}()
	return r
}

type oneShot struct {
	t *time.Timer
}

func (o *oneShot) Cancel() { o.t.Stop() }

type recurring struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (r *recurring) Cancel() {
	r.once.Do(func() {
		r.ticker.Stop()
		close(r.done)
	})
}
