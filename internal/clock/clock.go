// Package clock abstracts wall-clock reads and scheduled callbacks so quiz
// timing can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Clock reads the time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

type wallClock struct {
	c bclock.Clock
}

// New returns a Clock backed by the system time.
func New() Clock {
	return wallClock{c: bclock.New()}
}

func (w wallClock) Now() time.Time { return w.c.Now() }

func (w wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return w.c.AfterFunc(d, f)
}

// Fake is a manually advanced Clock on top of the benbjohnson mock. Callbacks
// run synchronously on the goroutine calling Advance, in due order.
type Fake struct {
	mock *bclock.Mock

	mu   sync.Mutex
	live map[*fakeTimer]struct{}
}

type fakeTimer struct {
	clock *Fake
	timer *bclock.Timer
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	mock := bclock.NewMock()
	mock.Set(start)
	return &Fake{mock: mock, live: make(map[*fakeTimer]struct{})}
}

func (c *Fake) Now() time.Time {
	return c.mock.Now()
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{clock: c}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live[t] = struct{}{}
	t.timer = c.mock.AfterFunc(d, func() {
		c.forget(t)
		f()
	})
	return t
}

// Advance moves the clock forward by d, firing every callback that comes due,
// including callbacks scheduled by earlier callbacks within the window.
func (c *Fake) Advance(d time.Duration) {
	c.mock.Add(d)
}

// Pending returns the number of scheduled callbacks.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

func (c *Fake) forget(t *fakeTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.live, t)
}

func (t *fakeTimer) Stop() bool {
	t.clock.forget(t)
	return t.timer.Stop()
}
