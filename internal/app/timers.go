package app

import (
	"sync"
	"time"

	"daily-quiz-bot/internal/clock"
	"daily-quiz-bot/internal/logger"
)

// QuestionTimer describes the countdown of one presented question.
type QuestionTimer struct {
	Budget    time.Duration
	Every     time.Duration
	OnRefresh func(remaining time.Duration) error
	OnTimeout func()
}

// Timers keeps the advisory per-user handles: question timeout, countdown
// refresh and the delayed advance after feedback. Losing them only loses
// timeout protection, never durable state.
type Timers struct {
	clock clock.Clock
	log   *logger.Logger

	mu      sync.Mutex
	gen     uint64
	entries map[string]*timerEntry
	stopped bool
}

type timerEntry struct {
	gen     uint64
	timeout clock.Timer
	refresh clock.Timer
	advance clock.Timer
}

func NewTimers(c clock.Clock, log *logger.Logger) *Timers {
	if c == nil {
		c = clock.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Timers{
		clock:   c,
		log:     log,
		entries: make(map[string]*timerEntry),
	}
}

// StartQuestion replaces whatever the user had scheduled with a fresh
// timeout and refresh chain. Callers hold the user's lock and have checked
// that the question is still current.
func (t *Timers) StartQuestion(userID string, qt QuestionTimer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	e := t.resetLocked(userID)
	gen := e.gen
	start := t.clock.Now()

	e.timeout = t.clock.AfterFunc(qt.Budget, func() {
		if !t.claimTimeout(userID, gen) {
			return
		}
		qt.OnTimeout()
	})
	if qt.Every > 0 && qt.OnRefresh != nil {
		t.scheduleRefreshLocked(userID, e, start, qt)
	}
}

// After schedules fn once delay has elapsed, replacing the user's handles.
func (t *Timers) After(userID string, delay time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	e := t.resetLocked(userID)
	gen := e.gen
	e.advance = t.clock.AfterFunc(delay, func() {
		t.mu.Lock()
		cur, ok := t.entries[userID]
		if !ok || cur.gen != gen {
			t.mu.Unlock()
			return
		}
		delete(t.entries, userID)
		t.mu.Unlock()
		fn()
	})
}

// Cancel stops every handle of userID.
func (t *Timers) Cancel(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(userID)
}

// Active reports whether userID has anything scheduled.
func (t *Timers) Active(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[userID]
	return ok
}

// Stop cancels all handles and refuses new ones.
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for userID := range t.entries {
		t.cancelLocked(userID)
	}
}

func (t *Timers) resetLocked(userID string) *timerEntry {
	t.cancelLocked(userID)
	t.gen++
	e := &timerEntry{gen: t.gen}
	t.entries[userID] = e
	return e
}

func (t *Timers) cancelLocked(userID string) {
	e, ok := t.entries[userID]
	if !ok {
		return
	}
	for _, h := range []clock.Timer{e.timeout, e.refresh, e.advance} {
		if h != nil {
			h.Stop()
		}
	}
	delete(t.entries, userID)
}

func (t *Timers) claimTimeout(userID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[userID]
	if !ok || e.gen != gen {
		return false
	}
	if e.refresh != nil {
		e.refresh.Stop()
	}
	delete(t.entries, userID)
	return true
}

func (t *Timers) scheduleRefreshLocked(userID string, e *timerEntry, start time.Time, qt QuestionTimer) {
	gen := e.gen
	e.refresh = t.clock.AfterFunc(qt.Every, func() {
		t.mu.Lock()
		cur, ok := t.entries[userID]
		t.mu.Unlock()
		if !ok || cur.gen != gen {
			return
		}

		remaining := qt.Budget - t.clock.Now().Sub(start)
		if remaining <= 0 {
			return
		}
		if err := qt.OnRefresh(remaining); err != nil {
			// the countdown is cosmetic; the timeout keeps running
			t.log.Debug("countdown refresh stopped", "user", userID, "error", err)
			return
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if cur, ok := t.entries[userID]; ok && cur.gen == gen && !t.stopped {
			t.scheduleRefreshLocked(userID, cur, start, qt)
		}
	})
}
