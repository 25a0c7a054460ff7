// Package catalog resolves which quiz is active at a given instant.
package catalog

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"daily-quiz-bot/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Source fetches quiz definitions from a backing store (file, database, cache).
type Source interface {
	LoadDefinitions(ctx context.Context) ([]domain.QuizDefinition, error)
}

// Catalog caches definitions from a Source with TTL and answers period queries.
type Catalog struct {
	source Source
	loc    *time.Location
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	entries   []entry
	byPeriod  map[string]int
	expiresAt time.Time
}

type entry struct {
	def   domain.QuizDefinition
	start time.Time
	end   time.Time
}

// New returns a catalog over source. Dates are interpreted in loc.
func New(source Source, loc *time.Location, ttl time.Duration) *Catalog {
	if loc == nil {
		loc = time.Local
	}
	return &Catalog{
		source: source,
		loc:    loc,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CurrentPeriod returns the period key serving at now. A period is eligible
// from the start of its own day through the last instant of its ValidUntil
// day. When several are eligible the latest start wins; equal starts keep
// definition order. Returns domain.ErrNoActiveQuiz when none is eligible.
func (c *Catalog) CurrentPeriod(ctx context.Context, now time.Time) (string, error) {
	entries, _, err := c.load(ctx)
	if err != nil {
		return "", err
	}

	best := -1
	for i, e := range entries {
		if now.Before(e.start) || now.After(e.end) {
			continue
		}
		if best == -1 || e.start.After(entries[best].start) {
			best = i
		}
	}
	if best == -1 {
		return "", domain.ErrNoActiveQuiz
	}
	return entries[best].def.Period, nil
}

// QuestionsFor returns the questions of period, or an empty slice when the
// period is unknown.
func (c *Catalog) QuestionsFor(ctx context.Context, period string) ([]domain.Question, error) {
	def, err := c.Definition(ctx, period)
	if errors.Is(err, domain.ErrQuizNotFound) {
		return []domain.Question{}, nil
	}
	if err != nil {
		return nil, err
	}
	return def.Questions, nil
}

// Definition returns the full definition of period.
func (c *Catalog) Definition(ctx context.Context, period string) (domain.QuizDefinition, error) {
	entries, index, err := c.load(ctx)
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	i, ok := index[period]
	if !ok {
		return domain.QuizDefinition{}, domain.ErrQuizNotFound
	}
	return entries[i].def, nil
}

func (c *Catalog) load(ctx context.Context) ([]entry, map[string]int, error) {
	now := c.clock()

	c.mu.RLock()
	if c.entries != nil && c.expiresAt.After(now) {
		entries, index := c.entries, c.byPeriod
		c.mu.RUnlock()
		return entries, index, nil
	}
	c.mu.RUnlock()

	_, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.entries != nil && c.expiresAt.After(now) {
			c.mu.RUnlock()
			return nil, nil
		}
		c.mu.RUnlock()

		// shared by every waiting caller, so one caller's cancel must not fail the rest
		defs, err := c.source.LoadDefinitions(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		entries, index, err := build(defs, c.loc)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries = entries
		c.byPeriod = index
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries, c.byPeriod, nil
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func build(defs []domain.QuizDefinition, loc *time.Location) ([]entry, map[string]int, error) {
	if err := Validate(defs); err != nil {
		return nil, nil, err
	}
	entries := make([]entry, 0, len(defs))
	index := make(map[string]int, len(defs))
	for _, def := range defs {
		start, _ := time.ParseInLocation(domain.DateLayout, def.Period, loc)
		until, _ := time.ParseInLocation(domain.DateLayout, def.ValidUntil, loc)
		index[def.Period] = len(entries)
		entries = append(entries, entry{
			def:   def,
			start: start,
			end:   until.AddDate(0, 0, 1).Add(-time.Nanosecond),
		})
	}
	return entries, index, nil
}
