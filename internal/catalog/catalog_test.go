package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"daily-quiz-bot/internal/domain"
)

func TestCurrentPeriodWindow(t *testing.T) {
	cat := New(NewStaticSource(
		definition("2025-12-25", "2025-12-27"),
		definition("2025-12-30", "2026-01-02"),
	), time.UTC, time.Minute)
	ctx := context.Background()

	cases := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), "2025-12-25"},
		{time.Date(2025, 12, 27, 23, 59, 59, 999_000_000, time.UTC), "2025-12-25"},
		{time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC), "2025-12-30"},
		{time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC), "2025-12-30"},
	}
	for _, tc := range cases {
		got, err := cat.CurrentPeriod(ctx, tc.now)
		if err != nil {
			t.Fatalf("current period at %v: %v", tc.now, err)
		}
		if got != tc.want {
			t.Fatalf("at %v expected %s, got %s", tc.now, tc.want, got)
		}
	}
}

func TestCurrentPeriodNoneEligible(t *testing.T) {
	cat := New(NewStaticSource(
		definition("2025-12-25", "2025-12-27"),
		definition("2025-12-30", "2026-01-02"),
	), time.UTC, time.Minute)
	ctx := context.Background()

	for _, now := range []time.Time{
		time.Date(2025, 12, 24, 23, 59, 59, 0, time.UTC),
		time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
	} {
		if _, err := cat.CurrentPeriod(ctx, now); !errors.Is(err, domain.ErrNoActiveQuiz) {
			t.Fatalf("at %v expected no active quiz, got %v", now, err)
		}
	}
}

func TestCurrentPeriodLatestStartWins(t *testing.T) {
	// The longer-running quiz is listed last on purpose.
	cat := New(NewStaticSource(
		definition("2026-01-05", "2026-01-09"),
		definition("2026-01-01", "2026-01-31"),
	), time.UTC, time.Minute)

	got, err := cat.CurrentPeriod(context.Background(), time.Date(2026, 1, 6, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("current period: %v", err)
	}
	if got != "2026-01-05" {
		t.Fatalf("expected latest start to win, got %s", got)
	}
}

func TestQuestionsForUnknownPeriod(t *testing.T) {
	cat := New(NewStaticSource(definition("2025-12-25", "2025-12-27")), time.UTC, time.Minute)

	qs, err := cat.QuestionsFor(context.Background(), "1999-01-01")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != 0 {
		t.Fatalf("expected empty questions, got %d", len(qs))
	}

	qs, err = cat.QuestionsFor(context.Background(), "2025-12-25")
	if err != nil || len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d (%v)", len(qs), err)
	}
}

func TestCatalogCachesSource(t *testing.T) {
	source := &countingSource{Source: NewStaticSource(definition("2025-12-25", "2025-12-27"))}
	cat := New(source, time.UTC, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cat.Definition(ctx, "2025-12-25"); err != nil {
			t.Fatalf("definition: %v", err)
		}
	}
	if source.calls != 1 {
		t.Fatalf("expected source loaded once, got %d", source.calls)
	}
}

func TestValidateRejectsBadContent(t *testing.T) {
	bad := []domain.QuizDefinition{
		{Period: "2025-12-25", ValidUntil: "2025-12-24", Questions: definition("2025-12-25", "2025-12-27").Questions},
		{Period: "25-12-2025", ValidUntil: "2025-12-27", Questions: definition("2025-12-25", "2025-12-27").Questions},
		{Period: "2025-12-25", ValidUntil: "2025-12-27"},
		{Period: "2025-12-25", ValidUntil: "2025-12-27", Questions: []domain.Question{{Prompt: "q", Options: []string{"only"}}}},
		{Period: "2025-12-25", ValidUntil: "2025-12-27", Questions: []domain.Question{{Prompt: "q", Options: []string{"a", "b"}, Correct: 2}}},
	}
	for i, def := range bad {
		if err := Validate([]domain.QuizDefinition{def}); !errors.Is(err, domain.ErrInvalidCatalog) {
			t.Fatalf("case %d: expected invalid catalog, got %v", i, err)
		}
	}

	dup := definition("2025-12-25", "2025-12-27")
	if err := Validate([]domain.QuizDefinition{dup, dup}); !errors.Is(err, domain.ErrInvalidCatalog) {
		t.Fatalf("expected duplicate period rejected, got %v", err)
	}
}

func TestFileSourceLoadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	raw := `
quizzes:
  - period: "2025-12-25"
    valid_until: "2025-12-27"
    title: "Canto 3"
    questions:
      - prompt: "How was the demon finally killed?"
        options: ["Mace", "Cakra", "Slap at the root of the ear", "Hooves"]
        correct: 2
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cat := New(NewFileSource(path), time.UTC, time.Minute)
	def, err := cat.Definition(context.Background(), "2025-12-25")
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	if def.Title != "Canto 3" || len(def.Questions) != 1 || def.Questions[0].Correct != 2 {
		t.Fatalf("unexpected definition %+v", def)
	}
}

func TestReloadSurvivesCancelledCaller(t *testing.T) {
	src := &gatedSource{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		defs:    []domain.QuizDefinition{definition("2025-12-25", "2025-12-27")},
	}
	cat := New(src, time.UTC, time.Minute)

	first, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	go func() {
		_, err := cat.QuestionsFor(first, "2025-12-25")
		errs <- err
	}()
	<-src.entered
	go func() {
		_, err := cat.QuestionsFor(context.Background(), "2025-12-25")
		errs <- err
	}()
	cancel()
	close(src.release)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}
}

// gatedSource blocks every load until release is closed.
type gatedSource struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	defs    []domain.QuizDefinition
}

func (s *gatedSource) LoadDefinitions(ctx context.Context) ([]domain.QuizDefinition, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.defs, nil
}

type countingSource struct {
	Source
	calls int
}

func (s *countingSource) LoadDefinitions(ctx context.Context) ([]domain.QuizDefinition, error) {
	s.calls++
	return s.Source.LoadDefinitions(ctx)
}

func definition(period, until string) domain.QuizDefinition {
	return domain.QuizDefinition{
		Period:     period,
		ValidUntil: until,
		Questions: []domain.Question{
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Correct: 1},
			{Prompt: "Is the sky blue?", Options: []string{"True", "False"}, Correct: 0},
		},
	}
}
