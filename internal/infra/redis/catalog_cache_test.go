package redis

import (
	"context"
	"testing"
	"time"

	"daily-quiz-bot/internal/catalog"
	"daily-quiz-bot/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestCatalogCacheCachesInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := newClient(mr)

	source := &countingSource{Source: catalog.NewStaticSource(sampleDefinition())}
	cache := NewCatalogCache(client, source, time.Minute)

	defs, err := cache.LoadDefinitions(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 1 || defs[0].Questions[0].Correct != 1 {
		t.Fatalf("unexpected definitions %+v", defs)
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}
	if !mr.Exists(catalogKey) {
		t.Fatalf("expected catalog cached in redis")
	}

	// Second call should hit cache, source not incremented.
	if _, err := cache.LoadDefinitions(context.Background()); err != nil {
		t.Fatalf("load again: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}

	if err := cache.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.LoadDefinitions(context.Background()); err != nil {
		t.Fatalf("load after invalidate: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected reload after invalidate, source calls=%d", source.calls)
	}
}

func TestCatalogCacheFeedsCatalog(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewCatalogCache(newClient(mr), catalog.NewStaticSource(sampleDefinition()), time.Minute)
	cat := catalog.New(cache, time.UTC, time.Minute)

	period, err := cat.CurrentPeriod(context.Background(), time.Date(2025, 12, 26, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("current period: %v", err)
	}
	if period != "2025-12-25" {
		t.Fatalf("expected 2025-12-25, got %s", period)
	}
}

type countingSource struct {
	catalog.Source
	calls int
}

func (s *countingSource) LoadDefinitions(ctx context.Context) ([]domain.QuizDefinition, error) {
	s.calls++
	return s.Source.LoadDefinitions(ctx)
}

func sampleDefinition() domain.QuizDefinition {
	return domain.QuizDefinition{
		Period:     "2025-12-25",
		ValidUntil: "2025-12-27",
		Questions: []domain.Question{
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, Correct: 1},
		},
	}
}
