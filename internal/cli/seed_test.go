package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"daily-quiz-bot/internal/infra/memory"
)

func TestSeedResultsRestoresOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	raw := `
period: "2025-12-25"
results:
  - {user_id: "1001", username: ys16108, first_name: Ys, score: 7, elapsed_seconds: 94}
  - {user_id: "1002", username: shubham, first_name: Shubham, score: 7, elapsed_seconds: 72}
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	seed, err := loadSeed(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}

	ctx := context.Background()
	store := memory.NewSessionStore()
	now := time.Date(2025, 12, 25, 12, 0, 0, 0, time.UTC)

	n, err := seedResults(ctx, store, seed, false, now)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 seeded, got %d (%v)", n, err)
	}
	results, _ := store.ListResults(ctx, "2025-12-25")
	if len(results) != 2 || results[0].Username != "shubham" {
		t.Fatalf("unexpected results %+v", results)
	}
	if attempted, _ := store.HasAttempted(ctx, "1001", "2025-12-25"); !attempted {
		t.Fatalf("expected attempt flag for seeded user")
	}

	if n, err := seedResults(ctx, store, seed, false, now); err != nil || n != 0 {
		t.Fatalf("expected second seed to be skipped, got %d (%v)", n, err)
	}
	if n, err := seedResults(ctx, store, seed, true, now); err != nil || n != 2 {
		t.Fatalf("expected forced seed, got %d (%v)", n, err)
	}
}

func TestLoadSeedRejectsBadPeriod(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("period: soon\n"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := loadSeed(path); err == nil {
		t.Fatalf("expected invalid period error")
	}
}
