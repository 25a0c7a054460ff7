package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadParsesQuizSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
quiz:
  catalog_path: config/quizzes.yaml
  timezone: UTC
  question_time: 45s
  admins: ["ys16108"]
  bands:
    - {min_score: 4, label: "Excellent work!"}
    - {min_score: 0, label: "Keep practicing!"}
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Quiz.Admins) != 1 || len(cfg.Quiz.Bands) != 2 || cfg.Quiz.Bands[0].MinScore != 4 {
		t.Fatalf("unexpected quiz section %+v", cfg.Quiz)
	}
	if d := Duration(cfg.Quiz.QuestionTime, time.Minute); d != 45*time.Second {
		t.Fatalf("expected 45s, got %v", d)
	}
	loc, err := cfg.Quiz.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC location, got %v (%v)", loc, err)
	}
}

func TestDurationFallback(t *testing.T) {
	if d := Duration("", 5*time.Second); d != 5*time.Second {
		t.Fatalf("expected fallback, got %v", d)
	}
	if d := Duration("soon", 5*time.Second); d != 5*time.Second {
		t.Fatalf("expected fallback on garbage, got %v", d)
	}
}
