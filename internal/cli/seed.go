package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"daily-quiz-bot/internal/app"
	"daily-quiz-bot/internal/config"
	"daily-quiz-bot/internal/domain"
	"daily-quiz-bot/internal/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Period  string       `yaml:"period"`
	Results []seedResult `yaml:"results"`
}

type seedResult struct {
	UserID         string `yaml:"user_id"`
	Username       string `yaml:"username"`
	FirstName      string `yaml:"first_name"`
	Score          int    `yaml:"score"`
	ElapsedSeconds int    `yaml:"elapsed_seconds"`
	Answers        []int  `yaml:"answers"`
}

// NewSeedResultsCmd restores leaderboard results (and their attempt flags)
// from a YAML file into the configured store.
func NewSeedResultsCmd(configPath *string) *cobra.Command {
	var (
		file  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "seed-results",
		Short: "Restore leaderboard results from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			seed, err := loadSeed(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cfg.Postgres.URL != "" {
				if err := runMigrations(ctx, cfg, log); err != nil {
					return err
				}
			}
			b, err := openBackends(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := seedResults(ctx, b.store(cfg, log), seed, force, time.Now())
			if err != nil {
				return err
			}
			log.Info("results seeded", "period", seed.Period, "count", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/seed_results.yaml", "YAML file with results to restore")
	cmd.Flags().BoolVar(&force, "force", false, "seed even when the period already has results")
	return cmd
}

func loadSeed(path string) (seedFile, error) {
	var seed seedFile
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, err
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("parse %s: %w", path, err)
	}
	if _, err := time.Parse(domain.DateLayout, seed.Period); err != nil {
		return seed, fmt.Errorf("seed period %q: %w", seed.Period, err)
	}
	for i, r := range seed.Results {
		if r.UserID == "" {
			return seed, fmt.Errorf("seed result %d has no user_id", i)
		}
	}
	return seed, nil
}

// seedResults writes every result unless the period already has some and
// force is off. It returns how many results were written.
func seedResults(ctx context.Context, store app.Store, seed seedFile, force bool, now time.Time) (int, error) {
	if !force {
		existing, err := store.ListResults(ctx, seed.Period)
		if err != nil {
			return 0, err
		}
		if len(existing) > 0 {
			return 0, nil
		}
	}
	for i, r := range seed.Results {
		answers := r.Answers
		if answers == nil {
			answers = []int{}
		}
		err := store.AppendResult(ctx, domain.ResultRecord{
			ID:             uuid.NewString(),
			UserID:         r.UserID,
			Period:         seed.Period,
			Username:       r.Username,
			FirstName:      r.FirstName,
			Score:          r.Score,
			ElapsedSeconds: r.ElapsedSeconds,
			Answers:        answers,
			CreatedAt:      now.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			return i, err
		}
		err = store.MarkAttempted(ctx, domain.AttemptFlag{
			UserID:    r.UserID,
			Period:    seed.Period,
			Username:  r.Username,
			FirstName: r.FirstName,
		})
		if err != nil {
			return i, err
		}
	}
	return len(seed.Results), nil
}
