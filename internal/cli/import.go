package cli

import (
	"context"
	"fmt"

	"daily-quiz-bot/internal/catalog"
	"daily-quiz-bot/internal/config"
	"daily-quiz-bot/internal/domain"
	pgstore "daily-quiz-bot/internal/infra/postgres"
	redisstore "daily-quiz-bot/internal/infra/redis"
	"daily-quiz-bot/internal/logger"
	"github.com/spf13/cobra"
)

type definitionSink interface {
	SaveDefinition(ctx context.Context, def domain.QuizDefinition) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// NewImportQuizzesCmd copies quiz definitions from a YAML file into Postgres
// and drops the cached catalog so running bots pick them up.
func NewImportQuizzesCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import-quizzes",
		Short: "Import quiz definitions from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("import-quizzes needs postgres.url")
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			if err := runMigrations(ctx, cfg, log); err != nil {
				return err
			}
			b, err := openBackends(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			loader := pgstore.NewCatalogLoader(b.pool)
			var cache cacheInvalidator
			if b.redis != nil {
				cache = redisstore.NewCatalogCache(b.redis, loader, 0)
			}
			n, err := importQuizzes(ctx, catalog.NewFileSource(file), loader, cache)
			if err != nil {
				return err
			}
			log.Info("quizzes imported", "file", file, "count", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/quizzes.yaml", "YAML file with quiz definitions")
	return cmd
}

// importQuizzes validates every definition of source before saving any of
// them. cache may be nil.
func importQuizzes(ctx context.Context, source catalog.Source, sink definitionSink, cache cacheInvalidator) (int, error) {
	defs, err := source.LoadDefinitions(ctx)
	if err != nil {
		return 0, err
	}
	if err := catalog.Validate(defs); err != nil {
		return 0, err
	}
	for i, def := range defs {
		if err := sink.SaveDefinition(ctx, def); err != nil {
			return i, fmt.Errorf("save quiz %s: %w", def.Period, err)
		}
	}
	if cache != nil {
		if err := cache.Invalidate(ctx); err != nil {
			return len(defs), fmt.Errorf("invalidate catalog cache: %w", err)
		}
	}
	return len(defs), nil
}
