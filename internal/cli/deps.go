package cli

import (
	"context"
	"fmt"
	"time"

	"daily-quiz-bot/internal/app"
	"daily-quiz-bot/internal/catalog"
	"daily-quiz-bot/internal/config"
	"daily-quiz-bot/internal/infra/memory"
	pgstore "daily-quiz-bot/internal/infra/postgres"
	redisstore "daily-quiz-bot/internal/infra/redis"
	"daily-quiz-bot/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backends holds the optional connections named in config.
type backends struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
	}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}
	return b, nil
}

func (b *backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// store prefers Postgres, then Redis, then process memory.
func (b *backends) store(cfg config.Config, log *logger.Logger) app.Store {
	switch {
	case b.pool != nil:
		log.Info("using postgres store")
		return pgstore.NewSessionStore(b.pool)
	case b.redis != nil:
		log.Info("using redis store")
		return redisstore.NewSessionStore(b.redis, config.Duration(cfg.Redis.TTL, 30*time.Minute))
	default:
		log.Warn("using in-memory store; results are lost on restart")
		return memory.NewSessionStore()
	}
}

func (b *backends) catalog(cfg config.Config, log *logger.Logger) (*catalog.Catalog, error) {
	loc, err := cfg.Quiz.Location()
	if err != nil {
		return nil, fmt.Errorf("quiz timezone: %w", err)
	}
	ttl := config.Duration(cfg.Quiz.CatalogTTL, 10*time.Minute)

	var source catalog.Source
	switch cfg.Quiz.CatalogSource {
	case "", "file":
		path := cfg.Quiz.CatalogPath
		if path == "" {
			path = "config/quizzes.yaml"
		}
		source = catalog.NewFileSource(path)
	case "postgres":
		if b.pool == nil {
			return nil, fmt.Errorf("catalog source postgres needs postgres.url")
		}
		source = pgstore.NewCatalogLoader(b.pool)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Quiz.CatalogSource)
	}
	if b.redis != nil {
		source = redisstore.NewCatalogCache(b.redis, source, ttl)
	}
	log.Info("quiz catalog configured", "source", cfg.Quiz.CatalogSource, "timezone", loc.String())
	return catalog.New(source, loc, ttl), nil
}
