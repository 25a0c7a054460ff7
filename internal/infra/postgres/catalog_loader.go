package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"daily-quiz-bot/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader loads quiz definitions from the quizzes table. The data
// column holds the question list as JSONB.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadDefinitions(ctx context.Context) ([]domain.QuizDefinition, error) {
	rows, err := l.pool.Query(ctx, `SELECT period, valid_until, title, data FROM quizzes ORDER BY period`)
	if err != nil {
		return nil, storageErr("load quizzes", err)
	}
	defer rows.Close()

	var defs []domain.QuizDefinition
	for rows.Next() {
		var (
			def domain.QuizDefinition
			raw []byte
		)
		if err := rows.Scan(&def.Period, &def.ValidUntil, &def.Title, &raw); err != nil {
			return nil, storageErr("scan quiz", err)
		}
		if err := json.Unmarshal(raw, &def.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal quiz %s: %w", def.Period, err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load quizzes", err)
	}
	return defs, nil
}

// SaveDefinition upserts def.
func (l *CatalogLoader) SaveDefinition(ctx context.Context, def domain.QuizDefinition) error {
	data, err := json.Marshal(def.Questions)
	if err != nil {
		return fmt.Errorf("marshal quiz %s: %w", def.Period, err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO quizzes (period, valid_until, title, data) VALUES ($1, $2, $3, $4)
		ON CONFLICT (period) DO UPDATE SET valid_until = EXCLUDED.valid_until, title = EXCLUDED.title, data = EXCLUDED.data`,
		def.Period, def.ValidUntil, def.Title, string(data))
	if err != nil {
		return storageErr("save quiz", err)
	}
	return nil
}
