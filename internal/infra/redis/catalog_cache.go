package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"daily-quiz-bot/internal/catalog"
	"daily-quiz-bot/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "quiz:catalog"

// CatalogCache is a cache-aside catalog.Source: definitions are kept as one
// JSON document in Redis and reloaded from the wrapped source on a miss.
type CatalogCache struct {
	client *redis.Client
	source catalog.Source
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogCache(client *redis.Client, source catalog.Source, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) LoadDefinitions(ctx context.Context) ([]domain.QuizDefinition, error) {
	if defs, ok := c.cached(ctx); ok {
		return defs, nil
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if defs, ok := c.cached(ctx); ok {
			return defs, nil
		}

		defs, err := c.source.LoadDefinitions(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(defs); err == nil {
			_ = c.client.Set(ctx, catalogKey, data, c.ttlWithJitter()).Err()
		}
		return defs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizDefinition), nil
}

// Invalidate drops the cached document so the next load hits the source.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, catalogKey).Err()
}

func (c *CatalogCache) cached(ctx context.Context) ([]domain.QuizDefinition, bool) {
	raw, err := c.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		return nil, false
	}
	var defs []domain.QuizDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, false
	}
	return defs, true
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
