package redis

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-quiz-service/internal/domain"
)

// CategoryLoader fetches the category list from the question source.
type CategoryLoader interface {
	LoadCategories(ctx context.Context) ([]domain.Category, error)
}

// CategoryCache keeps the category list in a Redis hash shared by every
// instance and falls back to the loader on a miss.
// Stored as: HSET quiz:categories {id} {name}
type CategoryCache struct {
	client *redis.Client
	loader CategoryLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCategoryCache(client *redis.Client, loader CategoryLoader, ttl time.Duration) *CategoryCache {
	return &CategoryCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CategoryCache) Categories(ctx context.Context) ([]domain.Category, error) {
	if cached, err := c.client.HGetAll(ctx, categoriesKey).Result(); err == nil && len(cached) > 0 {
		return categoriesFromHash(cached), nil
	}

	result, err, _ := c.sf.Do(categoriesKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, err := c.client.HGetAll(ctx, categoriesKey).Result(); err == nil && len(cached) > 0 {
			return categoriesFromHash(cached), nil
		}

		categories, err := c.loader.LoadCategories(ctx)
		if err != nil {
			return nil, err
		}

		pipe := c.client.Pipeline()
		for _, cat := range categories {
			pipe.HSet(ctx, categoriesKey, strconv.Itoa(cat.ID), cat.Name)
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, categoriesKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return categories, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Category), nil
}

const categoriesKey = "quiz:categories"

func categoriesFromHash(hash map[string]string) []domain.Category {
	categories := make([]domain.Category, 0, len(hash))
	for idStr, name := range hash {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		categories = append(categories, domain.Category{ID: id, Name: name})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories
}

func (c *CategoryCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
