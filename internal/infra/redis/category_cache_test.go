package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
)

func TestCategoryCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		CategoryLoader: memory.NewStaticCategoryLoader([]domain.Category{
			{ID: 22, Name: "Geography"},
			{ID: 9, Name: "General Knowledge"},
		}),
	}
	cache := NewCategoryCache(newClient(mr), loader, time.Minute)

	if _, err := cache.Categories(context.Background()); err != nil {
		t.Fatalf("categories: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call should hit Redis and come back ordered by id.
	got, err := cache.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(got) != 2 || got[0].ID != 9 || got[1].Name != "Geography" {
		t.Fatalf("unexpected categories %+v", got)
	}
}

type countingLoader struct {
	memory.CategoryLoader
	calls int
}

func (l *countingLoader) LoadCategories(ctx context.Context) ([]domain.Category, error) {
	l.calls++
	return l.CategoryLoader.LoadCategories(ctx)
}
