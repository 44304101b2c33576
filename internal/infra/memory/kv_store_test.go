package memory

import (
	"context"
	"errors"
	"testing"

	"trivia-quiz-service/internal/domain"
)

func TestKVStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore()

	if _, err := store.Get(ctx, "quiz_progress"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	value := []byte(`{"userId":"u1"}`)
	if err := store.Set(ctx, "quiz_progress", value); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'X'

	got, err := store.Get(ctx, "quiz_progress")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"userId":"u1"}` {
		t.Fatalf("stored value aliased caller buffer: %s", got)
	}

	if err := store.Delete(ctx, "quiz_progress"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "quiz_progress"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
