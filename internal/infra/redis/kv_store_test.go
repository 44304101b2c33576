package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivia-quiz-service/internal/domain"
)

func TestKVStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewKVStore(newClient(mr), time.Minute)

	if err := store.Set(ctx, "quiz_progress:d1", []byte(`{"userId":"u1"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("quiz:kv:quiz_progress:d1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:kv:quiz_progress:d1"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}

	got, err := store.Get(ctx, "quiz_progress:d1")
	if err != nil || string(got) != `{"userId":"u1"}` {
		t.Fatalf("get: %s %v", got, err)
	}

	if err := store.Delete(ctx, "quiz_progress:d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("quiz:kv:quiz_progress:d1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, err := store.Get(ctx, "quiz_progress:d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestKVStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewKVStore(newClient(mr), time.Minute)
	_ = store.Set(ctx, "quiz_progress", []byte("{}"))

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "quiz_progress"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected expired key, got %v", err)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func TestKVStoreWithoutTTLKeepsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewKVStore(newClient(mr), 0)
	if err := store.Set(context.Background(), "quiz_users:ann@example.com", []byte("{}")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("quiz:kv:quiz_users:ann@example.com"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}
}
