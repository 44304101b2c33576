package memory

import (
	"testing"

	"trivia-quiz-service/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	first := &app.Session{}
	second := &app.Session{}

	if _, replaced := store.Put("quiz_progress:d1", first); replaced {
		t.Fatalf("expected empty slot")
	}
	prev, replaced := store.Put("quiz_progress:d1", second)
	if !replaced || prev != first {
		t.Fatalf("expected first session to be replaced, got %v", prev)
	}

	// A stale session must not evict its replacement.
	store.Remove("quiz_progress:d1", first)
	if got, ok := store.Get("quiz_progress:d1"); !ok || got != second {
		t.Fatalf("expected second session to survive")
	}

	store.Remove("quiz_progress:d1", second)
	if _, ok := store.Get("quiz_progress:d1"); ok {
		t.Fatalf("expected session removed")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}
