package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-quiz-service/internal/domain"
)

// ResultStore keeps finished results in memory, newest last.
type ResultStore struct {
	mu      sync.RWMutex
	clock   func() time.Time
	results []domain.RecordedResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{clock: time.Now}
}

func (s *ResultStore) Record(_ context.Context, userID string, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, domain.RecordedResult{
		ID:         uuid.NewString(),
		UserID:     userID,
		Result:     result,
		FinishedAt: s.clock(),
	})
	return nil
}

// Recent returns up to limit results for userID, newest first.
func (s *ResultStore) Recent(_ context.Context, userID string, limit int) ([]domain.RecordedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RecordedResult, 0)
	for i := len(s.results) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.results[i].UserID == userID {
			out = append(out, s.results[i])
		}
	}
	return out, nil
}
