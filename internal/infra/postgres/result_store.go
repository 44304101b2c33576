package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"trivia-quiz-service/internal/domain"
)

type resultRow struct {
	bun.BaseModel `bun:"table:quiz_results"`

	ID                  string    `bun:"id,pk"`
	UserID              string    `bun:"user_id,notnull"`
	TotalQuestions      int       `bun:"total_questions"`
	CorrectAnswers      int       `bun:"correct_answers"`
	IncorrectAnswers    int       `bun:"incorrect_answers"`
	UnansweredQuestions int       `bun:"unanswered_questions"`
	TotalTimeSpent      int       `bun:"total_time_spent"`
	Score               int       `bun:"score"`
	FinishedAt          time.Time `bun:"finished_at,notnull"`
}

// ResultStore records finished quiz results through bun.
type ResultStore struct {
	db    *bun.DB
	clock func() time.Time
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db, clock: time.Now}
}

func (s *ResultStore) Record(ctx context.Context, userID string, result domain.QuizResult) error {
	row := &resultRow{
		ID:                  uuid.NewString(),
		UserID:              userID,
		TotalQuestions:      result.TotalQuestions,
		CorrectAnswers:      result.CorrectAnswers,
		IncorrectAnswers:    result.IncorrectAnswers,
		UnansweredQuestions: result.UnansweredQuestions,
		TotalTimeSpent:      result.TotalTimeSpent,
		Score:               result.Score,
		FinishedAt:          s.clock().UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// Recent returns up to limit results for userID, newest first.
func (s *ResultStore) Recent(ctx context.Context, userID string, limit int) ([]domain.RecordedResult, error) {
	var rows []resultRow
	q := s.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Order("finished_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	out := make([]domain.RecordedResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.RecordedResult{
			ID:     r.ID,
			UserID: r.UserID,
			Result: domain.QuizResult{
				TotalQuestions:      r.TotalQuestions,
				CorrectAnswers:      r.CorrectAnswers,
				IncorrectAnswers:    r.IncorrectAnswers,
				UnansweredQuestions: r.UnansweredQuestions,
				TotalTimeSpent:      r.TotalTimeSpent,
				Score:               r.Score,
			},
			FinishedAt: r.FinishedAt,
		})
	}
	return out, nil
}
