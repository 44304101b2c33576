package memory

import (
	"context"

	"trivia-quiz-service/internal/domain"
)

// QuestionBank is a fixed question source for tests and offline play.
// Category ids are not tracked, so only difficulty and type filter the bank.
type QuestionBank struct {
	questions []domain.Question
}

func NewQuestionBank(questions []domain.Question) *QuestionBank {
	return &QuestionBank{questions: questions}
}

func (b *QuestionBank) FetchQuestions(_ context.Context, cfg domain.QuizConfig) ([]domain.Question, error) {
	if err := cfg.Validate(); err != nil {
		return nil, domain.ErrInvalidParameter
	}

	out := make([]domain.Question, 0, cfg.Amount)
	for _, q := range b.questions {
		if cfg.Difficulty != "" && q.Difficulty != cfg.Difficulty {
			continue
		}
		if cfg.Type != "" && q.Type != cfg.Type {
			continue
		}
		out = append(out, q)
		if len(out) == cfg.Amount {
			return out, nil
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return nil, domain.ErrNotEnoughQuestions
}
