package app

import (
	"math"

	"trivia-quiz-service/internal/domain"
)

// Score derives a QuizResult from the final answer list. It depends on nothing
// but its arguments, so equal inputs always give equal results.
func Score(totalQuestions int, answers []domain.Answer, timeLimit, timeRemaining int) domain.QuizResult {
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}

	score := 0
	if totalQuestions > 0 {
		// math.Round rounds half away from zero; ratios here are never negative.
		score = int(math.Round(float64(correct) / float64(totalQuestions) * 100))
	}

	return domain.QuizResult{
		TotalQuestions:      totalQuestions,
		CorrectAnswers:      correct,
		IncorrectAnswers:    len(answers) - correct,
		UnansweredQuestions: totalQuestions - len(answers),
		TotalTimeSpent:      timeLimit - timeRemaining,
		Score:               score,
	}
}
