package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QuestionType is the answer format of a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionBoolean        QuestionType = "boolean"
)

// Difficulty is the question source's difficulty bucket.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is supplied by the question source and never mutated afterwards.
// AllAnswers is already shuffled; its order is fixed for the question's lifetime.
type Question struct {
	ID            string       `json:"id"`
	Category      string       `json:"category"`
	Type          QuestionType `json:"type"`
	Difficulty    Difficulty   `json:"difficulty"`
	Prompt        string       `json:"question"`
	CorrectAnswer string       `json:"correctAnswer"`
	AllAnswers    []string     `json:"allAnswers"`
}

// View strips the correct answer so the question can be shown to a player.
func (q Question) View() QuestionView {
	answers := make([]string, len(q.AllAnswers))
	copy(answers, q.AllAnswers)
	return QuestionView{
		ID:         q.ID,
		Category:   q.Category,
		Type:       q.Type,
		Difficulty: q.Difficulty,
		Prompt:     q.Prompt,
		Answers:    answers,
	}
}

// QuestionView is a question as presented during play.
type QuestionView struct {
	ID         string       `json:"id"`
	Category   string       `json:"category"`
	Type       QuestionType `json:"type"`
	Difficulty Difficulty   `json:"difficulty"`
	Prompt     string       `json:"question"`
	Answers    []string     `json:"answers"`
}

// Answer records one submission. TimeSpent is seconds since session start.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer string `json:"selectedAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
	TimeSpent      int    `json:"timeSpent"`
}

// SessionState is the mutable aggregate owned by the session engine.
type SessionState struct {
	Questions            []Question `json:"questions"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	Answers              []Answer   `json:"answers"`
	StartTime            UnixMillis `json:"startTime"`
	TimeLimit            int        `json:"timeLimit"`
	IsFinished           bool       `json:"isFinished"`
}

// Clone returns a deep copy so snapshots never alias engine memory.
func (s SessionState) Clone() SessionState {
	out := s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.AllAnswers = append([]string(nil), q.AllAnswers...)
		out.Questions[i] = q
	}
	out.Answers = append([]Answer(nil), s.Answers...)
	return out
}

// UnixMillis is a timestamp stored as epoch milliseconds, the form browser
// clients write with Date.now(). RFC3339 strings are still accepted on read.
type UnixMillis struct {
	time.Time
}

// Millis truncates t to millisecond precision so it survives a round trip.
func Millis(t time.Time) UnixMillis {
	return UnixMillis{Time: t.Truncate(time.Millisecond)}
}

func (m UnixMillis) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("0"), nil
	}
	return []byte(fmt.Sprintf("%d", m.UnixMilli())), nil
}

func (m *UnixMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = UnixMillis{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*m = Millis(t)
		return nil
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("startTime: %w", err)
	}
	if ms == 0 {
		*m = UnixMillis{}
		return nil
	}
	*m = UnixMillis{Time: time.UnixMilli(int64(ms))}
	return nil
}

// PersistedSession is the stored form of an unfinished session.
type PersistedSession struct {
	SessionState
	UserID  string    `json:"userId"`
	SavedAt time.Time `json:"savedAt"`
}

// QuizResult is computed once when a session finishes.
type QuizResult struct {
	TotalQuestions      int `json:"totalQuestions"`
	CorrectAnswers      int `json:"correctAnswers"`
	IncorrectAnswers    int `json:"incorrectAnswers"`
	UnansweredQuestions int `json:"unansweredQuestions"`
	TotalTimeSpent      int `json:"totalTimeSpent"`
	Score               int `json:"score"`
}

// RecordedResult is a QuizResult as kept by a result recorder.
type RecordedResult struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Result     QuizResult `json:"result"`
	FinishedAt time.Time  `json:"finishedAt"`
}

// ResumeCandidate is a validated snapshot offered to the player.
type ResumeCandidate struct {
	Snapshot  PersistedSession `json:"-"`
	Remaining int              `json:"timeRemaining"`
	Answered  int              `json:"answered"`
	Total     int              `json:"total"`
}

// QuizConfig selects a question batch. Zero values mean "any".
type QuizConfig struct {
	Amount     int          `json:"amount"`
	Category   int          `json:"category,omitempty"`
	Difficulty Difficulty   `json:"difficulty,omitempty"`
	Type       QuestionType `json:"type,omitempty"`
}

// MaxQuestions is the largest batch the question source hands out.
const MaxQuestions = 50

// Validate rejects selections the question source would refuse.
func (c QuizConfig) Validate() error {
	if c.Amount < 1 || c.Amount > MaxQuestions {
		return ErrInvalidConfig
	}
	if c.Category < 0 {
		return ErrInvalidConfig
	}
	switch c.Difficulty {
	case "", DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return ErrInvalidConfig
	}
	switch c.Type {
	case "", QuestionMultipleChoice, QuestionBoolean:
	default:
		return ErrInvalidConfig
	}
	return nil
}

// Category is a question category offered by the source.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Player identifies who is playing and on which device.
// An empty UserID means nobody is signed in.
type Player struct {
	UserID   string
	DeviceID string
}

// Anonymous reports whether persistence must be skipped for this player.
func (p Player) Anonymous() bool {
	return strings.TrimSpace(p.UserID) == ""
}

// StorageKey returns the well-known snapshot key for the player's device.
func (p Player) StorageKey(base string) string {
	if p.DeviceID == "" {
		return base
	}
	return base + ":" + p.DeviceID
}

// User is a registered player.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventType names a session notification.
type EventType string

const (
	EventQuestion EventType = "question"
	EventTick     EventType = "tick"
	EventFinished EventType = "finished"
)

// SessionEvent is pushed to subscribers of a live session.
type SessionEvent struct {
	Type      EventType     `json:"type"`
	Remaining int           `json:"timeRemaining"`
	Formatted string        `json:"formattedTime"`
	Urgent    bool          `json:"isTimeRunningOut"`
	Index     int           `json:"currentQuestionIndex"`
	Total     int           `json:"totalQuestions"`
	Answered  int           `json:"answered"`
	Progress  int           `json:"progress"`
	Question  *QuestionView `json:"question,omitempty"`
	Result    *QuizResult   `json:"result,omitempty"`
}

// AnswerOutcome reports what a submission did.
type AnswerOutcome struct {
	Answer   Answer        `json:"answer"`
	Finished bool          `json:"finished"`
	Next     *QuestionView `json:"next,omitempty"`
	Result   *QuizResult   `json:"result,omitempty"`
}
