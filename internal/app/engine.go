package app

import (
	"fmt"
	"time"

	"trivia-quiz-service/internal/domain"
)

// PersistKind says what the engine wants done with its snapshot.
type PersistKind int

const (
	PersistSave PersistKind = iota + 1
	PersistDelete
)

func (k PersistKind) String() string {
	switch k {
	case PersistSave:
		return "save"
	case PersistDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// PersistRequest is emitted after every mutation. State is a private copy.
type PersistRequest struct {
	Kind  PersistKind
	State domain.SessionState
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the wall clock used for the session start time.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithPersistSink receives the engine's persistence requests in mutation order.
func WithPersistSink(sink func(PersistRequest)) EngineOption {
	return func(e *Engine) { e.sink = sink }
}

// Engine owns the quiz state machine: Active until the last answer, a clock
// timeout or an explicit finish, then Finished for good. It is not safe for
// concurrent use; the host serializes calls.
type Engine struct {
	state     domain.SessionState
	remaining int
	result    *domain.QuizResult
	now       func() time.Time
	sink      func(PersistRequest)
}

func newEngine(opts []EngineOption) *Engine {
	e := &Engine{now: time.Now, sink: func(PersistRequest) {}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize starts a fresh session on the given batch.
func Initialize(questions []domain.Question, timeLimit int, opts ...EngineOption) (*Engine, error) {
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuestionBatch
	}
	if timeLimit <= 0 {
		return nil, domain.ErrInvalidTimeLimit
	}

	e := newEngine(opts)
	e.state = domain.SessionState{
		Questions:            questions,
		CurrentQuestionIndex: 0,
		Answers:              []domain.Answer{},
		StartTime:            domain.Millis(e.now()),
		TimeLimit:            timeLimit,
	}.Clone()
	e.remaining = timeLimit
	e.emit(PersistSave)
	return e, nil
}

// Restore rebuilds an Active session from a snapshot. timeRemaining must be
// recomputed by the caller from the wall clock; stored counters are not trusted.
func Restore(snapshot domain.SessionState, timeRemaining int, opts ...EngineOption) (*Engine, error) {
	if err := checkRestorable(snapshot); err != nil {
		return nil, err
	}
	if timeRemaining <= 0 {
		return nil, fmt.Errorf("%w: time expired", domain.ErrSnapshotRejected)
	}

	e := newEngine(opts)
	e.state = snapshot.Clone()
	e.remaining = min(timeRemaining, snapshot.TimeLimit)
	e.emit(PersistSave)
	return e, nil
}

// checkRestorable enforces the structural invariants of an unfinished snapshot.
func checkRestorable(s domain.SessionState) error {
	switch {
	case s.IsFinished:
		return fmt.Errorf("%w: already finished", domain.ErrSnapshotRejected)
	case len(s.Questions) == 0:
		return fmt.Errorf("%w: no questions", domain.ErrSnapshotRejected)
	case s.TimeLimit <= 0:
		return fmt.Errorf("%w: bad time limit", domain.ErrSnapshotRejected)
	case s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions):
		return fmt.Errorf("%w: cursor out of range", domain.ErrSnapshotRejected)
	case len(s.Answers) != s.CurrentQuestionIndex:
		return fmt.Errorf("%w: answers do not match cursor", domain.ErrSnapshotRejected)
	}
	return nil
}

// SubmitAnswer records the selected answer for the current question and
// either advances the cursor or finishes the session.
func (e *Engine) SubmitAnswer(selected string) (domain.AnswerOutcome, error) {
	if e.state.IsFinished {
		return domain.AnswerOutcome{}, domain.ErrSessionFinished
	}

	idx := e.state.CurrentQuestionIndex
	q := e.state.Questions[idx]
	answer := domain.Answer{
		QuestionID:     q.ID,
		SelectedAnswer: selected,
		IsCorrect:      selected == q.CorrectAnswer,
		TimeSpent:      e.state.TimeLimit - e.remaining,
	}
	e.state.Answers = append(e.state.Answers, answer)

	if idx == len(e.state.Questions)-1 {
		result := e.finish()
		return domain.AnswerOutcome{Answer: answer, Finished: true, Result: &result}, nil
	}

	e.state.CurrentQuestionIndex = idx + 1
	e.emit(PersistSave)
	next := e.state.Questions[idx+1].View()
	return domain.AnswerOutcome{Answer: answer, Next: &next}, nil
}

// ForceFinish ends the session with whatever has been answered. The second
// return value is false when the session was already finished, in which case
// nothing changes and the original result is returned.
func (e *Engine) ForceFinish() (domain.QuizResult, bool) {
	if e.state.IsFinished {
		return *e.result, false
	}
	return e.finish(), true
}

func (e *Engine) finish() domain.QuizResult {
	e.state.IsFinished = true
	result := Score(len(e.state.Questions), e.state.Answers, e.state.TimeLimit, e.remaining)
	e.result = &result
	e.emit(PersistDelete)
	return result
}

// SetRemaining feeds the clock's current value into the engine. It is ignored
// once the session is finished.
func (e *Engine) SetRemaining(seconds int) {
	if e.state.IsFinished {
		return
	}
	e.remaining = max(0, min(seconds, e.state.TimeLimit))
}

// Remaining is the last remaining-time value the engine saw.
func (e *Engine) Remaining() int { return e.remaining }

// Finished reports whether the session reached its terminal state.
func (e *Engine) Finished() bool { return e.state.IsFinished }

// Result returns the result computed at the finish transition.
func (e *Engine) Result() (domain.QuizResult, bool) {
	if e.result == nil {
		return domain.QuizResult{}, false
	}
	return *e.result, true
}

// State returns a copy of the current session state.
func (e *Engine) State() domain.SessionState { return e.state.Clone() }

// CurrentQuestion returns the question under the cursor while Active.
func (e *Engine) CurrentQuestion() (domain.Question, bool) {
	if e.state.IsFinished {
		return domain.Question{}, false
	}
	return e.state.Questions[e.state.CurrentQuestionIndex], true
}

// Progress returns the cursor, the number of answers and the question count.
func (e *Engine) Progress() (index, answered, total int) {
	return e.state.CurrentQuestionIndex, len(e.state.Answers), len(e.state.Questions)
}

func (e *Engine) emit(kind PersistKind) {
	e.sink(PersistRequest{Kind: kind, State: e.state.Clone()})
}
