package app

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/domain"
)

const persistTimeout = 5 * time.Second

// QuestionSource supplies a question batch for a selection.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, cfg domain.QuizConfig) ([]domain.Question, error)
}

// ResultRecorder receives exactly one result per finished session.
type ResultRecorder interface {
	Record(ctx context.Context, userID string, result domain.QuizResult) error
}

// SessionRepository tracks live sessions by storage key.
type SessionRepository interface {
	Get(key string) (*Session, bool)
	// Put stores s and returns the session it replaced, if any.
	Put(key string, s *Session) (*Session, bool)
	// Remove deletes the entry only if it still points at s.
	Remove(key string, s *Session)
}

// QuizService hosts quiz sessions: it fetches questions, wires the engine to
// its clock and persistence, and offers resume/discard decisions to players.
type QuizService struct {
	sessions SessionRepository
	source   QuestionSource
	gateway  *Gateway
	results  ResultRecorder
	key      string
	newClock func() *Clock
	now      func() time.Time
	log      logrus.FieldLogger
}

// ServiceOption customizes a QuizService.
type ServiceOption func(*QuizService)

// WithResultRecorder hands finished results to r.
func WithResultRecorder(r ResultRecorder) ServiceOption {
	return func(s *QuizService) { s.results = r }
}

// WithStorageKey overrides the base snapshot key.
func WithStorageKey(key string) ServiceOption {
	return func(s *QuizService) { s.key = key }
}

// WithClockFactory controls how session clocks are built.
func WithClockFactory(newClock func() *Clock) ServiceOption {
	return func(s *QuizService) { s.newClock = newClock }
}

// WithServiceClock overrides the wall clock handed to engines.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *QuizService) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(log logrus.FieldLogger) ServiceOption {
	return func(s *QuizService) { s.log = log }
}

func NewQuizService(sessions SessionRepository, source QuestionSource, gateway *Gateway, opts ...ServiceOption) *QuizService {
	s := &QuizService{
		sessions: sessions,
		source:   source,
		gateway:  gateway,
		key:      DefaultSessionKey,
		newClock: func() *Clock { return NewClock() },
		now:      time.Now,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckResume reports whether the player has a resumable session on their device.
func (s *QuizService) CheckResume(ctx context.Context, player domain.Player) (domain.ResumeCandidate, bool) {
	if player.Anonymous() {
		return domain.ResumeCandidate{}, false
	}
	return s.gateway.FindResumable(ctx, player.StorageKey(s.key), player.UserID)
}

// Start fetches a fresh batch and begins a new session, replacing any stored
// or live session on the player's device.
func (s *QuizService) Start(ctx context.Context, player domain.Player, cfg domain.QuizConfig, timeLimit int) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if timeLimit <= 0 {
		return nil, domain.ErrInvalidTimeLimit
	}

	questions, err := s.source.FetchQuestions(ctx, cfg)
	if err != nil {
		s.logFor(player).WithError(err).Warn("question fetch failed")
		return nil, err
	}
	// Stored progress is only replaced once a usable batch is in hand.
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuestionBatch
	}

	key := player.StorageKey(s.key)
	s.closeLive(key)
	if !player.Anonymous() {
		if err := s.gateway.Remove(ctx, key); err != nil {
			s.logFor(player).WithError(err).Warn("could not clear stale quiz snapshot")
		}
	}

	session := s.newSession(player, key)
	engine, err := Initialize(questions, timeLimit, WithEngineClock(s.now), WithPersistSink(session.persist))
	if err != nil {
		return nil, err
	}
	s.activate(session, engine)
	s.logFor(player).WithField("questions", len(questions)).Info("quiz session started")
	return session, nil
}

// Resume restores the player's stored session with time recomputed from its start.
func (s *QuizService) Resume(ctx context.Context, player domain.Player) (*Session, error) {
	candidate, ok := s.CheckResume(ctx, player)
	if !ok {
		return nil, domain.ErrNothingToResume
	}

	key := player.StorageKey(s.key)
	s.closeLive(key)

	session := s.newSession(player, key)
	engine, err := Restore(candidate.Snapshot.SessionState, candidate.Remaining, WithEngineClock(s.now), WithPersistSink(session.persist))
	if err != nil {
		s.logFor(player).WithError(err).Warn("stored quiz could not be restored")
		_ = s.gateway.Remove(ctx, key)
		return nil, domain.ErrNothingToResume
	}
	s.activate(session, engine)
	s.logFor(player).WithFields(logrus.Fields{
		"answered":  candidate.Answered,
		"remaining": candidate.Remaining,
	}).Info("quiz session resumed")
	return session, nil
}

// Discard deletes the player's stored session without resuming it.
func (s *QuizService) Discard(ctx context.Context, player domain.Player) error {
	if player.Anonymous() {
		return nil
	}
	return s.gateway.Remove(ctx, player.StorageKey(s.key))
}

// Answer submits an answer to the player's live session.
func (s *QuizService) Answer(_ context.Context, player domain.Player, selected string) (domain.AnswerOutcome, error) {
	session, ok := s.Session(player)
	if !ok {
		return domain.AnswerOutcome{}, domain.ErrSessionNotFound
	}
	return session.Answer(selected)
}

// Finish ends the player's live session early, counting the rest as unanswered.
func (s *QuizService) Finish(_ context.Context, player domain.Player) (domain.QuizResult, error) {
	session, ok := s.Session(player)
	if !ok {
		return domain.QuizResult{}, domain.ErrSessionNotFound
	}
	return session.Finish()
}

// PauseAndExit stops the clock and leaves the snapshot in place for a later resume.
func (s *QuizService) PauseAndExit(_ context.Context, player domain.Player) error {
	session, ok := s.Session(player)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Pause()
	return nil
}

// DiscardAndExit stops the clock and deletes the snapshot.
func (s *QuizService) DiscardAndExit(ctx context.Context, player domain.Player) error {
	if session, ok := s.Session(player); ok {
		session.exit(true)
		return nil
	}
	return s.Discard(ctx, player)
}

// Subscribe returns a channel of session events for the player's live session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, player domain.Player) (<-chan domain.SessionEvent, func(), error) {
	session, ok := s.Session(player)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Session returns the player's live session.
func (s *QuizService) Session(player domain.Player) (*Session, bool) {
	return s.sessions.Get(player.StorageKey(s.key))
}

func (s *QuizService) newSession(player domain.Player, key string) *Session {
	session := &Session{
		player:      player,
		key:         key,
		results:     s.results,
		clock:       s.newClock(),
		log:         s.logFor(player),
		subscribers: make(map[chan domain.SessionEvent]struct{}),
	}
	if !player.Anonymous() {
		session.gateway = s.gateway
	}
	session.release = func() { s.sessions.Remove(key, session) }
	return session
}

func (s *QuizService) activate(session *Session, engine *Engine) {
	session.mu.Lock()
	session.engine = engine
	remaining := engine.Remaining()
	session.mu.Unlock()

	if prev, ok := s.sessions.Put(session.key, session); ok && prev != session {
		prev.exit(false)
	}
	session.clock.Start(remaining, session.onTick, session.onExpire)
}

func (s *QuizService) closeLive(key string) {
	if prev, ok := s.sessions.Get(key); ok {
		prev.exit(false)
	}
}

func (s *QuizService) logFor(player domain.Player) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{"user_id": player.UserID, "device_id": player.DeviceID})
}

// Session is one live quiz: the engine plus its clock, persistence and
// subscribers. Ticks and answers are serialized through mu, and snapshot
// writes happen under it so they land in mutation order.
type Session struct {
	player  domain.Player
	key     string
	gateway *Gateway
	results ResultRecorder
	clock   *Clock
	log     logrus.FieldLogger
	release func()

	mu          sync.Mutex
	engine      *Engine
	closed      bool
	subscribers map[chan domain.SessionEvent]struct{}
}

// Player returns the session's owner.
func (s *Session) Player() domain.Player { return s.player }

// State returns a copy of the engine state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.State()
}

// Status returns the current view of the session as an event.
func (s *Session) Status() domain.SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.Finished() {
		return s.eventLocked(domain.EventFinished)
	}
	return s.eventLocked(domain.EventQuestion)
}

// Result returns the final result once the session has finished.
func (s *Session) Result() (domain.QuizResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Result()
}

// Answer submits the selected answer for the current question.
func (s *Session) Answer(selected string) (domain.AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.AnswerOutcome{}, domain.ErrSessionNotFound
	}

	outcome, err := s.engine.SubmitAnswer(selected)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	if outcome.Finished {
		s.clock.Stop()
		s.completeLocked(*outcome.Result)
		return outcome, nil
	}
	s.broadcastLocked(s.eventLocked(domain.EventQuestion))
	return outcome, nil
}

// Finish forces the session to end. Calling it again returns the same result.
// A paused or replaced session is left untouched.
func (s *Session) Finish() (domain.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if result, ok := s.engine.Result(); ok {
			return result, nil
		}
		return domain.QuizResult{}, domain.ErrSessionNotFound
	}
	s.clock.Stop()
	result, changed := s.engine.ForceFinish()
	if changed {
		s.completeLocked(result)
	}
	return result, nil
}

func (s *Session) onTick(remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.engine.Finished() {
		return
	}
	s.engine.SetRemaining(remaining)
	s.broadcastLocked(s.eventLocked(domain.EventTick))
}

func (s *Session) onExpire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.engine.Finished() {
		return
	}
	s.engine.SetRemaining(0)
	result, changed := s.engine.ForceFinish()
	if changed {
		s.log.Info("quiz session timed out")
		s.completeLocked(result)
	}
}

// completeLocked hands the result to the recorder and subscribers exactly once.
func (s *Session) completeLocked(result domain.QuizResult) {
	if s.results != nil && !s.player.Anonymous() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := s.results.Record(ctx, s.player.UserID, result); err != nil {
			s.log.WithError(err).Warn("failed to record quiz result")
		}
		cancel()
	}
	s.log.WithFields(logrus.Fields{
		"score":      result.Score,
		"correct":    result.CorrectAnswers,
		"unanswered": result.UnansweredQuestions,
	}).Info("quiz session finished")
	s.broadcastLocked(s.eventLocked(domain.EventFinished))
	s.release()
}

// Pause stops the clock and drops the live session; the snapshot stays resumable.
func (s *Session) Pause() { s.exit(false) }

// exit stops the session without finishing it. With discard the snapshot is
// deleted; otherwise it stays resumable.
func (s *Session) exit(discard bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.Stop()
	if s.closed {
		return
	}
	s.closed = true
	if discard && s.gateway != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := s.gateway.Remove(ctx, s.key); err != nil {
			s.log.WithError(err).Warn("failed to discard quiz snapshot")
		}
		cancel()
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.release()
}

// persist applies an engine persistence request. Failures only cost resumability.
func (s *Session) persist(req PersistRequest) {
	if s.gateway == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	switch req.Kind {
	case PersistSave:
		err = s.gateway.SaveState(ctx, s.key, s.player.UserID, req.State)
	case PersistDelete:
		err = s.gateway.Remove(ctx, s.key)
	}
	if err != nil {
		s.log.WithError(err).WithField("op", req.Kind.String()).Warn("quiz snapshot not persisted; session may not be resumable")
	}
}

func (s *Session) subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)

	s.mu.Lock()
	initial := s.eventLocked(domain.EventQuestion)
	if s.engine.Finished() {
		initial = s.eventLocked(domain.EventFinished)
	}
	ch <- initial
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(event domain.SessionEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop the oldest event so ticks never block the session.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

// progress is the share of the quiz reached, counting the current question.
func progress(index, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(index+1) / float64(total) * 100))
}

func (s *Session) eventLocked(kind domain.EventType) domain.SessionEvent {
	index, answered, total := s.engine.Progress()
	remaining := s.engine.Remaining()
	event := domain.SessionEvent{
		Type:      kind,
		Remaining: remaining,
		Formatted: FormatRemaining(remaining),
		Urgent:    IsUrgent(remaining, s.clock.urgency),
		Index:     index,
		Total:     total,
		Answered:  answered,
		Progress:  progress(index, total),
	}
	if q, ok := s.engine.CurrentQuestion(); ok && kind != domain.EventFinished {
		view := q.View()
		event.Question = &view
	}
	if result, ok := s.engine.Result(); ok {
		event.Result = &result
	}
	return event
}
