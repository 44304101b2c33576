package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/domain"
)

// DefaultSessionKey is the well-known key unfinished sessions are stored under.
const DefaultSessionKey = "quiz_progress"

// KVStore abstracts durable keyed storage (memory, file, Redis, Postgres).
// Get returns domain.ErrNotFound for absent keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Gateway stores session snapshots as JSON in a KVStore and decides whether a
// stored snapshot may be resumed.
type Gateway struct {
	store KVStore
	now   func() time.Time
	log   logrus.FieldLogger
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayClock overrides the wall clock used for savedAt and expiry checks.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}

// WithGatewayLogger sets the logger used for dropped snapshots.
func WithGatewayLogger(log logrus.FieldLogger) GatewayOption {
	return func(g *Gateway) { g.log = log }
}

func NewGateway(store KVStore, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store: store,
		now:   time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Save writes the snapshot under key, replacing whatever was there.
func (g *Gateway) Save(ctx context.Context, key string, snapshot domain.PersistedSession) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := g.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SaveState stamps state with its owner and the current time and saves it.
func (g *Gateway) SaveState(ctx context.Context, key, userID string, state domain.SessionState) error {
	return g.Save(ctx, key, domain.PersistedSession{
		SessionState: state,
		UserID:       userID,
		SavedAt:      g.now(),
	})
}

// Load returns the stored snapshot, or false when it is absent or unreadable.
func (g *Gateway) Load(ctx context.Context, key string) (domain.PersistedSession, bool) {
	snapshot, err := g.load(ctx, key)
	return snapshot, err == nil
}

func (g *Gateway) load(ctx context.Context, key string) (domain.PersistedSession, error) {
	data, err := g.store.Get(ctx, key)
	if err != nil {
		return domain.PersistedSession{}, err
	}
	var snapshot domain.PersistedSession
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.PersistedSession{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// Remove deletes the snapshot under key. Removing an absent key is not an error.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	if err := g.store.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// FindResumable loads the snapshot under key and validates it for userID.
// Every failure means "nothing to resume"; no error is ever returned.
// Invalid snapshots are removed, except those owned by another user.
func (g *Gateway) FindResumable(ctx context.Context, key, userID string) (domain.ResumeCandidate, bool) {
	if userID == "" {
		return domain.ResumeCandidate{}, false
	}
	log := g.log.WithFields(logrus.Fields{"key": key, "user_id": userID})

	snapshot, err := g.load(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ResumeCandidate{}, false
	}
	if err != nil {
		log.WithError(err).Warn("dropping unreadable quiz snapshot")
		g.discard(ctx, key, log)
		return domain.ResumeCandidate{}, false
	}

	if snapshot.UserID != userID {
		log.WithField("owner", snapshot.UserID).Debug("quiz snapshot belongs to another user")
		return domain.ResumeCandidate{}, false
	}

	if err := checkRestorable(snapshot.SessionState); err != nil {
		log.WithError(err).Info("dropping quiz snapshot")
		g.discard(ctx, key, log)
		return domain.ResumeCandidate{}, false
	}

	remaining := RemainingAt(snapshot.SessionState, g.now())
	if remaining <= 0 {
		log.Info("dropping expired quiz snapshot")
		g.discard(ctx, key, log)
		return domain.ResumeCandidate{}, false
	}

	return domain.ResumeCandidate{
		Snapshot:  snapshot,
		Remaining: remaining,
		Answered:  len(snapshot.Answers),
		Total:     len(snapshot.Questions),
	}, true
}

func (g *Gateway) discard(ctx context.Context, key string, log logrus.FieldLogger) {
	if err := g.Remove(ctx, key); err != nil {
		log.WithError(err).Warn("failed to remove quiz snapshot")
	}
}

// RemainingAt recomputes remaining seconds from the stored start time:
// timeLimit - floor(elapsed), clamped to [0, timeLimit]. A start time in the
// future therefore never grants extra time.
func RemainingAt(state domain.SessionState, now time.Time) int {
	elapsed := now.Sub(state.StartTime.Time)
	if elapsed < 0 {
		elapsed = 0
	}
	return max(0, min(state.TimeLimit-int(elapsed/time.Second), state.TimeLimit))
}
