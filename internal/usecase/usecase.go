package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"writeway/internal/domain"
)

// Completer is the text-completion gateway: one system directive plus an
// ordered history in, one assistant message out.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// SessionStore holds chat and ideation sessions. GetSession reports a
// missing id with domain.ErrNotFound; DeleteSession of a missing id is a no-op.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (domain.Session, error)
	CreateSession(ctx context.Context, s domain.Session) error
	SaveSession(ctx context.Context, s domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, kind domain.SessionKind) ([]domain.Session, error)
}

// PlanStore holds writing plans with the same contract as SessionStore.
type PlanStore interface {
	GetPlan(ctx context.Context, id string) (domain.Plan, error)
	CreatePlan(ctx context.Context, p domain.Plan) error
	SavePlan(ctx context.Context, p domain.Plan) error
	DeletePlan(ctx context.Context, id string) error
	ListPlans(ctx context.Context) ([]domain.Plan, error)
}

// loadSession maps a store miss to a NOT_FOUND usecase error.
func loadSession(ctx context.Context, store SessionStore, id string, kind domain.SessionKind) (domain.Session, error) {
	s, err := store.GetSession(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, newError(ErrorNotFound, "session_not_found", err)
	}
	if err != nil {
		return domain.Session{}, newError(ErrorInternal, "store_read_error", err)
	}
	if s.Kind != kind {
		return domain.Session{}, newError(ErrorNotFound, "session_not_found", nil)
	}
	return s, nil
}

var newUUID = func() string {
	return uuid.NewString()
}

var now = func() time.Time {
	return time.Now().UTC()
}
