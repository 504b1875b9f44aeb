// Package repository holds the session and plan stores. Every backend keeps
// the same contract: Get of a missing id returns domain.ErrNotFound, Create
// of an existing id returns ErrExists, Save upserts and Delete is idempotent.
package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"writeway/internal/domain"
)

var ErrExists = errors.New("repository: already exists")

// Store is the full persistence surface used by the services.
type Store interface {
	GetSession(ctx context.Context, id string) (domain.Session, error)
	CreateSession(ctx context.Context, s domain.Session) error
	SaveSession(ctx context.Context, s domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, kind domain.SessionKind) ([]domain.Session, error)

	GetPlan(ctx context.Context, id string) (domain.Plan, error)
	CreatePlan(ctx context.Context, p domain.Plan) error
	SavePlan(ctx context.Context, p domain.Plan) error
	DeletePlan(ctx context.Context, id string) error
	ListPlans(ctx context.Context) ([]domain.Plan, error)
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// sortPlans orders plans by creation time, oldest first.
func sortPlans(plans []domain.Plan) {
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].CreatedAt.Before(plans[j].CreatedAt)
	})
}

func sortSessions(sessions []domain.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
