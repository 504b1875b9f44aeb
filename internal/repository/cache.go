package repository

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"writeway/internal/domain"
)

// CachedStore puts a write-through LRU in front of a slower backend for
// single-record reads. Lists always go to the backend.
type CachedStore struct {
	Store
	sessions *lru.Cache[string, domain.Session]
	plans    *lru.Cache[string, domain.Plan]
}

func NewCached(backend Store, size int) (*CachedStore, error) {
	if backend == nil {
		return nil, errors.New("repository: backend must not be nil")
	}
	sessions, err := lru.New[string, domain.Session](size)
	if err != nil {
		return nil, fmt.Errorf("repository: session cache: %w", err)
	}
	plans, err := lru.New[string, domain.Plan](size)
	if err != nil {
		return nil, fmt.Errorf("repository: plan cache: %w", err)
	}
	return &CachedStore{Store: backend, sessions: sessions, plans: plans}, nil
}

func (c *CachedStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if s, ok := c.sessions.Get(id); ok {
		return s.Clone(), nil
	}
	s, err := c.Store.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	c.sessions.Add(id, s.Clone())
	return s, nil
}

func (c *CachedStore) CreateSession(ctx context.Context, s domain.Session) error {
	if err := c.Store.CreateSession(ctx, s); err != nil {
		return err
	}
	c.sessions.Add(s.ID, s.Clone())
	return nil
}

func (c *CachedStore) SaveSession(ctx context.Context, s domain.Session) error {
	if err := c.Store.SaveSession(ctx, s); err != nil {
		c.sessions.Remove(s.ID)
		return err
	}
	c.sessions.Add(s.ID, s.Clone())
	return nil
}

func (c *CachedStore) DeleteSession(ctx context.Context, id string) error {
	c.sessions.Remove(id)
	return c.Store.DeleteSession(ctx, id)
}

func (c *CachedStore) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	if p, ok := c.plans.Get(id); ok {
		return p.Clone(), nil
	}
	p, err := c.Store.GetPlan(ctx, id)
	if err != nil {
		return domain.Plan{}, err
	}
	c.plans.Add(id, p.Clone())
	return p, nil
}

func (c *CachedStore) CreatePlan(ctx context.Context, p domain.Plan) error {
	if err := c.Store.CreatePlan(ctx, p); err != nil {
		return err
	}
	c.plans.Add(p.ID, p.Clone())
	return nil
}

func (c *CachedStore) SavePlan(ctx context.Context, p domain.Plan) error {
	if err := c.Store.SavePlan(ctx, p); err != nil {
		c.plans.Remove(p.ID)
		return err
	}
	c.plans.Add(p.ID, p.Clone())
	return nil
}

func (c *CachedStore) DeletePlan(ctx context.Context, id string) error {
	c.plans.Remove(id)
	return c.Store.DeletePlan(ctx, id)
}
