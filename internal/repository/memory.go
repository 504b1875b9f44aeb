package repository

import (
	"context"
	"sync"

	"writeway/internal/domain"
)

// MemoryStore keeps everything in process memory. Values are cloned on the
// way in and out so callers never share message or task slices with it.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	plans    map[string]domain.Plan
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		plans:    make(map[string]domain.Plan),
	}
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrExists
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) SaveSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) ListSessions(_ context.Context, kind domain.SessionKind) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Kind == kind {
			out = append(out, s.Clone())
		}
	}
	sortSessions(out)
	return out, nil
}

func (m *MemoryStore) GetPlan(_ context.Context, id string) (domain.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return domain.Plan{}, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryStore) CreatePlan(_ context.Context, p domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[p.ID]; ok {
		return ErrExists
	}
	m.plans[p.ID] = p.Clone()
	return nil
}

func (m *MemoryStore) SavePlan(_ context.Context, p domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p.Clone()
	return nil
}

func (m *MemoryStore) DeletePlan(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plans, id)
	return nil
}

func (m *MemoryStore) ListPlans(_ context.Context) ([]domain.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p.Clone())
	}
	sortPlans(out)
	return out, nil
}

// snapshot returns every session and plan, sorted, for persistence.
func (m *MemoryStore) snapshot() ([]domain.Session, []domain.Plan) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.Clone())
	}
	plans := make([]domain.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		plans = append(plans, p.Clone())
	}
	sortSessions(sessions)
	sortPlans(plans)
	return sessions, plans
}

func (m *MemoryStore) load(sessions []domain.Session, plans []domain.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		if s.ID != "" {
			m.sessions[s.ID] = s.Clone()
		}
	}
	for _, p := range plans {
		if p.ID != "" {
			m.plans[p.ID] = p.Clone()
		}
	}
}
