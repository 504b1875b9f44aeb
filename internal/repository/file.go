package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"writeway/internal/domain"
)

const (
	sessionsFile = "sessions.json"
	plansFile    = "plans.json"
)

// FileStore serves reads from memory and rewrites the affected JSON file in
// dir after every change.
type FileStore struct {
	dir string
	mem *MemoryStore

	// writeMu serializes write-then-apply so files match memory.
	writeMu sync.Mutex
}

// OpenFile loads sessions.json and plans.json from dir. Missing files start
// empty; unreadable ones are an error.
func OpenFile(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("repository: data dir must not be empty")
	}
	f := &FileStore{dir: dir, mem: NewMemory()}

	var sessions []domain.Session
	if err := readJSON(filepath.Join(dir, sessionsFile), &sessions); err != nil {
		return nil, err
	}
	var plans []domain.Plan
	if err := readJSON(filepath.Join(dir, plansFile), &plans); err != nil {
		return nil, err
	}
	f.mem.load(sessions, plans)
	return f, nil
}

func readJSON(path string, dst any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("repository: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("repository: decode %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically via a temp file in the same directory.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("repository: encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("repository: create data dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("repository: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("repository: replace %s: %w", path, err)
	}
	return nil
}

// Mutators write the changed snapshot to disk first and only then apply the
// change in memory, so a failed write leaves reads unchanged.

func (f *FileStore) writeSessions(sessions []domain.Session) error {
	sortSessions(sessions)
	return writeJSON(filepath.Join(f.dir, sessionsFile), sessions)
}

func (f *FileStore) writePlans(plans []domain.Plan) error {
	sortPlans(plans)
	return writeJSON(filepath.Join(f.dir, plansFile), plans)
}

func withSession(list []domain.Session, s domain.Session) []domain.Session {
	for i := range list {
		if list[i].ID == s.ID {
			list[i] = s.Clone()
			return list
		}
	}
	return append(list, s.Clone())
}

func withoutSession(list []domain.Session, id string) []domain.Session {
	out := list[:0]
	for _, s := range list {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

func withPlan(list []domain.Plan, p domain.Plan) []domain.Plan {
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = p.Clone()
			return list
		}
	}
	return append(list, p.Clone())
}

func withoutPlan(list []domain.Plan, id string) []domain.Plan {
	out := list[:0]
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func (f *FileStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return f.mem.GetSession(ctx, id)
}

func (f *FileStore) ListSessions(ctx context.Context, kind domain.SessionKind) ([]domain.Session, error) {
	return f.mem.ListSessions(ctx, kind)
}

func (f *FileStore) CreateSession(ctx context.Context, s domain.Session) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if _, err := f.mem.GetSession(ctx, s.ID); err == nil {
		return ErrExists
	}
	sessions, _ := f.mem.snapshot()
	if err := f.writeSessions(withSession(sessions, s)); err != nil {
		return err
	}
	return f.mem.CreateSession(ctx, s)
}

func (f *FileStore) SaveSession(ctx context.Context, s domain.Session) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	sessions, _ := f.mem.snapshot()
	if err := f.writeSessions(withSession(sessions, s)); err != nil {
		return err
	}
	return f.mem.SaveSession(ctx, s)
}

func (f *FileStore) DeleteSession(ctx context.Context, id string) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	sessions, _ := f.mem.snapshot()
	if err := f.writeSessions(withoutSession(sessions, id)); err != nil {
		return err
	}
	return f.mem.DeleteSession(ctx, id)
}

func (f *FileStore) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	return f.mem.GetPlan(ctx, id)
}

func (f *FileStore) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return f.mem.ListPlans(ctx)
}

func (f *FileStore) CreatePlan(ctx context.Context, p domain.Plan) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if _, err := f.mem.GetPlan(ctx, p.ID); err == nil {
		return ErrExists
	}
	_, plans := f.mem.snapshot()
	if err := f.writePlans(withPlan(plans, p)); err != nil {
		return err
	}
	return f.mem.CreatePlan(ctx, p)
}

func (f *FileStore) SavePlan(ctx context.Context, p domain.Plan) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_, plans := f.mem.snapshot()
	if err := f.writePlans(withPlan(plans, p)); err != nil {
		return err
	}
	return f.mem.SavePlan(ctx, p)
}

func (f *FileStore) DeletePlan(ctx context.Context, id string) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_, plans := f.mem.snapshot()
	if err := f.writePlans(withoutPlan(plans, id)); err != nil {
		return err
	}
	return f.mem.DeletePlan(ctx, id)
}
