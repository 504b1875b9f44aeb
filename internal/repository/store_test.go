package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"writeway/internal/domain"
)

// backends returns a fresh instance of every Store implementation that can
// run without external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	file, err := OpenFile(t.TempDir())
	require.NoError(t, err)

	sqlite, err := OpenSQL(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "writeway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	dynamo, err := NewDynamo(newFakeDynamo(), "test-table")
	require.NoError(t, err)

	cached, err := NewCached(NewMemory(), 8)
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": sqlite,
		"dynamo": dynamo,
		"cached": cached,
	}
}

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func TestStore_SessionRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := domain.Session{
				ID:    "s1",
				Kind:  domain.SessionKindIdeation,
				Title: "新对话",
				Stage: domain.StageAudience,
				Messages: []domain.ChatMessage{
					{Role: domain.RoleUser, Content: "我想写旅行"},
					{Role: domain.RoleAssistant, Content: "写给谁看？"},
				},
				CreatedAt: t0,
			}
			require.NoError(t, store.CreateSession(ctx, in))
			require.ErrorIs(t, store.CreateSession(ctx, in), ErrExists)

			got, err := store.GetSession(ctx, "s1")
			require.NoError(t, err)
			require.Equal(t, in.ID, got.ID)
			require.Equal(t, in.Kind, got.Kind)
			require.Equal(t, in.Stage, got.Stage)
			require.Equal(t, in.Messages, got.Messages)
			require.True(t, in.CreatedAt.Equal(got.CreatedAt))

			got.Messages = append(got.Messages, domain.ChatMessage{Role: domain.RoleUser, Content: "大学生"})
			got.Stage = domain.StagePurpose
			require.NoError(t, store.SaveSession(ctx, got))

			again, err := store.GetSession(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, again.Messages, 3)
			require.Equal(t, domain.StagePurpose, again.Stage)

			require.NoError(t, store.DeleteSession(ctx, "s1"))
			require.NoError(t, store.DeleteSession(ctx, "s1"))
			_, err = store.GetSession(ctx, "s1")
			require.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStore_ListSessionsByKind(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "b", Kind: domain.SessionKindChat, Messages: []domain.ChatMessage{}, CreatedAt: t0.Add(time.Minute)}))
			require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "a", Kind: domain.SessionKindChat, Messages: []domain.ChatMessage{}, CreatedAt: t0}))
			require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "i", Kind: domain.SessionKindIdeation, Messages: []domain.ChatMessage{}, CreatedAt: t0}))

			list, err := store.ListSessions(ctx, domain.SessionKindChat)
			require.NoError(t, err)
			require.Len(t, list, 2)
			require.Equal(t, "a", list[0].ID)
			require.Equal(t, "b", list[1].ID)
		})
	}
}

func TestStore_PlanRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			deadline := "2025-04-01"
			in := domain.Plan{
				ID:          "p1",
				Title:       "散文",
				Description: "一周完成",
				Deadline:    &deadline,
				Tasks: []domain.Task{
					{ID: "t1", Text: "列提纲"},
					{ID: "t2", Text: "写初稿", Completed: true},
				},
				Progress:  50,
				CreatedAt: t0,
			}
			require.NoError(t, store.CreatePlan(ctx, in))
			require.ErrorIs(t, store.CreatePlan(ctx, in), ErrExists)

			got, err := store.GetPlan(ctx, "p1")
			require.NoError(t, err)
			require.Equal(t, in.Title, got.Title)
			require.Equal(t, in.Description, got.Description)
			require.Equal(t, "2025-04-01", *got.Deadline)
			require.Equal(t, in.Tasks, got.Tasks)
			require.Equal(t, 50, got.Progress)

			got.Deadline = nil
			got.Tasks[0].Completed = true
			got.Progress = 100
			require.NoError(t, store.SavePlan(ctx, got))

			again, err := store.GetPlan(ctx, "p1")
			require.NoError(t, err)
			require.Nil(t, again.Deadline)
			require.True(t, again.Tasks[0].Completed)
			require.Equal(t, 100, again.Progress)

			require.NoError(t, store.CreatePlan(ctx, domain.Plan{ID: "p0", Title: "earlier", Tasks: []domain.Task{}, CreatedAt: t0.Add(-time.Hour)}))
			plans, err := store.ListPlans(ctx)
			require.NoError(t, err)
			require.Len(t, plans, 2)
			require.Equal(t, "p0", plans[0].ID)

			require.NoError(t, store.DeletePlan(ctx, "p1"))
			require.NoError(t, store.DeletePlan(ctx, "p1"))
			_, err = store.GetPlan(ctx, "p1")
			require.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "s", Kind: domain.SessionKindChat, Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "x"}}, CreatedAt: t0}))

			got, err := store.GetSession(ctx, "s")
			require.NoError(t, err)
			got.Messages[0].Content = "mutated"

			again, err := store.GetSession(ctx, "s")
			require.NoError(t, err)
			require.Equal(t, "x", again.Messages[0].Content)
		})
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenFile(dir)
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "s", Kind: domain.SessionKindChat, Title: "标题", Messages: []domain.ChatMessage{}, CreatedAt: t0}))
	require.NoError(t, store.CreatePlan(ctx, domain.Plan{ID: "p", Title: "plan", Tasks: []domain.Task{}, CreatedAt: t0}))

	_, err = os.Stat(filepath.Join(dir, sessionsFile))
	require.NoError(t, err)

	reopened, err := OpenFile(dir)
	require.NoError(t, err)
	s, err := reopened.GetSession(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, "标题", s.Title)
	_, err = reopened.GetPlan(ctx, "p")
	require.NoError(t, err)
}

func TestOpenFile_Errors(t *testing.T) {
	_, err := OpenFile(" ")
	require.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, plansFile), []byte("{not json"), 0o644))
	_, err = OpenFile(dir)
	require.ErrorContains(t, err, "decode")
}

func TestOpenSQL_Validates(t *testing.T) {
	_, err := OpenSQL(context.Background(), "mysql", "x")
	require.Error(t, err)
	_, err = OpenSQL(context.Background(), DriverSQLite, " ")
	require.Error(t, err)
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	require.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQLStore{driver: DriverSQLite}
	require.Equal(t, "x = ?", lite.rebind("x = ?"))
}

type countingStore struct {
	Store
	gets int
	fail error
}

func (c *countingStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	c.gets++
	return c.Store.GetSession(ctx, id)
}

func (c *countingStore) SaveSession(ctx context.Context, s domain.Session) error {
	if c.fail != nil {
		return c.fail
	}
	return c.Store.SaveSession(ctx, s)
}

func TestCachedStore_ServesRepeatReadsFromCache(t *testing.T) {
	backend := &countingStore{Store: NewMemory()}
	cached, err := NewCached(backend, 4)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Store.CreateSession(ctx, domain.Session{ID: "s", Kind: domain.SessionKindChat, CreatedAt: t0}))
	for i := 0; i < 3; i++ {
		_, err := cached.GetSession(ctx, "s")
		require.NoError(t, err)
	}
	require.Equal(t, 1, backend.gets)

	backend.fail = errors.New("disk full")
	require.Error(t, cached.SaveSession(ctx, domain.Session{ID: "s", Title: "changed"}))
	got, err := cached.GetSession(ctx, "s")
	require.NoError(t, err)
	require.Empty(t, got.Title)
	require.Equal(t, 2, backend.gets)
}

func TestNewCached_Validates(t *testing.T) {
	_, err := NewCached(nil, 4)
	require.Error(t, err)
	_, err = NewCached(NewMemory(), 0)
	require.Error(t, err)
}

func TestFileStore_FailedWriteLeavesMemoryUnchanged(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store, err := OpenFile(dir)
	require.NoError(t, err)

	require.NoError(t, store.CreateSession(ctx, domain.Session{ID: "s", Kind: domain.SessionKindChat, Messages: []domain.ChatMessage{}, CreatedAt: t0}))
	require.NoError(t, store.CreatePlan(ctx, domain.Plan{ID: "p", Title: "plan", Tasks: []domain.Task{}, CreatedAt: t0}))

	// A directory where the temp file should go makes every write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, sessionsFile+".tmp"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, plansFile+".tmp"), 0o755))

	err = store.SaveSession(ctx, domain.Session{ID: "s", Kind: domain.SessionKindChat, Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}, CreatedAt: t0})
	require.Error(t, err)
	got, err := store.GetSession(ctx, "s")
	require.NoError(t, err)
	require.Empty(t, got.Messages)

	require.Error(t, store.CreateSession(ctx, domain.Session{ID: "new", Kind: domain.SessionKindChat, CreatedAt: t0}))
	_, err = store.GetSession(ctx, "new")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.Error(t, store.DeleteSession(ctx, "s"))
	_, err = store.GetSession(ctx, "s")
	require.NoError(t, err)

	require.Error(t, store.SavePlan(ctx, domain.Plan{ID: "p", Title: "changed", Tasks: []domain.Task{}, CreatedAt: t0}))
	p, err := store.GetPlan(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, "plan", p.Title)

	require.Error(t, store.DeletePlan(ctx, "p"))
	_, err = store.GetPlan(ctx, "p")
	require.NoError(t, err)
}

func TestSQLStore_CreateDetectsConflictOnInsert(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQL(ctx, DriverSQLite, filepath.Join(t.TempDir(), "writeway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`) VALUES ('s', 'chat', '', '', '[]', ?)`, formatTime(t0))
	require.NoError(t, err)
	require.ErrorIs(t, store.CreateSession(ctx, domain.Session{ID: "s", Kind: domain.SessionKindChat, CreatedAt: t0}), ErrExists)

	_, err = store.db.ExecContext(ctx, `INSERT INTO plans (`+planColumns+`) VALUES ('p', 'plan', '', NULL, '[]', 0, ?)`, formatTime(t0))
	require.NoError(t, err)
	require.ErrorIs(t, store.CreatePlan(ctx, domain.Plan{ID: "p", Title: "other", CreatedAt: t0}), ErrExists)

	got, err := store.GetPlan(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, "plan", got.Title)
}

func TestSQLStore_CreateReportsDatabaseErrors(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQL(ctx, DriverSQLite, filepath.Join(t.TempDir(), "writeway.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.CreateSession(ctx, domain.Session{ID: "s", Kind: domain.SessionKindChat, CreatedAt: t0})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrExists)

	err = store.CreatePlan(ctx, domain.Plan{ID: "p", Title: "plan", CreatedAt: t0})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrExists)
}
