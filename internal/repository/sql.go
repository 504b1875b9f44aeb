package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"writeway/internal/domain"
)

// Driver names registered by the imported database/sql drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  stage TEXT NOT NULL DEFAULT '',
  messages TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_kind ON sessions (kind)`,
	`CREATE TABLE IF NOT EXISTS plans (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  deadline TEXT,
  tasks TEXT NOT NULL DEFAULT '[]',
  progress INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
)`,
}

// SQLStore keeps sessions and plans in two tables. Messages and tasks are
// stored as JSON text so both sqlite and postgres work with the same schema.
type SQLStore struct {
	db     *sql.DB
	driver string

	schemaOnce sync.Once
	schemaErr  error
}

// OpenSQL opens and pings db for driver, which must be DriverSQLite or
// DriverPostgres.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("repository: unsupported sql driver %q", driver)
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("repository: dsn must not be empty")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer avoids SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping %s: %w", driver, err)
	}
	s := &SQLStore{db: db, driver: driver}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		for _, stmt := range schema {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				s.schemaErr = fmt.Errorf("repository: ensure schema: %w", err)
				return
			}
		}
	})
	return s.schemaErr
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// insertedOrExists maps an INSERT ... ON CONFLICT DO NOTHING that touched no
// row to ErrExists.
func insertedOrExists(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: %s rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const sessionColumns = `id, kind, title, stage, messages, created_at`

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		out       domain.Session
		kind      string
		stage     string
		messages  string
		createdAt string
	)
	if err := row.Scan(&out.ID, &kind, &out.Title, &stage, &messages, &createdAt); err != nil {
		return domain.Session{}, err
	}
	out.Kind = domain.SessionKind(kind)
	out.Stage = domain.Stage(stage)
	if err := json.Unmarshal([]byte(messages), &out.Messages); err != nil {
		return domain.Session{}, fmt.Errorf("decode messages: %w", err)
	}
	if out.Messages == nil {
		out.Messages = []domain.ChatMessage{}
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return domain.Session{}, fmt.Errorf("decode created_at: %w", err)
	}
	out.CreatedAt = t
	return out, nil
}

func encodeMessages(msgs []domain.ChatMessage) (string, error) {
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	out, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession: %w", err)
	}
	return out, nil
}

func (s *SQLStore) CreateSession(ctx context.Context, in domain.Session) error {
	msgs, err := encodeMessages(in.Messages)
	if err != nil {
		return fmt.Errorf("repository: CreateSession encode: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		in.ID, string(in.Kind), in.Title, string(in.Stage), msgs, formatTime(in.CreatedAt))
	if err != nil {
		return fmt.Errorf("repository: CreateSession: %w", err)
	}
	return insertedOrExists(res, "CreateSession")
}

func (s *SQLStore) SaveSession(ctx context.Context, in domain.Session) error {
	msgs, err := encodeMessages(in.Messages)
	if err != nil {
		return fmt.Errorf("repository: SaveSession encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO sessions (`+sessionColumns+`)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id)
DO UPDATE SET kind=excluded.kind,
  title=excluded.title,
  stage=excluded.stage,
  messages=excluded.messages`),
		in.ID, string(in.Kind), in.Title, string(in.Stage), msgs, formatTime(in.CreatedAt))
	if err != nil {
		return fmt.Errorf("repository: SaveSession: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE id = ?`), id); err != nil {
		return fmt.Errorf("repository: DeleteSession: %w", err)
	}
	return nil
}

func (s *SQLStore) ListSessions(ctx context.Context, kind domain.SessionKind) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+sessionColumns+` FROM sessions WHERE kind = ? ORDER BY created_at, id`), string(kind))
	if err != nil {
		return nil, fmt.Errorf("repository: ListSessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: ListSessions scan: %w", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: ListSessions rows: %w", err)
	}
	return out, nil
}

const planColumns = `id, title, description, deadline, tasks, progress, created_at`

func scanPlan(row rowScanner) (domain.Plan, error) {
	var (
		out       domain.Plan
		deadline  sql.NullString
		tasks     string
		createdAt string
	)
	if err := row.Scan(&out.ID, &out.Title, &out.Description, &deadline, &tasks, &out.Progress, &createdAt); err != nil {
		return domain.Plan{}, err
	}
	if deadline.Valid {
		d := deadline.String
		out.Deadline = &d
	}
	if err := json.Unmarshal([]byte(tasks), &out.Tasks); err != nil {
		return domain.Plan{}, fmt.Errorf("decode tasks: %w", err)
	}
	if out.Tasks == nil {
		out.Tasks = []domain.Task{}
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("decode created_at: %w", err)
	}
	out.CreatedAt = t
	return out, nil
}

func planArgs(p domain.Plan) ([]any, error) {
	tasks := p.Tasks
	if tasks == nil {
		tasks = []domain.Task{}
	}
	b, err := json.Marshal(tasks)
	if err != nil {
		return nil, err
	}
	var deadline sql.NullString
	if p.Deadline != nil {
		deadline = sql.NullString{String: *p.Deadline, Valid: true}
	}
	return []any{p.ID, p.Title, p.Description, deadline, string(b), p.Progress, formatTime(p.CreatedAt)}, nil
}

func (s *SQLStore) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+planColumns+` FROM plans WHERE id = ?`), id)
	out, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Plan{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Plan{}, fmt.Errorf("repository: GetPlan: %w", err)
	}
	return out, nil
}

func (s *SQLStore) CreatePlan(ctx context.Context, p domain.Plan) error {
	args, err := planArgs(p)
	if err != nil {
		return fmt.Errorf("repository: CreatePlan encode: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO plans (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`), args...)
	if err != nil {
		return fmt.Errorf("repository: CreatePlan: %w", err)
	}
	return insertedOrExists(res, "CreatePlan")
}

func (s *SQLStore) SavePlan(ctx context.Context, p domain.Plan) error {
	args, err := planArgs(p)
	if err != nil {
		return fmt.Errorf("repository: SavePlan encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO plans (`+planColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id)
DO UPDATE SET title=excluded.title,
  description=excluded.description,
  deadline=excluded.deadline,
  tasks=excluded.tasks,
  progress=excluded.progress`), args...)
	if err != nil {
		return fmt.Errorf("repository: SavePlan: %w", err)
	}
	return nil
}

func (s *SQLStore) DeletePlan(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM plans WHERE id = ?`), id); err != nil {
		return fmt.Errorf("repository: DeletePlan: %w", err)
	}
	return nil
}

func (s *SQLStore) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("repository: ListPlans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: ListPlans scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: ListPlans rows: %w", err)
	}
	return out, nil
}
