// Package sqlite persists tasks in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"ergovoice/internal/domain"
	"ergovoice/internal/logging"
	"ergovoice/internal/tasks"
)

// Store implements tasks.Store.
type Store struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

var _ tasks.Store = (*Store)(nil)

// taskRow is the on-disk shape of a task. Times are unix milliseconds.
type taskRow struct {
	ID          string        `db:"id"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	Completed   bool          `db:"completed"`
	Category    string        `db:"category"`
	Priority    string        `db:"priority"`
	DueDate     sql.NullInt64 `db:"due_date"`
	CreatedAt   int64         `db:"created_at"`
}

func toRow(t tasks.Task) taskRow {
	row := taskRow{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Category:    string(t.Category),
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt.UnixMilli(),
	}
	if t.DueDate != nil {
		row.DueDate = sql.NullInt64{Int64: t.DueDate.UnixMilli(), Valid: true}
	}
	return row
}

func (r taskRow) task() tasks.Task {
	t := tasks.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		Category:    domain.Category(r.Category),
		Priority:    domain.Priority(r.Priority),
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.DueDate.Valid {
		due := time.UnixMilli(r.DueDate.Int64).UTC()
		t.DueDate = &due
	}
	return t
}

const taskColumns = "id, title, description, completed, category, priority, due_date, created_at"

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logging.Component("sqlite")}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	var version string
	if err := db.GetContext(ctx, &version, "SELECT sqlite_version();"); err == nil {
		s.logger.Debug().Str("path", path).Str("sqlite", version).Msg("task database opened")
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context) ([]tasks.Task, error) {
	rows := []taskRow{}
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+taskColumns+" FROM tasks ORDER BY seq DESC;"); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	out := make([]tasks.Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.task())
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (tasks.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, "SELECT "+taskColumns+" FROM tasks WHERE id = $1;", id)
	if errors.Is(err, sql.ErrNoRows) {
		return tasks.Task{}, tasks.ErrNotFound
	}
	if err != nil {
		return tasks.Task{}, fmt.Errorf("select task %s: %w", id, err)
	}
	return row.task(), nil
}

func (s *Store) Add(ctx context.Context, task tasks.Task) error {
	if task.Title == "" {
		return tasks.ErrEmptyTitle
	}
	query := `
        INSERT INTO tasks (` + taskColumns + `)
        VALUES (:id, :title, :description, :completed, :category, :priority, :due_date, :created_at);`
	if _, err := s.db.NamedExecContext(ctx, query, toRow(task)); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	s.logger.Debug().Str("id", task.ID).Msg("task inserted")
	return nil
}

func (s *Store) Update(ctx context.Context, id string, update tasks.Update) (tasks.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return tasks.Task{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row taskRow
	err = tx.GetContext(ctx, &row, "SELECT "+taskColumns+" FROM tasks WHERE id = $1;", id)
	if errors.Is(err, sql.ErrNoRows) {
		return tasks.Task{}, tasks.ErrNotFound
	}
	if err != nil {
		return tasks.Task{}, fmt.Errorf("select task %s: %w", id, err)
	}

	updated, err := update.Apply(row.task())
	if err != nil {
		return tasks.Task{}, err
	}
	query := `
        UPDATE tasks SET title = :title, description = :description, completed = :completed,
            category = :category, priority = :priority, due_date = :due_date
        WHERE id = :id;`
	if _, err := tx.NamedExecContext(ctx, query, toRow(updated)); err != nil {
		return tasks.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return tasks.Task{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1;", id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n == 0 {
		return tasks.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCompleted(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE completed = 1;")
	if err != nil {
		return 0, fmt.Errorf("delete completed tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete completed tasks: %w", err)
	}
	return int(n), nil
}
