package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/repo"
	"taskboard/internal/status"
)

// Notifier receives the applied fields of every committed update.
type Notifier interface {
	Notify(ctx context.Context, payload any) error
}

// DataAccessError wraps any store failure with the operation that hit it.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *DataAccessError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a missing task.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}

type Engine struct {
	Repo     repo.Repo
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

func New(conn *sql.DB, dialect db.Dialect, notifier Notifier, logger *slog.Logger) Engine {
	return Engine{
		Repo:     repo.Repo{DB: conn, Dialect: dialect},
		Notifier: notifier,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DataAccessError{Op: op, Err: err}
}

// ListTasks returns tasks ordered by due date, undated last.
func (e Engine) ListTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := e.Repo.ListTasks(ctx)
	if err != nil {
		return nil, wrap("list tasks", err)
	}
	return tasks, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, wrap("get task", err)
	}
	return t, nil
}

// UpdateTask applies patch and then notifies the automation webhook with the
// task id and the applied fields. A failed notification is logged and
// dropped; the committed write stands.
func (e Engine) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	t, err := e.Repo.UpdateTask(ctx, id, patch)
	if err != nil {
		return domain.Task{}, wrap("update task", err)
	}
	if patch.Empty() || e.Notifier == nil {
		return t, nil
	}
	payload := patch.Fields()
	payload["taskId"] = id
	if err := e.Notifier.Notify(ctx, payload); err != nil {
		e.logger().Error("task update notification dropped", "task", id, "fields", payload, "err", err)
	}
	return t, nil
}

// TaskCreateOptions are parameters for seeding a task.
type TaskCreateOptions struct {
	ID          string
	Title       string
	Description string
	Status      string
	Priority    string
	AssignedTo  string
	DueDate     *time.Time
}

// SeedTask inserts a task directly. It backs local development tooling only;
// the board itself never creates tasks.
func (e Engine) SeedTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, fmt.Errorf("title is required")
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := e.now().UTC().Truncate(time.Second)
	t := domain.Task{
		ID:          id,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      opts.Status,
		Priority:    opts.Priority,
		DueDate:     opts.DueDate,
		CreatedAt:   &created,
	}
	if t.Status == "" {
		t.Status = status.RawNotStarted
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if opts.AssignedTo != "" {
		a := opts.AssignedTo
		t.AssignedTo = &a
	}
	if err := e.Repo.InsertTask(ctx, t); err != nil {
		return domain.Task{}, wrap("insert task", err)
	}
	return e.GetTask(ctx, id)
}

// StatusCounts groups tasks by canonical status.
func (e Engine) StatusCounts(ctx context.Context) (map[string]int, error) {
	raw, err := e.Repo.CountTasksByStatus(ctx)
	if err != nil {
		return nil, wrap("count tasks", err)
	}
	counts := map[string]int{}
	for s, n := range raw {
		counts[status.Normalize(s)] += n
	}
	return counts, nil
}
