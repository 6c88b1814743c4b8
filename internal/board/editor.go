package board

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"taskboard/internal/domain"
)

var ErrSaveInFlight = errors.New("a save for this task is already in progress")

type TaskStore interface {
	GetTask(ctx context.Context, id string) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
}

// SaveGuard allows one in-flight save per task id. It is shared by every
// editor of the process.
type SaveGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewSaveGuard() *SaveGuard {
	return &SaveGuard{active: map[string]struct{}{}}
}

func (g *SaveGuard) acquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[id]; busy {
		return false
	}
	g.active[id] = struct{}{}
	return true
}

func (g *SaveGuard) release(id string) {
	g.mu.Lock()
	delete(g.active, id)
	g.mu.Unlock()
}

// Busy reports whether a save for id is running.
func (g *SaveGuard) Busy(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[id]
	return busy
}

// Draft is the editable part of a card.
type Draft struct {
	Status     string
	Priority   string
	AssignedTo string
	DueDate    *time.Time
}

func DraftFrom(t domain.Task) Draft {
	d := Draft{Status: t.Status, Priority: t.Priority, AssignedTo: t.Assignee()}
	if t.DueDate != nil {
		due := *t.DueDate
		d.DueDate = &due
	}
	return d
}

// Patch commits the whole draft: status, priority and assignee always (an
// empty assignee clears it), the due date only when set.
func (d Draft) Patch() domain.TaskPatch {
	st, pr, as := d.Status, d.Priority, strings.TrimSpace(d.AssignedTo)
	p := domain.TaskPatch{Status: &st, Priority: &pr, AssignedTo: &as}
	if d.DueDate != nil {
		due := *d.DueDate
		p.DueDate = &due
	}
	return p
}

// CardEditor edits one task. Load always re-reads the task so edits start
// from the stored record, not a list snapshot.
type CardEditor struct {
	store  TaskStore
	guard  *SaveGuard
	logger *slog.Logger

	// OnSaved runs after a successful save, typically to refresh the list.
	OnSaved func(domain.Task)

	mu    sync.Mutex
	task  domain.Task
	draft Draft
	err   error
}

func NewCardEditor(store TaskStore, guard *SaveGuard, logger *slog.Logger) *CardEditor {
	if guard == nil {
		guard = NewSaveGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CardEditor{store: store, guard: guard, logger: logger}
}

func (c *CardEditor) Load(ctx context.Context, id string) error {
	t, err := c.store.GetTask(ctx, id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.err = err
		return err
	}
	c.task = t
	c.draft = DraftFrom(t)
	c.err = nil
	return nil
}

func (c *CardEditor) Task() domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task
}

func (c *CardEditor) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Err is the last load or save failure.
func (c *CardEditor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Saving reports whether the card's controls should be disabled.
func (c *CardEditor) Saving() bool {
	return c.guard.Busy(c.Task().ID)
}

// Save persists d as one update. On failure the draft is kept for a retry.
func (c *CardEditor) Save(ctx context.Context, d Draft) (domain.Task, error) {
	c.mu.Lock()
	id := c.task.ID
	c.draft = d
	c.mu.Unlock()

	if !c.guard.acquire(id) {
		c.setErr(ErrSaveInFlight)
		return domain.Task{}, ErrSaveInFlight
	}
	defer c.guard.release(id)

	updated, err := c.store.UpdateTask(ctx, id, d.Patch())
	if err != nil {
		c.logger.Error("save task failed", "task", id, "err", err)
		c.setErr(err)
		return domain.Task{}, err
	}
	c.mu.Lock()
	c.task = updated
	c.draft = DraftFrom(updated)
	c.err = nil
	onSaved := c.OnSaved
	c.mu.Unlock()
	if onSaved != nil {
		onSaved(updated)
	}
	return updated, nil
}

func (c *CardEditor) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}
