// Package board holds the view state behind the task pages: the filtered
// list, the card editor and the chat transcript. Handlers build one value per
// page view and render from it.
package board

import (
	"context"
	"log/slog"
	"sync"

	"taskboard/internal/domain"
	"taskboard/internal/status"
)

type ListState int

const (
	Idle ListState = iota
	Loading
	Loaded
	Failed
)

func (s ListState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type TaskLister interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
}

// ListView is the task list with a client-side status filter. A failed
// refresh keeps the last loaded tasks and records the error.
type ListView struct {
	store  TaskLister
	logger *slog.Logger

	mu     sync.Mutex
	state  ListState
	tasks  []domain.Task
	filter string
	err    error
}

func NewListView(store TaskLister, logger *slog.Logger) *ListView {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListView{store: store, logger: logger, filter: status.FilterAll}
}

// Refresh re-fetches the whole list.
func (v *ListView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.state = Loading
	v.mu.Unlock()

	tasks, err := v.store.ListTasks(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.state = Failed
		v.err = err
		v.logger.Error("list tasks failed", "err", err)
		return err
	}
	v.state = Loaded
	v.tasks = tasks
	v.err = nil
	return nil
}

// SetFilter changes the filter without touching the store. Unknown values
// select all tasks.
func (v *ListView) SetFilter(f string) {
	if !status.ValidFilter(f) {
		f = status.FilterAll
	}
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
}

func (v *ListView) Filter() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

func (v *ListView) State() ListState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err is the error of the last failed refresh.
func (v *ListView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Tasks returns every loaded task, unfiltered.
func (v *ListView) Tasks() []domain.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.Task(nil), v.tasks...)
}

// Visible returns the loaded tasks that pass the current filter, in load
// order.
func (v *ListView) Visible() []domain.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return FilterTasks(v.tasks, v.filter)
}

// FilterTasks keeps the tasks whose normalized status matches filter.
func FilterTasks(tasks []domain.Task, filter string) []domain.Task {
	out := []domain.Task{}
	for _, t := range tasks {
		if status.Matches(filter, t.Status) {
			out = append(out, t)
		}
	}
	return out
}
