package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/migrate"
)

func newTestRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn, Dialect: db.SQLite}
}

func day(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func strPtr(s string) *string { return &s }

func TestListTasksOrdersByDueDateNullsLast(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seed := []domain.Task{
		{ID: "t-none-b", Title: "No date B", Status: "pending", Priority: "low"},
		{ID: "t-late", Title: "Late", Status: "pending", Priority: "low", DueDate: day("2024-03-01")},
		{ID: "t-none-a", Title: "No date A", Status: "pending", Priority: "low"},
		{ID: "t-early", Title: "Early", Status: "pending", Priority: "low", DueDate: day("2024-01-15")},
	}
	for _, task := range seed {
		if err := r.InsertTask(ctx, task); err != nil {
			t.Fatalf("insert %s: %v", task.ID, err)
		}
	}
	tasks, err := r.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"t-early", "t-late", "t-none-a", "t-none-b"}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, tasks[i].ID, id)
		}
	}
	if tasks[2].DueDate != nil {
		t.Fatalf("expected nil due date for %s", tasks[2].ID)
	}
}

func TestListTasksEmpty(t *testing.T) {
	r := newTestRepo(t)
	tasks, err := r.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", tasks)
	}
}

func TestUpdateTaskLeavesUnsetFields(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	task := domain.Task{
		ID: "t1", Title: "Ship report", Description: "quarterly",
		Status: "not started", Priority: "high",
		DueDate: day("2024-02-01"), AssignedTo: strPtr("sam"), CreatedAt: &created,
	}
	if err := r.InsertTask(ctx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}
	updated, err := r.UpdateTask(ctx, "t1", domain.TaskPatch{Status: strPtr("completed")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != "completed" {
		t.Fatalf("status not applied: %s", updated.Status)
	}
	if updated.Priority != "high" || updated.Assignee() != "sam" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if updated.DueDate == nil || !updated.DueDate.Equal(*task.DueDate) {
		t.Fatalf("due date changed: %v", updated.DueDate)
	}
	if updated.CreatedAt == nil || !updated.CreatedAt.Equal(created) {
		t.Fatalf("created_at changed: %v", updated.CreatedAt)
	}
}

func TestUpdateTaskStoresRawStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if err := r.InsertTask(ctx, domain.Task{ID: "t1", Title: "x", Status: "not started", Priority: "low"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := r.UpdateTask(ctx, "t1", domain.TaskPatch{Status: strPtr("pending")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	var raw string
	if err := r.DB.QueryRow(`SELECT status FROM tasks WHERE id='t1'`).Scan(&raw); err != nil {
		t.Fatalf("read: %v", err)
	}
	if raw != "pending" {
		t.Fatalf("expected raw pending, got %q", raw)
	}
}

func TestUpdateTaskClearsAssignee(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if err := r.InsertTask(ctx, domain.Task{ID: "t1", Title: "x", Status: "pending", Priority: "low", AssignedTo: strPtr("kim")}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	updated, err := r.UpdateTask(ctx, "t1", domain.TaskPatch{AssignedTo: strPtr("")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Assignee() != "" {
		t.Fatalf("expected cleared assignee, got %q", updated.Assignee())
	}
	var assigned sql.NullString
	if err := r.DB.QueryRow(`SELECT assigned_to FROM tasks WHERE id='t1'`).Scan(&assigned); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !assigned.Valid || assigned.String != "" {
		t.Fatalf("expected empty string stored as sent, got valid=%v %q", assigned.Valid, assigned.String)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if _, err := r.UpdateTask(ctx, "missing", domain.TaskPatch{Status: strPtr("completed")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.UpdateTask(ctx, "missing", domain.TaskPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty patch, got %v", err)
	}
	if _, err := r.GetTask(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountTasksByStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	for i, s := range []string{"pending", "pending", "completed"} {
		id := string(rune('a' + i))
		if err := r.InsertTask(ctx, domain.Task{ID: id, Title: id, Status: s, Priority: "low"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	counts, err := r.CountTasksByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["pending"] != 2 || counts["completed"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestNullTimeScan(t *testing.T) {
	var n nullTime
	for _, in := range []any{"2024-01-15", "2024-01-15T10:00:00Z", "2024-01-15 10:00:00", []byte("2024-01-15T10:00:00.5+02:00"), time.Now()} {
		if err := n.Scan(in); err != nil || !n.Valid {
			t.Fatalf("scan %v: valid=%v err=%v", in, n.Valid, err)
		}
	}
	if err := n.Scan(nil); err != nil || n.Valid {
		t.Fatalf("nil should scan as invalid")
	}
	if err := n.Scan("soon"); err == nil {
		t.Fatalf("expected parse error")
	}
}
