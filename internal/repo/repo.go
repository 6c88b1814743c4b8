package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/internal/db"
	"taskboard/internal/domain"
)

// Repo reads and writes the tasks table. Queries are written with ?
// placeholders and rebound for the dialect.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var ErrNotFound = errors.New("not found")

const taskColumns = `id,title,COALESCE(description,''),status,COALESCE(priority,''),due_date,assigned_to,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t        domain.Task
		due      nullTime
		created  nullTime
		assigned sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &due, &assigned, &created); err != nil {
		return t, err
	}
	if due.Valid {
		v := due.Time
		t.DueDate = &v
	}
	if created.Valid {
		v := created.Time
		t.CreatedAt = &v
	}
	if assigned.Valid {
		v := assigned.String
		t.AssignedTo = &v
	}
	return t, nil
}

func (r Repo) q(query string) string {
	return r.Dialect.Rebind(query)
}

// ListTasks returns every task ordered by ascending due date. Tasks without a
// due date come last; ties break on id.
func (r Repo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY (due_date IS NULL), due_date ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx, r.q(`SELECT `+taskColumns+` FROM tasks WHERE id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	return t, err
}

// UpdateTask applies the non-nil fields of p and returns the stored record.
// An empty patch only checks that the task exists.
func (r Repo) UpdateTask(ctx context.Context, id string, p domain.TaskPatch) (domain.Task, error) {
	var (
		fields []string
		args   []any
	)
	if p.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *p.Status)
	}
	if p.Priority != nil {
		fields = append(fields, "priority=?")
		args = append(args, *p.Priority)
	}
	if p.AssignedTo != nil {
		fields = append(fields, "assigned_to=?")
		args = append(args, *p.AssignedTo)
	}
	if p.DueDate != nil {
		fields = append(fields, "due_date=?")
		args = append(args, domain.FormatTime(*p.DueDate))
	}
	if len(fields) == 0 {
		return r.GetTask(ctx, id)
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, r.q(fmt.Sprintf(`UPDATE tasks SET %s WHERE id=?`, strings.Join(fields, ","))), args...)
	if err != nil {
		return domain.Task{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Task{}, err
	}
	if affected == 0 {
		return domain.Task{}, ErrNotFound
	}
	return r.GetTask(ctx, id)
}

// InsertTask writes a new row. Only local seeding and tests create tasks.
func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := r.DB.ExecContext(ctx, r.q(`INSERT INTO tasks(id,title,description,status,priority,due_date,assigned_to,created_at) VALUES (?,?,?,?,?,?,?,?)`),
		t.ID, t.Title, t.Description, t.Status, t.Priority, nullableTime(t.DueDate), nullableStringPtr(t.AssignedTo), nullableTime(t.CreatedAt))
	return err
}

// CountTasksByStatus groups by raw stored status.
func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return nullable(*v)
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return domain.FormatTime(*v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// nullTime scans timestamp columns that come back as time.Time from Postgres
// and as text from SQLite.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	n.Time, n.Valid = time.Time{}, false
	switch v := src.(type) {
	case nil:
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (n *nullTime) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}
