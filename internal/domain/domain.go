package domain

import (
	"fmt"
	"time"
)

// Task is a row of the externally owned tasks table. Status is stored raw;
// canonical display states come from the status package.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty" format:"date-time"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty" format:"date-time"`
}

// Assignee returns the assignee label or "".
func (t Task) Assignee() string {
	if t.AssignedTo == nil {
		return ""
	}
	return *t.AssignedTo
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Status     *string
	Priority   *string
	AssignedTo *string
	DueDate    *time.Time
}

// Empty reports whether the patch carries no fields.
func (p TaskPatch) Empty() bool {
	return p.Status == nil && p.Priority == nil && p.AssignedTo == nil && p.DueDate == nil
}

// Fields returns the applied fields keyed by column name.
func (p TaskPatch) Fields() map[string]any {
	fields := map[string]any{}
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.Priority != nil {
		fields["priority"] = *p.Priority
	}
	if p.AssignedTo != nil {
		fields["assigned_to"] = *p.AssignedTo
	}
	if p.DueDate != nil {
		fields["due_date"] = FormatTime(*p.DueDate)
	}
	return fields
}

// FormatTime renders t the way it is written to the store.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one chat transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender" enum:"user,assistant"`
	Timestamp time.Time `json:"timestamp" format:"date-time"`
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC3339", s)
	}
	return t.UTC(), nil
}
