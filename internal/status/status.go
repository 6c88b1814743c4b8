// Package status maps raw stored task status strings onto the three
// canonical board states and provides the labels and badge colors used
// wherever a task is rendered.
package status

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Canonical keys.
const (
	Todo       = "todo"
	InProgress = "in-progress"
	Completed  = "completed"
)

// Raw values written by the card editor.
const (
	RawNotStarted = "not started"
	RawPending    = "pending"
	RawCompleted  = "completed"
)

// FilterAll disables status filtering.
const FilterAll = "all"

// Normalize returns the canonical key for a raw status. Unrecognized values
// come back lowercased, so the function is idempotent on its own output.
func Normalize(raw string) string {
	lowered := strings.ToLower(raw)
	switch strings.TrimSpace(lowered) {
	case RawPending:
		return InProgress
	case RawNotStarted:
		return Todo
	case RawCompleted:
		return Completed
	}
	return lowered
}

// IsCanonical reports whether raw normalizes onto one of the three states.
func IsCanonical(raw string) bool {
	switch Normalize(raw) {
	case Todo, InProgress, Completed:
		return true
	}
	return false
}

// Label is the human label for a raw status.
func Label(raw string) string {
	switch Normalize(raw) {
	case InProgress:
		return "In Progress"
	case Todo:
		return "To Do"
	case Completed:
		return "Completed"
	}
	if raw == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(raw)
	return string(unicode.ToUpper(r)) + strings.Replace(raw[size:], "-", " ", 1)
}

// Color is the badge class for a raw status.
func Color(raw string) string {
	switch Normalize(raw) {
	case Completed:
		return "badge-green"
	case InProgress:
		return "badge-blue"
	default:
		return "badge-gray"
	}
}

// PriorityColor is the badge class for a priority; unknown values get the
// default treatment.
func PriorityColor(priority string) string {
	switch strings.ToLower(priority) {
	case "high":
		return "badge-red"
	case "medium":
		return "badge-yellow"
	case "low":
		return "badge-green"
	default:
		return "badge-blue"
	}
}

// PriorityLabel capitalizes the first letter and lowercases the rest.
func PriorityLabel(priority string) string {
	if priority == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(priority)
	return string(unicode.ToUpper(r)) + strings.ToLower(priority[size:])
}

// Option is a selectable raw value with its label.
type Option struct {
	Value string
	Label string
}

// Options lists the raw statuses the editor offers.
func Options() []Option {
	return []Option{
		{Value: RawNotStarted, Label: "To Do"},
		{Value: RawPending, Label: "In Progress"},
		{Value: RawCompleted, Label: "Completed"},
	}
}

// PriorityOptions lists the priorities the editor offers.
func PriorityOptions() []Option {
	return []Option{
		{Value: "low", Label: "Low"},
		{Value: "medium", Label: "Medium"},
		{Value: "high", Label: "High"},
	}
}

// Filters lists the list-view filters in display order.
func Filters() []Option {
	return []Option{
		{Value: FilterAll, Label: "All"},
		{Value: Todo, Label: "To Do"},
		{Value: InProgress, Label: "In Progress"},
		{Value: Completed, Label: "Completed"},
	}
}

// ValidFilter reports whether f is one of Filters.
func ValidFilter(f string) bool {
	for _, opt := range Filters() {
		if opt.Value == f {
			return true
		}
	}
	return false
}

// Matches reports whether a task with the raw status passes the filter.
func Matches(filter, raw string) bool {
	if filter == "" || filter == FilterAll {
		return true
	}
	return Normalize(raw) == filter
}
