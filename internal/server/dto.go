package server

import (
	"taskboard/internal/domain"
	"taskboard/internal/status"
)

// Request payloads

type UpdateTaskRequest struct {
	Status     *string `json:"status,omitempty" example:"pending" doc:"Raw status; stored as sent"`
	Priority   *string `json:"priority,omitempty" example:"high"`
	AssignedTo *string `json:"assigned_to,omitempty" doc:"Empty string clears the assignee"`
	DueDate    *string `json:"due_date,omitempty" example:"2024-01-02" doc:"YYYY-MM-DD or RFC3339"`
}

type StartChatRequest struct {
	Action string `json:"action,omitempty" example:"update"`
	TaskID string `json:"task_id,omitempty"`
}

type SendChatRequest struct {
	Message string `json:"message"`
}

// Response payloads

type TaskResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	StatusKey     string  `json:"status_key" doc:"Normalized status"`
	StatusLabel   string  `json:"status_label"`
	Priority      string  `json:"priority"`
	PriorityLabel string  `json:"priority_label"`
	DueDate       *string `json:"due_date,omitempty"`
	AssignedTo    *string `json:"assigned_to,omitempty"`
	CreatedAt     *string `json:"created_at,omitempty"`
}

type TaskListResponse struct {
	Filter string         `json:"filter"`
	Items  []TaskResponse `json:"items"`
}

type ChatSessionResponse struct {
	ID         string           `json:"id"`
	Action     string           `json:"action,omitempty"`
	TaskID     string           `json:"task_id,omitempty"`
	Heading    string           `json:"heading"`
	Input      string           `json:"input"`
	Transcript []domain.Message `json:"transcript"`
}

type SendChatResponse struct {
	Session ChatSessionResponse `json:"session"`
	Added   []domain.Message    `json:"added"`
}

func taskResponse(t domain.Task) TaskResponse {
	res := TaskResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		StatusKey:     status.Normalize(t.Status),
		StatusLabel:   status.Label(t.Status),
		Priority:      t.Priority,
		PriorityLabel: status.PriorityLabel(t.Priority),
		AssignedTo:    t.AssignedTo,
	}
	if t.DueDate != nil {
		v := domain.FormatTime(*t.DueDate)
		res.DueDate = &v
	}
	if t.CreatedAt != nil {
		v := domain.FormatTime(*t.CreatedAt)
		res.CreatedAt = &v
	}
	return res
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}
