package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"taskboard/internal/board"
	"taskboard/internal/domain"
	"taskboard/internal/relay"
)

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTasks(api huma.API, d deps) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks by due date, undated last",
		Errors:      []int{http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Filter string `query:"filter" doc:"all, todo, in-progress or completed; unknown values mean all"`
	}) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		view := board.NewListView(d.Engine, d.log)
		view.SetFilter(input.Filter)
		if err := view.Refresh(ctx); err != nil {
			return nil, d.fail("list tasks", err)
		}
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: TaskListResponse{Filter: view.Filter(), Items: mapTasks(view.Visible())}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := d.Engine.GetTask(ctx, input.ID)
		if err != nil {
			return nil, d.fail("get task", err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Partially update a task and notify the automation webhook",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		patch := domain.TaskPatch{
			Status:     input.Body.Status,
			Priority:   input.Body.Priority,
			AssignedTo: input.Body.AssignedTo,
		}
		if input.Body.DueDate != nil {
			due, err := domain.ParseDate(strings.TrimSpace(*input.Body.DueDate))
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "due_date"})
			}
			patch.DueDate = &due
		}
		t, err := d.Engine.UpdateTask(ctx, input.ID, patch)
		if err != nil {
			return nil, d.fail("update task", err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})
}

type relaySuccess struct {
	Success bool `json:"success"`
}

func registerRelay(api huma.API, d deps) {
	// The body is forwarded untouched; the relay only checks that it is JSON.
	huma.Register(api, huma.Operation{
		OperationID:      "trigger-n8n-update",
		Method:           http.MethodPost,
		Path:             "/trigger-n8n-update",
		Summary:          "Forward a JSON payload to the automation webhook",
		Errors:           []int{http.StatusInternalServerError},
		SkipValidateBody: true,
	}, func(ctx context.Context, input *struct {
		RawBody []byte `contentType:"application/json"`
	}) (*struct {
		Body relaySuccess `json:"body"`
	}, error) {
		if _, err := d.Relay.Forward(ctx, input.RawBody); err != nil {
			msg := relay.ErrForward.Message
			if relay.IsConfigError(err) {
				msg = relay.ErrNotConfigured.Message
			}
			return nil, &relayError{status: http.StatusInternalServerError, Message: msg}
		}
		return &struct {
			Body relaySuccess `json:"body"`
		}{Body: relaySuccess{Success: true}}, nil
	})
}

func sessionResponse(s *board.ChatSession) ChatSessionResponse {
	tr := s.Transcript()
	if tr == nil {
		tr = []domain.Message{}
	}
	return ChatSessionResponse{
		ID:         s.ID,
		Action:     s.Action,
		TaskID:     s.TaskID,
		Heading:    s.Heading(),
		Input:      s.Input(),
		Transcript: tr,
	}
}

func registerChat(api huma.API, d deps) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-chat",
		Method:        http.MethodPost,
		Path:          "/chat/sessions",
		Summary:       "Start a chat session seeded from navigation parameters",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body StartChatRequest `json:"body" required:"false"`
	}) (*struct {
		Body ChatSessionResponse `json:"body"`
	}, error) {
		s := d.Sessions.Start(ctx, input.Body.Action, input.Body.TaskID)
		return &struct {
			Body ChatSessionResponse `json:"body"`
		}{Body: sessionResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "send-chat",
		Method:      http.MethodPost,
		Path:        "/chat/sessions/{session_id}/messages",
		Summary:     "Send a chat message through the automation webhook",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		SessionID string          `path:"session_id"`
		Body      SendChatRequest `json:"body"`
	}) (*struct {
		Body SendChatResponse `json:"body"`
	}, error) {
		s, err := d.Sessions.Get(input.SessionID)
		if err != nil {
			return nil, d.fail("send chat", err)
		}
		added, err := s.Send(ctx, input.Body.Message)
		if err != nil {
			return nil, d.fail("send chat", err)
		}
		if added == nil {
			added = []domain.Message{}
		}
		return &struct {
			Body SendChatResponse `json:"body"`
		}{Body: SendChatResponse{Session: sessionResponse(s), Added: added}}, nil
	})
}
