package taskboardsdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListTasksSendsFilterAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" || r.URL.Query().Get("filter") != "todo" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"filter":"todo","items":[{"id":"t1","title":"One","status":"not started","status_key":"todo"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	tasks, err := c.ListTasks(context.Background(), "todo")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" || tasks[0].StatusKey != "todo" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestUpdateTaskSendsOnlySetFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/tasks/t1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"id":"t1","status":"pending"}`)
	}))
	defer srv.Close()

	st := "pending"
	task, err := New(srv.URL).UpdateTask(context.Background(), "t1", TaskUpdate{Status: &st})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.Status != "pending" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if len(got) != 1 || got["status"] != "pending" {
		t.Fatalf("expected only status in body, got %v", got)
	}
}

func TestAPIErrorMessageShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/trigger-n8n-update":
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":"N8N webhook URL not configured"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"code":"not_found","message":"task not found"}}`)
		}
	}))
	defer srv.Close()
	c := New(srv.URL)

	err := c.TriggerUpdate(context.Background(), map[string]any{"taskId": "t1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 || apiErr.Message() != "N8N webhook URL not configured" {
		t.Fatalf("unexpected relay error: %v", err)
	}

	_, err = c.GetTask(context.Background(), "missing")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 || apiErr.Message() != "task not found" {
		t.Fatalf("unexpected get error: %v", err)
	}
}

func TestChatRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat/sessions":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["action"] != "update" || body["task_id"] != "t1" {
				t.Errorf("unexpected start body %v", body)
			}
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"id":"s1","heading":"Update Task","input":"I want to update task: One","transcript":[]}`)
		case "/api/chat/sessions/s1/messages":
			io.WriteString(w, `{"session":{"id":"s1"},"added":[{"id":"m1","content":"hi","sender":"user"},{"id":"m2","content":"done","sender":"assistant"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := New(srv.URL)

	s, err := c.StartChat(context.Background(), "update", "t1")
	if err != nil || s.ID != "s1" || s.Heading != "Update Task" {
		t.Fatalf("start: %+v %v", s, err)
	}
	added, err := c.SendChat(context.Background(), s.ID, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(added) != 2 || added[1].Sender != "assistant" || added[1].Content != "done" {
		t.Fatalf("unexpected added: %+v", added)
	}
}
