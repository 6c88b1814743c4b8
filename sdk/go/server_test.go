package taskboardsdk_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"taskboard/internal/app"
	"taskboard/internal/config"
	"taskboard/internal/engine"
	"taskboard/internal/server"
	taskboardsdk "taskboard/sdk/go"
)

type webhook struct {
	mu       sync.Mutex
	payloads []string
}

func (h *webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.payloads = append(h.payloads, string(data))
	h.mu.Unlock()
	io.WriteString(w, `{"result":"Noted"}`)
}

func (h *webhook) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.payloads...)
}

func newBoard(t *testing.T, relayURL string) (*taskboardsdk.Client, engine.Engine) {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Workspace = t.TempDir()
	cfg.Relay.URL = relayURL
	rt, err := app.Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	handler, err := server.New(rt.ServerConfig())
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return taskboardsdk.New(srv.URL), rt.Engine
}

func TestClientAgainstServer(t *testing.T) {
	hook := &webhook{}
	dest := httptest.NewServer(hook)
	defer dest.Close()
	c, e := newBoard(t, dest.URL)
	ctx := context.Background()
	if _, err := e.SeedTask(ctx, engine.TaskCreateOptions{ID: "t1", Title: "Ship report", Priority: "low"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := c.TriggerUpdate(ctx, map[string]any{"taskId": "t1", "status": "pending"}); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if got := hook.received(); len(got) != 1 || strings.TrimSpace(got[0]) != `{"status":"pending","taskId":"t1"}` {
		t.Fatalf("relay payload not forwarded: %v", got)
	}

	st, due := "pending", "2024-01-02"
	task, err := c.UpdateTask(ctx, "t1", taskboardsdk.TaskUpdate{Status: &st, DueDate: &due})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.Status != "pending" || task.StatusLabel != "In Progress" || task.Priority != "low" || task.DueDate == nil {
		t.Fatalf("unexpected task %+v", task)
	}
	if got := hook.received(); len(got) != 2 || !strings.Contains(got[1], `"taskId":"t1"`) {
		t.Fatalf("update should notify the webhook: %v", got)
	}

	tasks, err := c.ListTasks(ctx, "in-progress")
	if err != nil || len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("list: %v %+v", err, tasks)
	}

	session, err := c.StartChat(ctx, "update", "t1")
	if err != nil {
		t.Fatalf("start chat: %v", err)
	}
	if session.Heading != "Update Task" || session.Input != "Update Ship report " {
		t.Fatalf("unexpected seed %+v", session)
	}
	added, err := c.SendChat(ctx, session.ID, "Update Ship report to high")
	if err != nil {
		t.Fatalf("send chat: %v", err)
	}
	if len(added) != 2 || added[0].Sender != "user" || added[1].Content != "Noted" {
		t.Fatalf("unexpected chat reply %+v", added)
	}

	_, err = c.GetTask(ctx, "missing")
	var apiErr *taskboardsdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Message() != "task not found" {
		t.Fatalf("expected 404 task not found, got %v", err)
	}
}

func TestClientTriggerUpdateUnconfigured(t *testing.T) {
	c, _ := newBoard(t, "")
	err := c.TriggerUpdate(context.Background(), map[string]any{"taskId": "t1"})
	var apiErr *taskboardsdk.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message() != "N8N webhook URL not configured" {
		t.Fatalf("expected config error, got %v", err)
	}
}
