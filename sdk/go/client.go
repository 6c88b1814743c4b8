package taskboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskboard HTTP API client.
type Client struct {
	BaseURL string
	// BasePath is the API mount point; empty means /api.
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	StatusKey     string  `json:"status_key"`
	StatusLabel   string  `json:"status_label"`
	Priority      string  `json:"priority"`
	PriorityLabel string  `json:"priority_label"`
	DueDate       *string `json:"due_date,omitempty"`
	AssignedTo    *string `json:"assigned_to,omitempty"`
	CreatedAt     *string `json:"created_at,omitempty"`
}

// TaskUpdate is a partial update; nil fields are left untouched and an
// empty AssignedTo clears the assignee.
type TaskUpdate struct {
	Status     *string `json:"status,omitempty"`
	Priority   *string `json:"priority,omitempty"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	DueDate    *string `json:"due_date,omitempty"`
}

// ChatMessage is one transcript entry.
type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is a server-side chat transcript.
type ChatSession struct {
	ID         string        `json:"id"`
	Action     string        `json:"action,omitempty"`
	TaskID     string        `json:"task_id,omitempty"`
	Heading    string        `json:"heading"`
	Input      string        `json:"input"`
	Transcript []ChatMessage `json:"transcript"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Message extracts the human-readable error from either the
// {"error":{"message":...}} envelope or the relay's flat {"error":"..."}.
func (e *APIError) Message() string {
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &flat) == nil && flat.Error != "" {
		return flat.Error
	}
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(e.Body)
}

// ListTasks returns tasks ordered by due date. filter is all, todo,
// in-progress or completed; empty means all.
func (c *Client) ListTasks(ctx context.Context, filter string) ([]Task, error) {
	endpoint := "tasks"
	if filter != "" {
		endpoint += "?filter=" + url.QueryEscape(filter)
	}
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateTask patches a task and returns the stored row.
func (c *Client) UpdateTask(ctx context.Context, id string, u TaskUpdate) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), u, &resp)
	return resp, err
}

// TriggerUpdate forwards payload to the automation webhook through the
// server's relay endpoint.
func (c *Client) TriggerUpdate(ctx context.Context, payload any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, "trigger-n8n-update", payload, nil)
}

// StartChat opens a chat session. action is "update" or "create"; taskID
// seeds the opening line for updates.
func (c *Client) StartChat(ctx context.Context, action, taskID string) (ChatSession, error) {
	body := map[string]string{}
	if action != "" {
		body["action"] = action
	}
	if taskID != "" {
		body["task_id"] = taskID
	}
	var resp ChatSession
	err := c.do(ctx, http.MethodPost, "chat/sessions", body, &resp)
	return resp, err
}

// SendChat sends a message and returns the messages it added.
func (c *Client) SendChat(ctx context.Context, sessionID, message string) ([]ChatMessage, error) {
	var resp struct {
		Added []ChatMessage `json:"added"`
	}
	endpoint := fmt.Sprintf("chat/sessions/%s/messages", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]string{"message": message}, &resp)
	return resp.Added, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	basePath := c.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(basePath, "/")
}
