package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"taskboard/internal/domain"
	"taskboard/internal/relay"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"

	DefaultSessionCapacity = 1024

	createGreeting = "You are creating a new task. Please provide the details."
	relayFailure   = "There was an error contacting the assistant. Please try again."
)

var (
	ErrSendInFlight    = errors.New("a message is already being sent")
	ErrSessionNotFound = errors.New("chat session not found")
)

type TaskReader interface {
	GetTask(ctx context.Context, id string) (domain.Task, error)
}

type Forwarder interface {
	Forward(ctx context.Context, payload []byte) (relay.Response, error)
}

// ChatSession is one chat page view: a seeded input and an append-only
// transcript.
type ChatSession struct {
	ID     string
	Action string
	TaskID string

	tasks  TaskReader
	relay  Forwarder
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	input      string
	transcript []domain.Message
	sending    bool
}

// NewChatSession returns an unseeded session.
func NewChatSession(tasks TaskReader, fwd Forwarder, logger *slog.Logger) *ChatSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatSession{
		ID:     uuid.NewString(),
		tasks:  tasks,
		relay:  fwd,
		logger: logger,
		now:    time.Now,
	}
}

// Seed prepares the input and greeting from the navigation parameters.
func (s *ChatSession) Seed(ctx context.Context, action, taskID string) {
	s.mu.Lock()
	s.Action, s.TaskID = action, taskID
	s.mu.Unlock()

	switch {
	case action == ActionCreate:
		s.setInput("Create ")
		s.appendMessage(domain.SenderAssistant, createGreeting)
	case action == ActionUpdate && taskID != "":
		title := ""
		if t, err := s.tasks.GetTask(ctx, taskID); err != nil {
			s.logger.Warn("chat seed: task lookup failed", "task", taskID, "err", err)
		} else {
			title = t.Title
		}
		s.setInput(fmt.Sprintf("Update %s ", title))
		s.appendMessage(domain.SenderAssistant,
			fmt.Sprintf("You are updating the task: %s. Please specify what you want to update.", title))
	}
}

func (s *ChatSession) Heading() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Action == ActionCreate {
		return "Create New Task"
	}
	return "Update Task"
}

func (s *ChatSession) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *ChatSession) Transcript() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.transcript...)
}

// Sending reports whether the send control should be disabled.
func (s *ChatSession) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

type chatPayload struct {
	Action  *string `json:"action"`
	TaskID  *string `json:"taskId"`
	Message string  `json:"message"`
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Send appends text as a user entry, relays it and appends the reply. It
// returns the entries it appended; whitespace-only text appends nothing.
func (s *ChatSession) Send(ctx context.Context, text string) ([]domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.sending = true
	action, taskID := s.Action, s.TaskID
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	user := s.appendMessage(domain.SenderUser, text)
	s.setInput("")

	body, err := json.Marshal(chatPayload{Action: optional(action), TaskID: optional(taskID), Message: text})
	if err != nil {
		return []domain.Message{user}, err
	}
	reply := relayFailure
	res, err := s.relay.Forward(ctx, body)
	if err != nil {
		s.logger.Error("chat relay failed", "session", s.ID, "err", err)
	} else {
		reply = ReplyText(res.Body)
	}
	assistant := s.appendMessage(domain.SenderAssistant, reply)
	return []domain.Message{user, assistant}, nil
}

func (s *ChatSession) setInput(v string) {
	s.mu.Lock()
	s.input = v
	s.mu.Unlock()
}

func (s *ChatSession) appendMessage(sender domain.Sender, content string) domain.Message {
	m := domain.Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    sender,
		Timestamp: s.now().UTC(),
	}
	s.mu.Lock()
	s.transcript = append(s.transcript, m)
	s.mu.Unlock()
	return m
}

// ReplyText picks the assistant text out of an automation response: the
// first truthy of result, message, success, else the compact JSON. An empty
// body reads as the relay's own {"success":true}.
func ReplyText(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte(`{"success":true}`)
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(trimmed)
	}
	if obj, ok := v.(map[string]any); ok {
		for _, key := range []string{"result", "message", "success"} {
			if val, present := obj[key]; present && truthy(val) {
				if s, isString := val.(string); isString {
					return s
				}
				return compact(val)
			}
		}
	}
	return compact(v)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return true
	}
}

func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// ChatSessions keeps recent sessions in memory, evicting the least recently
// used beyond its capacity.
type ChatSessions struct {
	cache  *lru.Cache[string, *ChatSession]
	tasks  TaskReader
	relay  Forwarder
	logger *slog.Logger
}

func NewChatSessions(capacity int, tasks TaskReader, fwd Forwarder, logger *slog.Logger) (*ChatSessions, error) {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	cache, err := lru.New[string, *ChatSession](capacity)
	if err != nil {
		return nil, err
	}
	return &ChatSessions{cache: cache, tasks: tasks, relay: fwd, logger: logger}, nil
}

// Start creates and seeds a session and keeps it.
func (c *ChatSessions) Start(ctx context.Context, action, taskID string) *ChatSession {
	s := c.Preview(ctx, action, taskID)
	c.cache.Add(s.ID, s)
	return s
}

// Preview seeds a session without keeping it, so viewing the chat page
// never evicts a live conversation.
func (c *ChatSessions) Preview(ctx context.Context, action, taskID string) *ChatSession {
	s := NewChatSession(c.tasks, c.relay, c.logger)
	s.Seed(ctx, action, taskID)
	return s
}

func (c *ChatSessions) Get(id string) (*ChatSession, error) {
	s, ok := c.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (c *ChatSessions) Len() int {
	return c.cache.Len()
}
