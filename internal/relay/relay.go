// Package relay forwards JSON payloads to the external automation webhook.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const maxResponseBytes = 1 << 20

type Kind int

const (
	KindConfig Kind = iota + 1
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// Error is what callers see when a forward fails. Message is safe to show;
// the destination and cause are only logged.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Kind so errors.Is(err, ErrForward) works for any transport
// failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotConfigured = &Error{Kind: KindConfig, Message: "N8N webhook URL not configured"}
	ErrForward       = &Error{Kind: KindTransport, Message: "Failed to trigger n8n webhook"}
)

// Response is a successful forward.
type Response struct {
	StatusCode int
	Body       []byte
	DeliveryID string
}

// Relay posts payloads to URL. A nil Client means http.DefaultClient.
type Relay struct {
	URL    string
	Client *http.Client
	Logger *slog.Logger
}

func (r Relay) Configured() bool {
	return strings.TrimSpace(r.URL) != ""
}

func (r Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r Relay) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

// Forward posts payload verbatim. Any non-2xx answer is a failure.
func (r Relay) Forward(ctx context.Context, payload []byte) (Response, error) {
	log := r.logger()
	if !r.Configured() {
		log.Error("relay: webhook url not configured")
		return Response{}, ErrNotConfigured
	}
	if !json.Valid(payload) {
		log.Error("relay: payload is not valid json", "bytes", len(payload))
		return Response{}, ErrForward
	}
	delivery := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(payload))
	if err != nil {
		log.Error("relay: build request failed", "delivery", delivery, "err", err)
		return Response{}, ErrForward
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Taskboard-Delivery", delivery)
	res, err := r.client().Do(req)
	if err != nil {
		log.Error("relay: deliver failed", "delivery", delivery, "url", r.URL, "err", err)
		return Response{}, ErrForward
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		log.Error("relay: destination rejected payload",
			"delivery", delivery, "url", r.URL, "status", res.StatusCode,
			"body", strings.TrimSpace(string(truncate(body, 4096))))
		return Response{}, ErrForward
	}
	if err != nil {
		log.Error("relay: read response failed", "delivery", delivery, "err", err)
		return Response{}, ErrForward
	}
	log.Debug("relay: delivered", "delivery", delivery, "status", res.StatusCode)
	return Response{StatusCode: res.StatusCode, Body: body, DeliveryID: delivery}, nil
}

// Notify marshals v and forwards it.
func (r Relay) Notify(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, err = r.Forward(ctx, data)
	return err
}

// IsConfigError reports whether err came from a missing destination.
func IsConfigError(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindConfig
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
