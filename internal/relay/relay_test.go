package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingTransport fails the test on any request.
type countingTransport struct{ calls int32 }

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return nil, errors.New("unexpected network call")
}

func TestForwardUnconfiguredMakesNoCalls(t *testing.T) {
	rt := &countingTransport{}
	r := Relay{URL: "  ", Client: &http.Client{Transport: rt}, Logger: quietLogger()}
	_, err := r.Forward(context.Background(), []byte(`{"a":1}`))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if !IsConfigError(err) {
		t.Fatalf("expected config kind")
	}
	if err.Error() != "N8N webhook URL not configured" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if n := atomic.LoadInt32(&rt.calls); n != 0 {
		t.Fatalf("expected zero network calls, got %d", n)
	}
}

func TestForwardPostsVerbatimJSON(t *testing.T) {
	var (
		gotBody  string
		gotType  string
		gotMeth  string
		delivery string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotType = r.Header.Get("Content-Type")
		gotMeth = r.Method
		delivery = r.Header.Get("X-Taskboard-Delivery")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"done"}`))
	}))
	defer srv.Close()

	payload := `{"action":"update", "taskId":"t1","message":"hi"}`
	r := Relay{URL: srv.URL, Logger: quietLogger()}
	res, err := r.Forward(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if gotMeth != http.MethodPost || gotType != "application/json" {
		t.Fatalf("unexpected request %s %s", gotMeth, gotType)
	}
	if gotBody != payload {
		t.Fatalf("payload altered: %q", gotBody)
	}
	if delivery == "" || delivery != res.DeliveryID {
		t.Fatalf("delivery id mismatch %q vs %q", delivery, res.DeliveryID)
	}
	if string(res.Body) != `{"result":"done"}` || res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected response %+v", res)
	}
}

func TestForwardNon2xxIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "secret internal stack trace", http.StatusBadGateway)
	}))
	defer srv.Close()

	r := Relay{URL: srv.URL + "/hook/abc123", Logger: quietLogger()}
	_, err := r.Forward(context.Background(), []byte(`{}`))
	if !errors.Is(err, ErrForward) {
		t.Fatalf("expected ErrForward, got %v", err)
	}
	msg := err.Error()
	if msg != "Failed to trigger n8n webhook" {
		t.Fatalf("unexpected message %q", msg)
	}
	if strings.Contains(msg, "secret") || strings.Contains(msg, "abc123") {
		t.Fatalf("message leaks destination detail: %q", msg)
	}
}

func TestForwardTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	r := Relay{URL: url, Logger: quietLogger()}
	if _, err := r.Forward(context.Background(), []byte(`{}`)); !errors.Is(err, ErrForward) {
		t.Fatalf("expected ErrForward, got %v", err)
	}
}

func TestForwardRejectsInvalidJSON(t *testing.T) {
	rt := &countingTransport{}
	r := Relay{URL: "http://example.invalid", Client: &http.Client{Transport: rt}, Logger: quietLogger()}
	if _, err := r.Forward(context.Background(), []byte(`{not json`)); !errors.Is(err, ErrForward) {
		t.Fatalf("expected ErrForward, got %v", err)
	}
	if rt.calls != 0 {
		t.Fatalf("invalid payload should not be sent")
	}
}

func TestNotifyMarshals(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	r := Relay{URL: srv.URL, Logger: quietLogger()}
	if err := r.Notify(context.Background(), map[string]any{"taskId": "t1", "status": "pending"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got["taskId"] != "t1" || got["status"] != "pending" {
		t.Fatalf("unexpected payload %v", got)
	}
}
