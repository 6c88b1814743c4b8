package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"taskboard/internal/config"
	"taskboard/internal/db"
)

func TestNewLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("expected json record, got %s", out)
	}
}

func TestBuildWiresRelays(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Workspace = t.TempDir()
	cfg.Relay.URL = "https://server.example/hook"
	cfg.Relay.PublicURL = "https://public.example/hook"
	cfg.Auth.JWTSecret = "s3cret"

	rt, err := Build(context.Background(), cfg, NewLogger(&bytes.Buffer{}, "error", "text"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.Close()

	if rt.Engine.Repo.Dialect != db.SQLite {
		t.Fatalf("expected sqlite dialect, got %q", rt.Engine.Repo.Dialect)
	}
	if rt.Relay.URL != cfg.Relay.URL {
		t.Fatalf("server relay url = %q", rt.Relay.URL)
	}
	if rt.ChatRelay.URL != cfg.Relay.PublicURL {
		t.Fatalf("chat relay should use the public url, got %q", rt.ChatRelay.URL)
	}
	sc := rt.ServerConfig()
	if sc.BasePath != "/api" || sc.Auth.JWTSecret != "s3cret" {
		t.Fatalf("unexpected server config: %+v", sc)
	}

	tasks, err := rt.Engine.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("list on migrated store: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty store, got %d tasks", len(tasks))
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "mysql"
	if _, _, err := OpenStore(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
