package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/engine"
	"taskboard/internal/migrate"
	"taskboard/internal/relay"
	"taskboard/internal/server"
)

// NewLogger builds the process logger from log.level and log.format.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OpenStore opens the configured store. The local SQLite store is migrated;
// the hosted Postgres schema is managed outside this tool.
func OpenStore(ctx context.Context, cfg *config.Config) (*sql.DB, db.Dialect, error) {
	conn, dialect, err := db.Open(db.Config{
		Driver:    cfg.Store.Driver,
		DSN:       cfg.Store.DSN,
		Workspace: cfg.Store.Workspace,
	})
	if err != nil {
		return nil, "", err
	}
	if dialect == db.SQLite {
		if _, err := migrate.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, "", fmt.Errorf("migrate: %w", err)
		}
	}
	return conn, dialect, nil
}

// Runtime is everything a command needs once config is resolved.
type Runtime struct {
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Relay     relay.Relay
	ChatRelay relay.Relay
	Logger    *slog.Logger
}

// Build opens the store and wires the relays and engine for cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, dialect, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		Config:    cfg,
		DB:        conn,
		Relay:     relay.Relay{URL: cfg.Relay.URL, Logger: logger},
		ChatRelay: relay.Relay{URL: cfg.Relay.ClientURL(), Logger: logger},
		Logger:    logger,
	}
	rt.Engine = engine.New(conn, dialect, rt.Relay, logger)
	return rt, nil
}

// ServerConfig returns the HTTP handler config for this runtime.
func (rt *Runtime) ServerConfig() server.Config {
	return server.Config{
		Engine:    rt.Engine,
		Relay:     rt.Relay,
		ChatRelay: rt.ChatRelay,
		BasePath:  rt.Config.Server.BasePath,
		Auth:      server.AuthConfig{JWTSecret: rt.Config.Auth.JWTSecret},
		Logger:    rt.Logger,
	}
}

func (rt *Runtime) Close() error {
	if rt == nil || rt.DB == nil {
		return nil
	}
	return rt.DB.Close()
}
