package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskboard/internal/app"
	"taskboard/internal/board"
	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/server"
	"taskboard/internal/status"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Taskboard CLI",
	Long: `Taskboard is a small board over a shared tasks table.
- Board: tasks ordered by due date, filtered by To Do, In Progress or Completed.
- Card editor: change status, priority, assignee and due date; every save is
  announced to the automation webhook.
- Chat: talk to the automation workflow through the same webhook relay.
Run 'tb serve' for the web board and JSON API.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	config.BindEnv(viper.GetViper())
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory (holds taskboard.yml and .taskboard/)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	_ = viper.BindPFlag("store.workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(relayCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(tokenCmd())
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board and the JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				handler, err := server.New(rt.ServerConfig())
				if err != nil {
					return err
				}
				addr := rt.Config.Server.Addr
				basePath := rt.Config.Server.BasePath
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				if !rt.Relay.Configured() {
					rt.Logger.Warn("relay url not configured; updates will not be announced")
				}
				fmt.Printf("Serving taskboard on http://%s (API at %s, OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().String("base-path", "/api", "API base path")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.base_path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Inspect and update tasks"}
	t.AddCommand(taskListCmd())
	t.AddCommand(taskGetCmd())
	t.AddCommand(taskUpdateCmd())
	t.AddCommand(taskSeedCmd())
	return t
}

func taskListCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !status.ValidFilter(filter) {
				return fmt.Errorf("unknown filter %q (want all, todo, in-progress or completed)", filter)
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				view := board.NewListView(rt.Engine, rt.Logger)
				view.SetFilter(filter)
				if err := view.Refresh(ctx); err != nil {
					return err
				}
				tasks := view.Visible()
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				counts, err := rt.Engine.StatusCounts(ctx)
				if err != nil {
					return err
				}
				renderTaskTable(os.Stdout, tasks, counts)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", status.FilterAll, "status filter: all, todo, in-progress, completed")
	return cmd
}

func renderTaskTable(w io.Writer, tasks []domain.Task, counts map[string]int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Due", "Assignee"})
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.UTC().Format("2006-01-02")
		}
		tw.AppendRow(table.Row{t.ID, t.Title, statusBadge(t.Status), priorityBadge(t.Priority), due, t.Assignee()})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d shown", len(tasks)), countsSummary(counts)})
	tw.Render()
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Engine.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var st, priority, assign, due string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update status, priority, assignee or due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.TaskPatch
			if cmd.Flags().Changed("status") {
				patch.Status = &st
			}
			if cmd.Flags().Changed("priority") {
				patch.Priority = &priority
			}
			if cmd.Flags().Changed("assign") {
				a := strings.TrimSpace(assign)
				patch.AssignedTo = &a
			}
			if cmd.Flags().Changed("due") {
				d, err := domain.ParseDate(due)
				if err != nil {
					return err
				}
				patch.DueDate = &d
			}
			if patch.Empty() {
				return errors.New("nothing to update; pass --status, --priority, --assign or --due")
			}
			id := args[0]
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Engine.UpdateTask(ctx, id, patch)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&st, "status", "", "raw status, e.g. pending")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(&assign, "assign", "", "assignee (empty clears)")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD or RFC3339")
	return cmd
}

func taskSeedCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var due string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert a task directly (local development)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if due != "" {
				d, err := domain.ParseDate(due)
				if err != nil {
					return err
				}
				opts.DueDate = &d
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Engine.SeedTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "markdown description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "raw status (default not started)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (default medium)")
	cmd.Flags().StringVar(&opts.AssignedTo, "assign", "", "assignee")
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (default random uuid)")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD or RFC3339")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func relayCmd() *cobra.Command {
	r := &cobra.Command{Use: "relay", Short: "Talk to the automation webhook"}
	r.AddCommand(relaySendCmd())
	return r
}

func relaySendCmd() *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Forward a JSON payload and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := []byte(payload)
			if payload == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				body = data
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Relay.Forward(ctx, body)
				if err != nil {
					return err
				}
				reply := board.ReplyText(res.Body)
				if viper.GetBool("json") {
					return printJSON(map[string]any{"delivery": res.DeliveryID, "status": res.StatusCode, "reply": reply})
				}
				fmt.Println(reply)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "{}", "JSON payload, or - to read stdin")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect taskboard.yml",
		Long:  "Config is read from <workspace>/taskboard.yml, then TASKBOARD_* and the hosted N8N_WEBHOOK_URL / NEXT_PUBLIC_N8N_WEBHOOK_URL / DATABASE_URL variables, then flags.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show resolved config (secrets omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"config":           cfg,
				"relay_configured": cfg.Relay.Configured(),
				"auth_enabled":     strings.TrimSpace(cfg.Auth.JWTSecret) != "",
			})
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter taskboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("store.workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.Path(viper.GetString("store.workspace"))
			}
			_, err := config.FromFile(file)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file (default <workspace>/taskboard.yml)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var sub string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			token, err := server.MintToken(cfg.Auth.JWTSecret, sub, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "subject (actor id)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

// --- helpers ---

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger := app.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
