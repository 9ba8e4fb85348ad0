package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/classbot/internal/chat"
	"github.com/pavelanni/classbot/internal/handler"
	appI18n "github.com/pavelanni/classbot/internal/i18n"
	"github.com/pavelanni/classbot/internal/model"
	"github.com/pavelanni/classbot/internal/session"
	"github.com/pavelanni/classbot/internal/store"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "classbot",
		Short: "Classroom chat assistant: attendance, quizzes and feedback",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), studentsCmd(), summarizeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `classbot --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chat server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":5000", "HTTP listen address")
	f.String("db", "classroom.db", "SQLite database path")
	f.StringP("questions", "q", "", "Path to a quiz questions JSON file (default: built-in questions)")
	f.StringP("lang", "l", "en", "Reply language (en, ru)")
	f.Duration("session-ttl", session.DefaultTTL, "Forget conversations idle for longer than this")
	f.String("redis-url", "", "Store conversations in Redis instead of SQLite (redis://host:6379/0)")
	f.String("attendance-mode", string(model.AttendanceAppend), "How repeated attendance for a day is stored (append, upsert)")
	f.StringSlice("allowed-origins", nil, "CORS allowed origins (default: any)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /bot)")
	f.String("admin-password", "", "Password for the read endpoints, user \"admin\" (or set CLASSBOT_ADMIN_PASSWORD)")
	addLogFlags(f)
	return cmd
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CLASSBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("classbot")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/classbot")
	v.AddConfigPath("/etc/classbot")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// stringList reads a list setting. Values from the environment arrive as
// one comma-separated string.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseAttendanceMode(s string) (model.AttendanceMode, error) {
	switch mode := model.AttendanceMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case model.AttendanceAppend, model.AttendanceUpsert:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid attendance mode %q (want append or upsert)", s)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	mode, err := parseAttendanceMode(v.GetString("attendance-mode"))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetAttendanceMode(mode)

	var opts []chat.Option
	if path := v.GetString("questions"); path != "" {
		bank, err := chat.LoadBank(path)
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		slog.Info("loaded question bank", "path", path, "count", bank.Len())
		opts = append(opts, chat.WithBank(bank))
	}
	engine := chat.New(db, opts...)

	var backend session.Backend = db
	var redisBackend *session.RedisBackend
	if url := v.GetString("redis-url"); url != "" {
		redisBackend, err = session.NewRedisBackend(ctx, url)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisBackend.Close()
		backend = redisBackend
	}

	cfg := model.ServerConfig{
		SessionTTL:     v.GetDuration("session-ttl"),
		AllowedOrigins: stringList(v, "allowed-origins"),
		AdminPassword:  v.GetString("admin-password"),
	}
	sessions := session.New(backend, cfg.SessionTTL)
	defer sessions.Close()

	h, err := handler.New(db, engine, sessions, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}
	if redisBackend != nil {
		h.AddHealthCheck("redis", redisBackend.Ping)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(handler.CORS(cfg.AllowedOrigins))
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, h.Routes)
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"languages", appI18n.Languages(),
		"attendance_mode", mode,
		"session_ttl", cfg.SessionTTL,
		"redis", redisBackend != nil,
		"questions", engine.Bank().Len(),
		"admin_auth", cfg.AdminPassword != "",
		"base_path", basePath,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
