// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/storysync/internal/api"
	"github.com/starford/storysync/internal/apperr"
	"github.com/starford/storysync/internal/ghproject"
	"github.com/starford/storysync/internal/journal"
	"github.com/starford/storysync/internal/mcpserver"
	"github.com/starford/storysync/internal/sse"
	"github.com/starford/storysync/internal/storyservice"
	"github.com/starford/storysync/internal/watch"
)

// runtime is the per-command state built from the options.
type runtime struct {
	*application
	logger  *slog.Logger
	closers []io.Closer
}

func newRuntime(opts []Option) (*runtime, error) {
	app := &application{out: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	rt := &runtime{application: app}
	cfg := app.config

	// Structured JSON logs go to stderr; stdout carries summaries and MCP traffic.
	var sink io.Writer = os.Stderr
	if cfg.App.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.App.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		rt.closers = append(rt.closers, rotating)
		sink = rotating
	}
	rt.logger = slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(rt.logger)

	rt.logger.Debug("Configuration loaded",
		slog.String("stories_dir", cfg.Stories.Dir),
		slog.String("journal_path", cfg.Journal.Path),
		slog.String("github_endpoint", cfg.GitHub.Endpoint),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return rt, nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
}

func (rt *runtime) openJournal() (*journal.DB, error) {
	path := rt.config.Journal.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := journal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	rt.closers = append(rt.closers, db)
	return db, nil
}

// newService validates the board credentials and wires the story service.
func (rt *runtime) newService(pub storyservice.EventPublisher) (*storyservice.Service, error) {
	if err := rt.config.GitHub.Validate(); err != nil {
		return nil, err
	}
	client := ghproject.New(rt.config.GitHub.ClientConfig(), rt.logger)

	opts := []storyservice.Option{storyservice.WithLogger(rt.logger)}
	if rt.config.Journal.Enabled() {
		db, err := rt.openJournal()
		if err != nil {
			return nil, err
		}
		opts = append(opts, storyservice.WithJournal(db))
	}
	if pub != nil {
		opts = append(opts, storyservice.WithPublisher(pub))
	}
	return storyservice.NewService(rt.config.Stories.Dir, client, opts...), nil
}

// RunPush pushes the story directory to the board and prints a summary.
func RunPush(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	svc, err := rt.newService(nil)
	if err != nil {
		return err
	}
	res, err := svc.Push(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "Synced %d/%d user stories (%d archived)\n",
		res.UpdatedStories, res.TotalStories, res.ArchivedStories)
	return nil
}

// RunPull pulls board items into the story directory and prints a summary.
func RunPull(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	svc, err := rt.newService(nil)
	if err != nil {
		return err
	}
	res, err := svc.Pull(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "Pulled %d/%d user stories\n", res.WrittenStories, res.TotalItems)
	return nil
}

// RunWatch pushes once, then again after every settled change to the story
// directory, until interrupted or a push fails.
func RunWatch(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	svc, err := rt.newService(nil)
	if err != nil {
		return err
	}

	push := rt.pushAndReport(svc)
	if err := push(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return watch.Watch(gCtx, svc.Dir(), rt.config.Watch.Debounce, rt.logger, push)
	})
	g.Go(func() error {
		waitForSignal(gCtx, rt.logger)
		cancel()
		return nil
	})
	return g.Wait()
}

func (rt *runtime) pushAndReport(svc *storyservice.Service) watch.Func {
	return func(ctx context.Context) error {
		res, err := svc.Push(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(rt.out, "Synced %d/%d user stories (%d archived)\n",
			res.UpdatedStories, res.TotalStories, res.ArchivedStories)
		return nil
	}
}

// RunServe starts the HTTP API with live events until interrupted.
func RunServe(ctx context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.config
	logger := rt.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, err := rt.newService(broker)
	if err != nil {
		return err
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if info, err := os.Stat(svc.Dir()); err != nil || !info.IsDir() {
			writeHealth(w, http.StatusServiceUnavailable, "stories directory unavailable")
			return
		}
		writeHealth(w, http.StatusOK, "ok")
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if rt.watch {
		g.Go(func() error {
			return watch.Watch(gCtx, svc.Dir(), cfg.Watch.Debounce, logger, func(ctx context.Context) error {
				_, err := svc.Push(ctx)
				return err
			})
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		waitForSignal(gCtx, logger)
		logger.Info("Shutting down server...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio.
func RunMCP(_ context.Context, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	svc, err := rt.newService(nil)
	if err != nil {
		return err
	}
	rt.logger.Info("MCP server starting on stdio", slog.String("stories_dir", svc.Dir()))
	return mcpserver.New(svc, rt.version).ServeStdio()
}

// RunHistory prints the most recent journal runs.
func RunHistory(_ context.Context, limit int, opts ...Option) error {
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	if !rt.config.Journal.Enabled() {
		return fmt.Errorf("%w: journal.path is empty", apperr.ErrConfiguration)
	}
	db, err := rt.openJournal()
	if err != nil {
		return err
	}
	runs, err := db.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(rt.out, "No runs recorded")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintln(rt.out, formatRun(run))
	}
	return nil
}

func formatRun(run journal.Run) string {
	line := fmt.Sprintf("%s  %-4s  total=%d changed=%d archived=%d  %s",
		run.StartedAt.Local().Format(time.DateTime), run.Direction,
		run.Total, run.Changed, run.Archived, run.ID)
	switch {
	case run.Error != "":
		line += "  error: " + run.Error
	case run.FinishedAt == nil:
		line += "  (unfinished)"
	}
	return line
}

// waitForSignal blocks until SIGINT/SIGTERM or ctx is done.
func waitForSignal(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
}

func writeHealth(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, msg)
}
