// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/halvar/vellum/internal/api"
	"github.com/halvar/vellum/internal/compiler"
	"github.com/halvar/vellum/internal/docstore"
	"github.com/halvar/vellum/internal/mcpserver"
	"github.com/halvar/vellum/internal/orchestrator"
	"github.com/halvar/vellum/internal/sse"
	"github.com/halvar/vellum/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("compiler_binary", cfg.Compiler.Binary),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Duration("debounce", cfg.Preview.Debounce()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize document store.
	db, err := docstore.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init docstore: %w", err)
	}
	defer db.Close()

	// Compiler service (overridable for tests).
	svc := app.compiler
	if svc == nil {
		local, err := compiler.NewLocal(cfg.Compiler.Binary, cfg.Compiler.ScratchDir,
			cfg.Compiler.Timeout(), logger)
		if err != nil {
			return fmt.Errorf("init compiler: %w", err)
		}
		svc = local
	}

	// Stdio MCP mode: tools only, no HTTP server.
	if app.mcpMode {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(svc, db).ServeStdio()
	}

	// SSE broker.
	broker := sse.NewBroker(cfg.Preview.ActivityThrottle())
	defer broker.Close()

	// Session manager publishing lifecycle events through the broker.
	sessions := orchestrator.NewManager(svc, db, cfg.Preview.Debounce(), logger,
		func(sessionID, kind string, seq uint64) {
			broker.PublishSessionEvent(sessionID, kind, seq)
		})
	defer sessions.CloseAll()

	// Build API service and router.
	apiSvc := api.NewService(svc, db, sessions)
	apiRouter := api.NewRouter(apiSvc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the compile-on-save watcher when enabled.
	if cfg.Watch.Enabled {
		g.Go(func() error {
			if err := watch.Watch(gCtx, sessions, cfg.Watch.Path, logger, func(kind, path string) {
				broker.Publish(sse.Event{Type: "source." + kind, Data: map[string]string{"path": path}})
			}); err != nil {
				return fmt.Errorf("watcher error: %w", err)
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
