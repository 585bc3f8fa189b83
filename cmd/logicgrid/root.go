package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/logicgrid/logicgrid/internal/ai"
	"github.com/logicgrid/logicgrid/internal/api"
	"github.com/logicgrid/logicgrid/internal/config"
	"github.com/logicgrid/logicgrid/internal/protocol"
	"github.com/logicgrid/logicgrid/internal/store"
	"github.com/logicgrid/logicgrid/internal/types"
	"github.com/logicgrid/logicgrid/internal/worker"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "logicgrid",
	Short: "LogicGrid - Protocol Builder Service",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(userCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	logger := slog.New(newLogHandler(cfg.Log))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Seed built-in column presets
	if err := seedPresets(ctx, db); err != nil {
		db.Close()
		return err
	}
	slog.Info("presets seeded")

	// 6. Initialize AI suggester (optional; service degrades to 503 without it)
	var suggester ai.Suggester
	if cfg.AI.APIKey != "" {
		openAI := ai.NewOpenAI(cfg.AI.APIKey, cfg.AI.Model)
		suggester = openAI
		slog.Info("suggester initialized", "model", openAI.ModelName())
	} else {
		slog.Warn("suggester disabled", "reason", "OPENAI_API_KEY not set")
	}

	// 7. Initialize HTTP router
	handler := api.NewHandler(db, suggester, cfg, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Start background workers
	var wg sync.WaitGroup
	sweeper := worker.NewSessionSweeper(db,
		time.Duration(cfg.Worker.SessionSweepInterval),
		time.Duration(cfg.Auth.SessionTTL))
	startWorker(ctx, &wg, "session-sweeper", sweeper.Run)

	// 10. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 11. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 12. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 12a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 12b. Wait for workers to complete
	wg.Wait()

	// 12c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// seedPresets inserts the built-in column presets that are not already
// present, so admin customizations survive restarts.
func seedPresets(ctx context.Context, db store.Store) error {
	entries := protocol.DefaultCatalogEntries()
	presets := make([]types.ColumnPreset, len(entries))
	for i, e := range entries {
		presets[i] = types.ColumnPreset{
			Key:           e.Key,
			Label:         e.Label,
			Config:        e.Config,
			StandardOrder: e.StandardOrder,
		}
	}
	if err := db.SeedColumnPresets(ctx, presets); err != nil {
		return fmt.Errorf("seed presets: %w", err)
	}
	return nil
}

func newLogHandler(cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker launched", "worker", name)
		fn(ctx)
		slog.Info("worker finished", "worker", name)
	}()
}
