package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vitrinecommerce/api/internal/config"
	"github.com/vitrinecommerce/api/internal/database"
	adminhandlers "github.com/vitrinecommerce/api/internal/handlers/admin"
	"github.com/vitrinecommerce/api/internal/middleware"
	"github.com/vitrinecommerce/api/internal/services/news"
	"github.com/vitrinecommerce/api/internal/services/product"
	"github.com/vitrinecommerce/api/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	slog.Info("database connected")

	// Run migrations
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations complete")

	// Storage backend: selected once here for the process lifetime. A
	// misconfigured cloud driver falls back to disk inside storage.New.
	adapter := storage.New(context.Background(), cfg.Storage.ToStorage(), logger)
	mediaStore := storage.NewMediaStore(adapter, logger)

	// Initialize services
	productSvc := product.NewService(pool, mediaStore, logger)
	newsSvc := news.NewService(pool, mediaStore, logger)

	// Initialize handlers
	productHandler := adminhandlers.NewProductHandler(productSvc, logger)
	newsHandler := adminhandlers.NewNewsHandler(newsSvc, logger)
	mediaHandler := adminhandlers.NewMediaHandler(mediaStore, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	productHandler.RegisterRoutes(mux)
	newsHandler.RegisterRoutes(mux)
	mediaHandler.RegisterRoutes(mux)

	// When the disk backend is active (chosen or fallen back to), serve the
	// uploaded files under the public prefix.
	if disk, ok := mediaStore.Adapter().(*storage.Disk); ok {
		prefix := "/" + strings.Trim(cfg.Storage.PublicPrefix, "/") + "/"
		mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(disk.BaseDir()))))
	}

	var chain http.Handler = mux
	chain = middleware.CORS(cfg.CORSOrigin)(chain)
	chain = middleware.RateLimiter(20, 40)(chain)
	chain = middleware.SecurityHeaders(chain)
	chain = middleware.Recover(logger)(chain)
	chain = middleware.RequestLogger(logger)(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      chain,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "storage_driver", string(mediaStore.Driver()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Drain queued orphan cleanup before exiting.
	mediaStore.Close()

	slog.Info("server stopped")
}
