// Command migrate applies pending database migrations and exits.
package main

import (
	"log/slog"
	"os"

	"github.com/vitrinecommerce/api/internal/config"
	"github.com/vitrinecommerce/api/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations complete")
}
