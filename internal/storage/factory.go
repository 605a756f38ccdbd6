package storage

import (
	"context"
	"log/slog"
)

// Config selects and configures the storage backend for the process. The
// driver is chosen once at startup and never changes for the process
// lifetime.
type Config struct {
	Driver Driver

	// Disk settings double as the fallback target for misconfigured cloud
	// drivers.
	UploadDir     string // local filesystem root, e.g. "./uploads"
	PublicPrefix  string // URL path prefix for served files, e.g. "/uploads"
	PublicBaseURL string // optional absolute base for disk-served paths

	S3  S3Config
	GCS GCSConfig
}

// New constructs the adapter for cfg.Driver. Fail-open: when a cloud driver
// is requested but its bucket or credentials are missing, or the client
// cannot be initialized, the decision to fall back to disk is made here,
// once, and logged — uploads keep working in a degraded mode instead of
// failing every request. The effective driver is observable via
// Adapter.Driver, so operators can alert on a configured/effective mismatch.
func New(ctx context.Context, cfg Config, logger *slog.Logger) Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	disk := func() *Disk {
		return NewDisk(cfg.UploadDir, cfg.PublicPrefix, cfg.PublicBaseURL, logger)
	}

	switch cfg.Driver {
	case DriverS3:
		if cfg.S3.Bucket == "" || cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
			logger.Warn("s3 storage not configured, falling back to disk",
				slog.Bool("bucket_set", cfg.S3.Bucket != ""),
				slog.Bool("credentials_set", cfg.S3.AccessKey != "" && cfg.S3.SecretKey != ""),
			)
			return disk()
		}
		a, err := NewS3(ctx, cfg.S3, logger)
		if err != nil {
			logger.Warn("s3 client init failed, falling back to disk",
				slog.String("error", err.Error()),
			)
			return disk()
		}
		logger.Info("storage backend ready", slog.String("driver", string(DriverS3)), slog.String("bucket", cfg.S3.Bucket))
		return a

	case DriverGCS:
		if cfg.GCS.Bucket == "" {
			logger.Warn("gcs storage not configured, falling back to disk")
			return disk()
		}
		a, err := NewGCS(ctx, cfg.GCS, logger)
		if err != nil {
			logger.Warn("gcs client init failed, falling back to disk",
				slog.String("error", err.Error()),
			)
			return disk()
		}
		logger.Info("storage backend ready", slog.String("driver", string(DriverGCS)), slog.String("bucket", cfg.GCS.Bucket))
		return a

	default:
		logger.Info("storage backend ready", slog.String("driver", string(DriverDisk)), slog.String("dir", cfg.UploadDir))
		return disk()
	}
}
