package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores files in a Google Cloud Storage bucket.
type GCS struct {
	client     *gcs.Client
	bucket     string
	publicBase string
	logger     *slog.Logger
}

// GCSConfig holds the settings for a Google Cloud Storage connection.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string // optional service-account JSON path; empty for ADC
	PublicBaseURL   string // explicit public base URL override (CDN); empty to derive
}

// NewGCS creates a GCS adapter. The public base URL defaults to the
// storage.googleapis.com form when no override is configured.
func NewGCS(ctx context.Context, cfg GCSConfig, logger *slog.Logger) (*GCS, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	return &GCS{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: gcsPublicBase(cfg),
		logger:     logger,
	}, nil
}

func gcsPublicBase(cfg GCSConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	return "https://storage.googleapis.com/" + cfg.Bucket
}

func (g *GCS) Driver() Driver { return DriverGCS }

func (g *GCS) PublicPath(key string) string {
	return g.publicBase + "/" + key
}

// resolveKey inverts PublicPath, also tolerating the gs:// scheme form.
func (g *GCS) resolveKey(path string) string {
	if strings.HasPrefix(path, g.publicBase+"/") {
		return strings.TrimPrefix(path, g.publicBase+"/")
	}
	if scheme := "gs://" + g.bucket + "/"; strings.HasPrefix(path, scheme) {
		return strings.TrimPrefix(path, scheme)
	}
	return strings.TrimPrefix(path, "/")
}

func (g *GCS) ResolveTargets(refs []Ref) []Descriptor {
	return resolveTargets(g, refs)
}

func (g *GCS) Persist(ctx context.Context, files []Upload, folder string) ([]Descriptor, error) {
	written := make([]string, 0, len(files))
	out := make([]Descriptor, 0, len(files))

	for _, f := range files {
		key := ObjectKey(folder, f.Filename)

		if err := g.writeObject(ctx, key, f); err != nil {
			g.rollback(ctx, written)
			return nil, fmt.Errorf("writing object %s: %w", key, err)
		}

		written = append(written, key)
		out = append(out, Descriptor{Path: g.PublicPath(key), Key: key})
	}

	return out, nil
}

func (g *GCS) writeObject(ctx context.Context, key string, f Upload) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = f.ContentType

	if _, err := io.Copy(w, f.Body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// rollback deletes objects already uploaded in a failing batch. Failures are
// logged; they never mask the original persist error.
func (g *GCS) rollback(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := g.deleteObject(ctx, key); err != nil {
			g.logger.Warn("rollback failed to delete object",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (g *GCS) Remove(ctx context.Context, targets []Descriptor) error {
	var errs []error
	for _, t := range targets {
		if err := g.deleteObject(ctx, t.Key); err != nil {
			errs = append(errs, fmt.Errorf("deleting object %s: %w", t.Key, err))
		}
	}
	return errors.Join(errs...)
}

func (g *GCS) deleteObject(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return err
	}
	return nil
}
