package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Disk stores files on the local filesystem and serves them via a URL
// prefix. Writes land directly in the final public-serving directory: a
// local write is atomic enough for this system, so there is no
// stage-then-move step.
type Disk struct {
	baseDir      string // filesystem root, e.g. "./uploads"
	publicPrefix string // URL path prefix for served files, e.g. "/uploads"
	baseURL      string // optional absolute base, e.g. "https://cdn.example.com"
	logger       *slog.Logger
}

// NewDisk creates a disk adapter. baseDir is created lazily on first write.
// baseURL may be empty; when set, PublicPath returns absolute URLs.
func NewDisk(baseDir, publicPrefix, baseURL string, logger *slog.Logger) *Disk {
	if logger == nil {
		logger = slog.Default()
	}
	return &Disk{
		baseDir:      baseDir,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger,
	}
}

// BaseDir returns the filesystem root files are written under, for wiring a
// static file server.
func (d *Disk) BaseDir() string { return d.baseDir }

func (d *Disk) Driver() Driver { return DriverDisk }

func (d *Disk) PublicPath(key string) string {
	return d.baseURL + d.publicPrefix + "/" + key
}

// resolveKey inverts PublicPath, tolerating the configured base URL and the
// public prefix in either absolute or rooted form.
func (d *Disk) resolveKey(path string) string {
	if d.baseURL != "" {
		path = strings.TrimPrefix(path, d.baseURL)
	}
	path = strings.TrimPrefix(path, d.publicPrefix+"/")
	return strings.TrimPrefix(path, "/")
}

func (d *Disk) ResolveTargets(refs []Ref) []Descriptor {
	return resolveTargets(d, refs)
}

func (d *Disk) Persist(ctx context.Context, files []Upload, folder string) ([]Descriptor, error) {
	written := make([]string, 0, len(files))
	out := make([]Descriptor, 0, len(files))

	for _, f := range files {
		key := ObjectKey(folder, f.Filename)
		dest := filepath.Join(d.baseDir, filepath.FromSlash(key))

		if err := d.write(dest, f.Body); err != nil {
			d.rollback(written)
			return nil, fmt.Errorf("writing file %s: %w", key, err)
		}

		written = append(written, dest)
		out = append(out, Descriptor{Path: d.PublicPath(key), Key: key})
	}

	return out, nil
}

func (d *Disk) write(dest string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}

// rollback removes files already written in a failing batch. Failures are
// logged; they never mask the original persist error.
func (d *Disk) rollback(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("rollback failed to remove file",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (d *Disk) Remove(_ context.Context, targets []Descriptor) error {
	var errs []error
	for _, t := range targets {
		// Keys come back from caller-supplied paths; a key that escapes
		// baseDir must never reach os.Remove.
		if !filepath.IsLocal(filepath.FromSlash(t.Key)) {
			errs = append(errs, fmt.Errorf("removing file %s: key escapes upload root", t.Key))
			continue
		}
		path := filepath.Join(d.baseDir, filepath.FromSlash(t.Key))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("removing file %s: %w", t.Key, err))
		}
	}
	return errors.Join(errs...)
}
