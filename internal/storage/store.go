package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// MediaStore is the entry point callers use for media persistence. It owns
// the process-wide adapter selection and the orphan-cleanup janitor, and is
// constructed explicitly and injected — no module globals — so tests can
// swap adapters freely.
type MediaStore struct {
	adapter Adapter
	janitor *Janitor
	logger  *slog.Logger
}

// NewMediaStore wraps an adapter and starts its cleanup janitor.
func NewMediaStore(adapter Adapter, logger *slog.Logger) *MediaStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaStore{
		adapter: adapter,
		janitor: NewJanitor(adapter, logger),
		logger:  logger,
	}
}

// Driver reports the effective backend, after any fail-open fallback.
func (m *MediaStore) Driver() Driver { return m.adapter.Driver() }

// Adapter exposes the underlying adapter, e.g. for wiring a static file
// server when the disk backend is active.
func (m *MediaStore) Adapter() Adapter { return m.adapter }

// PublicPath maps a backend key to its externally servable path.
func (m *MediaStore) PublicPath(key string) string { return m.adapter.PublicPath(key) }

// ResolveTargets normalizes stored paths or path+key pairs to descriptors.
// Callers persist only Path in their own rows; this reconstructs Key for
// later deletion.
func (m *MediaStore) ResolveTargets(refs []Ref) []Descriptor {
	return m.adapter.ResolveTargets(refs)
}

// PersistMedia uploads the batch under folder, all-or-nothing: either every
// file gets a durable descriptor, or any files already written are removed
// before the error is returned. Callers whose own surrounding transaction
// fails after PersistMedia succeeded must hand the returned descriptors to
// EnqueueOrphanCleanup.
func (m *MediaStore) PersistMedia(ctx context.Context, files []Upload, folder string) ([]Descriptor, error) {
	if len(files) == 0 {
		return nil, nil
	}

	descriptors, err := m.adapter.Persist(ctx, files, folder)
	if err != nil {
		return nil, fmt.Errorf("persisting media batch: %w", err)
	}

	m.logger.Info("media persisted",
		slog.Int("count", len(descriptors)),
		slog.String("folder", folder),
		slog.String("driver", string(m.adapter.Driver())),
	)
	return descriptors, nil
}

// Remove synchronously deletes the targets. Not-found is success.
func (m *MediaStore) Remove(ctx context.Context, targets []Descriptor) error {
	return m.adapter.Remove(ctx, targets)
}

// EnqueueOrphanCleanup schedules async best-effort deletion of targets. The
// returned channel closes once every target has been attempted.
func (m *MediaStore) EnqueueOrphanCleanup(targets []Descriptor) <-chan struct{} {
	return m.janitor.Enqueue(targets)
}

// Close drains the cleanup queue and stops its worker.
func (m *MediaStore) Close() {
	m.janitor.Close()
}
