package storage

import (
	"context"
	"log/slog"
	"sync"
)

// cleanupJob is one batch of orphaned objects awaiting deletion. done is
// closed once every target has been attempted, success or failure.
type cleanupJob struct {
	targets []Descriptor
	done    chan struct{}
}

// Janitor is the orphan-cleanup queue: a strict-FIFO, in-process queue of
// delete jobs drained by a single worker goroutine, one job at a time.
// Enqueuing never blocks the caller and cleanup failures never propagate
// back into a request path — they are logged and swallowed. Duplicate
// deletes are harmless because Remove treats not-found as success.
type Janitor struct {
	adapter Adapter
	logger  *slog.Logger

	mu     sync.Mutex
	queue  []cleanupJob
	closed bool

	wake    chan struct{}
	stopped chan struct{}
}

// NewJanitor starts the worker goroutine. Call Close to drain and stop it.
func NewJanitor(adapter Adapter, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		adapter: adapter,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go j.run()
	return j
}

// Enqueue schedules best-effort deletion of targets. The returned channel is
// closed once every target in this job has been attempted, which lets tests
// and callers await cleanup without putting it on the request's critical
// path. An empty batch completes immediately.
func (j *Janitor) Enqueue(targets []Descriptor) <-chan struct{} {
	done := make(chan struct{})
	if len(targets) == 0 {
		close(done)
		return done
	}

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		// The worker is gone; attempt the deletes inline so the objects
		// are not silently leaked during shutdown.
		j.process(cleanupJob{targets: targets, done: done})
		return done
	}
	j.queue = append(j.queue, cleanupJob{targets: targets, done: done})
	// The wake send must stay under the mutex: Close only closes wake after
	// it has taken the lock and set closed, so a send here can never hit a
	// closed channel.
	select {
	case j.wake <- struct{}{}:
	default:
	}
	j.mu.Unlock()

	return done
}

// Close drains any queued jobs and stops the worker.
func (j *Janitor) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.mu.Unlock()

	close(j.wake)
	<-j.stopped
}

func (j *Janitor) run() {
	defer close(j.stopped)
	for range j.wake {
		j.drain()
	}
	// Flush jobs enqueued between the last wake and Close.
	j.drain()
}

func (j *Janitor) drain() {
	for {
		j.mu.Lock()
		if len(j.queue) == 0 {
			j.mu.Unlock()
			return
		}
		job := j.queue[0]
		j.queue = j.queue[1:]
		j.mu.Unlock()

		j.process(job)
	}
}

func (j *Janitor) process(job cleanupJob) {
	defer close(job.done)

	// No deadline at this layer; the backend client's own defaults apply.
	if err := j.adapter.Remove(context.Background(), job.targets); err != nil {
		j.logger.Warn("orphan cleanup failed",
			slog.Int("targets", len(job.targets)),
			slog.String("error", err.Error()),
		)
	}
}
