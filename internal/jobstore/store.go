// Package jobstore defines the Job Store contract the Worker Pool and
// Scheduler depend on, kept separate from its Postgres implementation so
// tests can substitute a fake.
package jobstore

import (
	"context"
	"time"

	"github.com/ignite/adcontrol/internal/domain"
)

// Store persists Jobs and implements the claim/complete/fail lifecycle that
// makes the Worker Pool safe for multiple concurrent worker processes.
type Store interface {
	// Enqueue inserts a new pending Job. If a Job with the same ID already
	// exists, Enqueue is a no-op (idempotent dispatch).
	Enqueue(ctx context.Context, job *domain.Job) error

	// Claim atomically picks up to n pending-and-due Jobs, marking them
	// running and locked by workerID, using FOR UPDATE SKIP LOCKED so
	// concurrent workers never claim the same row.
	Claim(ctx context.Context, workerID string, n int) ([]domain.Job, error)

	// SetProgress updates a running Job's progress (0-100). The Worker Pool
	// itself records start (0) and, on success, completion (100); points in
	// between come from each task and vary by task, so a mid-point (~50) is
	// not guaranteed.
	SetProgress(ctx context.Context, jobID string, progress int) error

	// Complete marks a Job succeeded and stores its result.
	Complete(ctx context.Context, jobID string, result []byte) error

	// Fail marks a Job failed, incrementing its attempt count; if attempts
	// reach MaxAttempts the Job moves to JobDeadLetter instead of JobFailed.
	Fail(ctx context.Context, jobID string, cause error) error

	// ReclaimStale resets jobs stuck in JobRunning past window back to
	// JobPending, for jobs whose worker crashed mid-task.
	ReclaimStale(ctx context.Context, window time.Duration) (int, error)

	// Cleanup deletes completed and dead-lettered Jobs older than retention;
	// failed Jobs are kept.
	Cleanup(ctx context.Context, retention time.Duration) (int, error)

	// Get returns a single Job by ID.
	Get(ctx context.Context, jobID string) (*domain.Job, error)

	// Delete removes a Job row outright, used by the API's job-deletion
	// endpoint rather than the terminal-state Cleanup sweep.
	Delete(ctx context.Context, jobID string) error
}
