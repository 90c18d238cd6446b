package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/adcontrol/internal/domain"
)

// JobRepo implements jobstore.Store against PostgreSQL.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job store.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

func (r *JobRepo) Enqueue(ctx context.Context, job *domain.Job) error {
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 5
	}
	if job.RunAfter.IsZero() {
		job.RunAfter = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, organization_id, type, status, progress, payload, max_attempts, run_after, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 0, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`, job.ID, job.OrganizationID, job.Type, job.Payload, job.MaxAttempts, job.RunAfter)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

func (r *JobRepo) Claim(ctx context.Context, workerID string, n int) ([]domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, organization_id, type, payload, attempts, max_attempts, created_at
		FROM jobs
		WHERE status = 'pending' AND run_after <= NOW()
		ORDER BY run_after
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, n)
	if err != nil {
		return nil, fmt.Errorf("claim: select: %w", err)
	}

	var claimed []domain.Job
	var ids []string
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(&j.ID, &j.OrganizationID, &j.Type, &j.Payload, &j.Attempts, &j.MaxAttempts, &j.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("claim: scan: %w", err)
		}
		claimed = append(claimed, j)
		ids = append(ids, j.ID)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	now := time.Now().UTC()
	for i := range claimed {
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET status = 'running', locked_by = $1, locked_at = $2, updated_at = $2
			WHERE id = $3
		`, workerID, now, claimed[i].ID)
		if err != nil {
			return nil, fmt.Errorf("claim: update: %w", err)
		}
		claimed[i].Status = domain.JobRunning
		claimed[i].LockedBy = workerID
		claimed[i].LockedAt = &now
	}

	return claimed, tx.Commit()
}

func (r *JobRepo) SetProgress(ctx context.Context, jobID string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = $1, updated_at = NOW() WHERE id = $2
	`, progress, jobID)
	if err != nil {
		return fmt.Errorf("set job progress: %w", err)
	}
	return nil
}

func (r *JobRepo) Complete(ctx context.Context, jobID string, result []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', result = $1, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`, result, jobID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (r *JobRepo) Fail(ctx context.Context, jobID string, cause error) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET
			attempts = attempts + 1,
			error = $1,
			status = CASE WHEN attempts + 1 >= max_attempts THEN 'dead_letter' ELSE 'failed' END,
			updated_at = NOW()
		WHERE id = $2
	`, cause.Error(), jobID)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

func (r *JobRepo) ReclaimStale(ctx context.Context, window time.Duration) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', locked_by = NULL, locked_at = NULL, updated_at = NOW()
		WHERE status = 'running' AND locked_at < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(window.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *JobRepo) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed', 'dead_letter') AND COALESCE(completed_at, updated_at) < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(retention.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("cleanup jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Delete removes a Job row outright, independent of its status.
func (r *JobRepo) Delete(ctx context.Context, jobID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *JobRepo) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	j := &domain.Job{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, type, status, progress, payload, COALESCE(result, ''), COALESCE(error, ''),
		       attempts, max_attempts, run_after, created_at, updated_at
		FROM jobs WHERE id = $1
	`, jobID).Scan(&j.ID, &j.OrganizationID, &j.Type, &j.Status, &j.Progress, &j.Payload, &j.Result, &j.Error,
		&j.Attempts, &j.MaxAttempts, &j.RunAfter, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}
