// Package worker implements the Worker Pool: a bounded-concurrency executor
// that claims pending Jobs from the Job Store and runs the task registered
// for the Job's kind, reporting progress and a terminal result back onto the
// row. Two maintenance loops (reconcile, cleanup) run alongside the claim
// loop the way the teacher's QueueRecoveryWorker and DataCleanupWorker do.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/jobstore"
	"github.com/ignite/adcontrol/internal/metrics"
	"github.com/ignite/adcontrol/internal/pkg/logger"
)

// TaskFunc executes one Job and returns the bytes to store in its Result
// column. The Pool records progress 0 before the task runs and 100 after it
// succeeds; a task reports any points in between through progress.
type TaskFunc func(ctx context.Context, job *domain.Job, progress func(int)) ([]byte, error)

// Pool claims Jobs from a jobstore.Store and dispatches them by JobType.
type Pool struct {
	store jobstore.Store

	workerID     string
	concurrency  int
	pollInterval time.Duration

	reconcileInterval time.Duration
	staleAfter        time.Duration
	cleanupInterval   time.Duration
	cleanupRetention  time.Duration

	tasks map[domain.JobType]TaskFunc

	// reconcileFn and cleanupFn back the two maintenance loops; both are set
	// by RegisterDefaultTasks and run independently of the job queue, the
	// way the teacher's QueueRecoveryWorker/DataCleanupWorker tickers do.
	reconcileFn func(ctx context.Context) (int, error)
	cleanupFn   func(ctx context.Context) (map[string]int, error)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex

	totalSucceeded int64
	totalFailed    int64
	activeJobs     int64
}

// New creates a Pool with concurrency workers polling every pollInterval.
// staleAfter and cleanupRetention are stored on the Pool, but the
// maintenance loops do not read them: they use the windows their hooks carry
// (RegisterDefaultTasks passes Deps.JobCleanupWindow and Deps.ReportRetention).
func New(store jobstore.Store, concurrency int, pollInterval, staleAfter, cleanupRetention time.Duration) *Pool {
	if concurrency <= 0 {
		concurrency = 8
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Pool{
		store:             store,
		workerID:          fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		concurrency:       concurrency,
		pollInterval:      pollInterval,
		reconcileInterval: 2 * time.Minute,
		staleAfter:        staleAfter,
		cleanupInterval:   1 * time.Hour,
		cleanupRetention:  cleanupRetention,
		tasks:             make(map[domain.JobType]TaskFunc),
	}
}

// RegisterTask binds a TaskFunc to the JobType it handles.
func (p *Pool) RegisterTask(kind domain.JobType, fn TaskFunc) {
	p.tasks[kind] = fn
}

// SetMaintenanceHooks wires the reconcile/cleanup implementations the
// background tickers call. Passing nil for either disables its loop.
func (p *Pool) SetMaintenanceHooks(reconcile func(ctx context.Context) (int, error), cleanup func(ctx context.Context) (map[string]int, error)) {
	p.reconcileFn = reconcile
	p.cleanupFn = cleanup
}

// Start begins the claim-loop workers and the maintenance loops.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	logger.Info("worker: starting pool", "worker_id", p.workerID, "concurrency", p.concurrency)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.claimLoop(i)
	}
	if p.reconcileFn != nil {
		p.wg.Add(1)
		go p.reconcileLoop()
	}
	if p.cleanupFn != nil {
		p.wg.Add(1)
		go p.cleanupLoop()
	}
}

func (p *Pool) reconcileLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			n, err := p.reconcileFn(p.ctx)
			if err != nil {
				logger.Warn("worker: reconcile failed", "error", err.Error())
				continue
			}
			if n > 0 {
				logger.Info("worker: reclaimed stale jobs", "count", n)
			}
		}
	}
}

func (p *Pool) cleanupLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			summary, err := p.cleanupFn(p.ctx)
			if err != nil {
				logger.Warn("worker: cleanup failed", "error", err.Error())
				continue
			}
			logger.Info("worker: cleanup cycle complete", "summary", fmt.Sprintf("%v", summary))
		}
	}
}

// Stop signals every worker and maintenance loop to exit and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	logger.Info("worker: stopped pool", "succeeded", atomic.LoadInt64(&p.totalSucceeded), "failed", atomic.LoadInt64(&p.totalFailed))
}

// Stats reports cumulative outcome counters.
func (p *Pool) Stats() map[string]int64 {
	return map[string]int64{
		"succeeded": atomic.LoadInt64(&p.totalSucceeded),
		"failed":    atomic.LoadInt64(&p.totalFailed),
	}
}

func (p *Pool) claimLoop(n int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		jobs, err := p.store.Claim(p.ctx, p.workerID, 1)
		if err != nil {
			logger.Warn("worker: claim failed", "worker_num", n, "error", err.Error())
			time.Sleep(time.Second)
			continue
		}
		if len(jobs) == 0 {
			time.Sleep(p.pollInterval)
			continue
		}
		for i := range jobs {
			p.runJob(&jobs[i])
		}
	}
}

// runJob dispatches one claimed Job to its registered task and records the
// outcome. A Job already in a terminal state (should not happen post-Claim,
// but kept as a defensive idempotency check) is skipped.
func (p *Pool) runJob(job *domain.Job) {
	if job.IsTerminal() {
		return
	}

	fn, ok := p.tasks[job.Type]
	if !ok {
		p.fail(job, apperr.Internal(fmt.Sprintf("worker: no task registered for kind %q", job.Type), nil), 0)
		return
	}

	metrics.RecordJobClaimed(string(job.Type))
	atomic.AddInt64(&p.activeJobs, 1)
	metrics.SetPoolActiveJobs(int(atomic.LoadInt64(&p.activeJobs)))
	start := time.Now()
	defer func() {
		atomic.AddInt64(&p.activeJobs, -1)
		metrics.SetPoolActiveJobs(int(atomic.LoadInt64(&p.activeJobs)))
	}()

	_ = p.store.SetProgress(p.ctx, job.ID, 0)
	progress := func(pct int) {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		if err := p.store.SetProgress(p.ctx, job.ID, pct); err != nil {
			logger.Warn("worker: set progress failed", "job_id", job.ID, "error", err.Error())
		}
	}

	result, err := fn(p.ctx, job, progress)
	if err != nil {
		p.fail(job, err, time.Since(start))
		return
	}

	progress(100)
	if err := p.store.Complete(p.ctx, job.ID, result); err != nil {
		logger.Warn("worker: mark complete failed", "job_id", job.ID, "error", err.Error())
		return
	}
	atomic.AddInt64(&p.totalSucceeded, 1)
	metrics.RecordJobFinished(string(job.Type), "succeeded", time.Since(start))
}

func (p *Pool) fail(job *domain.Job, cause error, elapsed time.Duration) {
	atomic.AddInt64(&p.totalFailed, 1)
	metrics.RecordJobFinished(string(job.Type), "failed", elapsed)
	msg := cause.Error()
	if isRateLimitedErr(cause) {
		msg = "the ad platform is rate-limiting this request; wait 30-60 minutes before retrying"
	}
	if err := p.store.Fail(p.ctx, job.ID, fmt.Errorf("%s", msg)); err != nil {
		logger.Warn("worker: mark failed failed", "job_id", job.ID, "error", err.Error())
	}
}

func isRateLimitedErr(err error) bool {
	return apperr.KindOf(err) == apperr.KindUpstreamTransient
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
