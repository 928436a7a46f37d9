// Package queue runs the durable submission job queue. Jobs live in the
// store, workers lease them, and a janitor returns lapsed leases to the
// queue. Execution is at least once; handlers must be idempotent.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	domainQueue "github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/schedule"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/store"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// HandlerFunc executes one leased job.
type HandlerFunc func(ctx context.Context, job *domainQueue.Job) error

// Stores is the slice of the store the runner needs.
type Stores interface {
	store.JobStore
	store.EventStore
}

// Config contains queue runner options.
type Config struct {
	// Workers is the number of concurrent lease loops.
	Workers int

	// PollInterval is how often an idle worker checks for due jobs.
	PollInterval time.Duration

	// LeaseDuration bounds how long a worker may hold a job before the
	// janitor hands it to someone else.
	LeaseDuration time.Duration

	// JanitorInterval is how often expired leases are swept.
	JanitorInterval time.Duration

	// JobTimeout bounds a single handler execution.
	JobTimeout time.Duration

	// BackoffBase is the base delay for retrying a failed job.
	BackoffBase time.Duration

	// BatchSize caps how many jobs one worker leases per wakeup.
	BatchSize int

	// MaxAttempts is the retry budget stamped on new jobs.
	MaxAttempts int
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		PollInterval:    time.Second,
		LeaseDuration:   2 * time.Minute,
		JanitorInterval: 30 * time.Second,
		JobTimeout:      30 * time.Second,
		BackoffBase:     5 * time.Second,
		BatchSize:       4,
		MaxAttempts:     domainQueue.DefaultMaxAttempts,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = d.LeaseDuration
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = d.JanitorInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// Runner owns the worker pool and the janitor.
type Runner struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	stores Stores
	clock  shared.Clock
	config Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner. Start must be called before jobs execute.
func NewRunner(stores Stores, clock shared.Clock, config Config) *Runner {
	if clock == nil {
		clock = shared.RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		handlers: make(map[string]HandlerFunc),
		stores:   stores,
		clock:    clock,
		config:   config.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler binds a job type to its handler. Enqueueing a type with
// no handler dead-letters the job on first lease.
func (r *Runner) RegisterHandler(jobType string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = fn
}

func (r *Runner) handler(jobType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[jobType]
	return fn, ok
}

// Enqueue creates a submission job for the claim and rail, or returns the
// already-active job carrying the same idempotency key. The returned bool
// is true when a new job was created.
func (r *Runner) Enqueue(ctx context.Context, claimID, rail, orgID string) (*domainQueue.Job, bool, error) {
	key := domainQueue.IdempotencyKey(claimID, rail)

	existing, err := r.stores.ActiveJobByKey(ctx, key)
	if err == nil {
		logger.Debug(ctx, "submission already queued", "job_id", existing.ID, "key", key)
		return existing, false, nil
	}
	if !errors.Is(err, domainQueue.ErrJobNotFound) {
		return nil, false, fmt.Errorf("check active jobs: %w", err)
	}

	job := domainQueue.NewSubmitJob(shared.NewID(), claimID, rail, orgID, r.clock.Now())
	job.MaxAttempts = r.config.MaxAttempts
	if err := r.stores.CreateJob(ctx, job); err != nil {
		return nil, false, fmt.Errorf("enqueue job: %w", err)
	}

	logger.Info(ctx, "submission job enqueued", "job_id", job.ID, "claim_id", claimID, "rail", rail)
	return job, true, nil
}

// Stats reports queue counts.
func (r *Runner) Stats(ctx context.Context) (*domainQueue.Stats, error) {
	return r.stores.JobStats(ctx)
}

// Start launches the worker pool and the janitor.
func (r *Runner) Start() {
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.workerLoop(i)
	}
	r.wg.Add(1)
	go r.janitorLoop()

	logger.Info(r.ctx, "job queue started", "workers", r.config.Workers)
}

// Stop drains the pool. In-flight handlers get their context cancelled.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
	logger.Info(context.Background(), "job queue stopped")
}

func (r *Runner) workerLoop(id int) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.drainDue(id)
		}
	}
}

// drainDue leases and runs batches until nothing is due or shutdown.
func (r *Runner) drainDue(workerID int) {
	for {
		if r.ctx.Err() != nil {
			return
		}

		now := r.clock.Now()
		jobs, err := r.stores.LeaseDueJobs(r.ctx, now, now.Add(r.config.LeaseDuration), r.config.BatchSize)
		if err != nil {
			logger.Error(r.ctx, "lease due jobs failed", "worker", workerID, "error", err)
			return
		}
		if len(jobs) == 0 {
			return
		}

		for _, job := range jobs {
			r.process(job)
		}
	}
}

func (r *Runner) process(job *domainQueue.Job) {
	ctx := logger.WithClaim(r.ctx, job.ClaimID, job.Rail)

	fn, ok := r.handler(job.Type)
	if !ok {
		r.deadLetter(ctx, job, fmt.Errorf("no handler registered for job type %q", job.Type))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, r.config.JobTimeout)
	err := fn(jobCtx, job)
	cancel()

	now := r.clock.Now()
	if err == nil {
		job.Status = domainQueue.JobCompleted
		job.LastError = ""
		job.FinishedAt = &now
		job.LeaseExpiresAt = nil
		if uerr := r.stores.UpdateJob(ctx, job); uerr != nil {
			logger.Error(ctx, "ack completed job failed", "job_id", job.ID, "error", uerr)
		}
		logger.Info(ctx, "job completed", "job_id", job.ID, "attempts", job.Attempts)
		return
	}

	job.LastError = err.Error()

	if !connector.IsRetryable(err) {
		job.Status = domainQueue.JobFailed
		job.FinishedAt = &now
		job.LeaseExpiresAt = nil
		if uerr := r.stores.UpdateJob(ctx, job); uerr != nil {
			logger.Error(ctx, "mark job failed failed", "job_id", job.ID, "error", uerr)
		}
		r.appendFailureEvent(ctx, job, "submission rejected: "+err.Error())
		logger.Error(ctx, "job failed permanently", "job_id", job.ID, "error", err)
		return
	}

	if job.Exhausted() {
		r.deadLetter(ctx, job, err)
		return
	}

	// Attempts were already counted at lease time.
	job.Status = domainQueue.JobQueued
	job.NextRunAt = now.Add(schedule.Backoff(job.Attempts, r.config.BackoffBase))
	job.LeaseExpiresAt = nil
	if uerr := r.stores.UpdateJob(ctx, job); uerr != nil {
		logger.Error(ctx, "requeue job failed", "job_id", job.ID, "error", uerr)
		return
	}
	logger.Warn(ctx, "job failed, retrying",
		"job_id", job.ID, "attempts", job.Attempts, "next_run_at", job.NextRunAt, "error", err)
}

// deadLetter parks a job that spent its retry budget. Never silent: a
// connector event and an error log make the stuck claim visible.
func (r *Runner) deadLetter(ctx context.Context, job *domainQueue.Job, cause error) {
	now := r.clock.Now()
	job.Status = domainQueue.JobDead
	job.LastError = cause.Error()
	job.FinishedAt = &now
	job.LeaseExpiresAt = nil
	if err := r.stores.UpdateJob(ctx, job); err != nil {
		logger.Error(ctx, "dead-letter update failed", "job_id", job.ID, "error", err)
	}

	r.appendFailureEvent(ctx, job,
		fmt.Sprintf("submission abandoned after %d attempts: %s", job.Attempts, cause.Error()))
	logger.Error(ctx, "job dead-lettered",
		"job_id", job.ID, "claim_id", job.ClaimID, "attempts", job.Attempts, "error", cause)
}

func (r *Runner) appendFailureEvent(ctx context.Context, job *domainQueue.Job, message string) {
	now := r.clock.Now()
	event := &connector.Event{
		ID:        shared.NewEventID(now),
		ClaimID:   job.ClaimID,
		Rail:      connector.Rail(job.Rail),
		Kind:      connector.EventKindSubmit,
		Status:    connector.RailStatusError,
		Message:   message,
		CreatedAt: now,
	}
	// Audit append must not mask the job outcome.
	if err := r.stores.AppendEvent(ctx, event); err != nil {
		logger.Error(ctx, "append failure event failed", "job_id", job.ID, "error", err)
	}
}

func (r *Runner) janitorLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			n, err := r.stores.RequeueExpiredLeases(r.ctx, r.clock.Now())
			if err != nil {
				logger.Error(r.ctx, "requeue expired leases failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Warn(r.ctx, "requeued jobs with expired leases", "count", n)
			}
		}
	}
}
