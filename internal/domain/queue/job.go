// Package queue provides domain types for the durable submission job queue.
package queue

import (
	"time"
)

// JobStatus enumerates the lifecycle states of a submission job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobDead      JobStatus = "dead"
)

// IsTerminal returns true when the job will never run again.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobDead
}

// JobTypeSubmit is the only job type the hub enqueues today.
const JobTypeSubmit = "submit"

// DefaultMaxAttempts bounds how often a failed submission job is retried
// before dead-lettering.
const DefaultMaxAttempts = 3

// Job is one durable unit of submission work. Execution is at least once:
// an expired lease puts the job back in the queue, so handlers must be
// idempotent.
type Job struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	ClaimID        string     `json:"claimId"`
	Rail           string     `json:"rail"`
	OrgID          string     `json:"orgId"`
	Status         JobStatus  `json:"status"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"maxAttempts"`
	NextRunAt      time.Time  `json:"nextRunAt"`
	LastError      string     `json:"lastError,omitempty"`
	IdempotencyKey string     `json:"idempotencyKey"`
	EnqueuedAt     time.Time  `json:"enqueuedAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	LeaseExpiresAt *time.Time `json:"leaseExpiresAt,omitempty"`
}

// NewSubmitJob creates a queued submission job. The idempotency key is the
// claim and rail pair, so re-enqueueing the same submission is detectable.
func NewSubmitJob(id, claimID, rail, orgID string, now time.Time) *Job {
	return &Job{
		ID:             id,
		Type:           JobTypeSubmit,
		ClaimID:        claimID,
		Rail:           rail,
		OrgID:          orgID,
		Status:         JobQueued,
		MaxAttempts:    DefaultMaxAttempts,
		NextRunAt:      now,
		IdempotencyKey: IdempotencyKey(claimID, rail),
		EnqueuedAt:     now,
	}
}

// IdempotencyKey derives the duplicate-detection key for a submission.
func IdempotencyKey(claimID, rail string) string {
	return claimID + ":" + rail
}

// Exhausted returns true once the retry budget is spent.
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

// Stats summarizes queue state for operators.
type Stats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Dead      int `json:"dead"`
}
