// Package schedule provides domain types for the status polling schedule.
package schedule

import (
	"time"
)

// DefaultMaxAttempts bounds how many times one claim is polled before the
// scheduler gives up and surfaces the claim to an operator.
const DefaultMaxAttempts = 10

// DefaultBackoffBase is the base interval for the error backoff curve.
const DefaultBackoffBase = 30 * time.Second

// BackoffCap is the longest a poll is ever deferred after errors.
const BackoffCap = time.Hour

// Poll is one durable entry in the polling schedule. The schedule is
// persisted beside claims and recovered on startup: a submitted,
// non-terminal claim must always eventually be polled again.
type Poll struct {
	ID          string    `json:"id"`
	ClaimID     string    `json:"claimId"`
	ExternalID  string    `json:"externalId"`
	Rail        string    `json:"rail"`
	OrgID       string    `json:"orgId"`
	NextRunAt   time.Time `json:"nextRunAt"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"maxAttempts"`
	LastError   string    `json:"lastError,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PollID derives the schedule entry id for an external id.
func PollID(externalID string) string {
	return "poll-" + externalID
}

// NewPoll schedules the first status check for a submitted claim. The id
// is derived from the external id so re-registering the same submission
// overwrites rather than duplicates.
func NewPoll(claimID, externalID, rail, orgID string, firstRunAt time.Time) *Poll {
	return &Poll{
		ID:          PollID(externalID),
		ClaimID:     claimID,
		ExternalID:  externalID,
		Rail:        rail,
		OrgID:       orgID,
		NextRunAt:   firstRunAt,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   firstRunAt,
		UpdatedAt:   firstRunAt,
	}
}

// Exhausted returns true once the polling budget is spent.
func (p *Poll) Exhausted() bool {
	return p.Attempts >= p.MaxAttempts
}

// Backoff returns the deferral after the given number of failed attempts:
// base doubled per attempt, capped at BackoffCap. Monotone non-decreasing
// in attempts.
func Backoff(attempts int, base time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if attempts < 0 {
		attempts = 0
	}
	// 2^attempts overflows fast; past the cap exponent the answer is the cap.
	if attempts > 30 {
		return BackoffCap
	}
	d := base << uint(attempts)
	if d > BackoffCap || d < base {
		return BackoffCap
	}
	return d
}
