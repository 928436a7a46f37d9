// Package store provides the persistence layer of the claims hub. Three
// implementations share one contract: an in-memory store for tests and
// ephemeral runs, SQLite for single-node deployments and Postgres for
// shared ones. Claims, jobs and scheduled polls live in the same store
// family so a restart never loses the polling schedule.
package store

import (
	"context"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/schedule"
)

// ClaimStore persists claims with optimistic concurrency.
type ClaimStore interface {
	CreateClaim(ctx context.Context, c *claim.Claim) error
	GetClaim(ctx context.Context, id string) (*claim.Claim, error)

	// UpdateClaim writes c only if the stored version still equals
	// expectedVersion, otherwise claim.ErrVersionConflict. This is the
	// single-writer guarantee: every mutation path reloads, mutates and
	// compare-and-sets.
	UpdateClaim(ctx context.Context, c *claim.Claim, expectedVersion int) error

	ListClaimsByStatus(ctx context.Context, statuses ...claim.Status) ([]*claim.Claim, error)
}

// PatientStore persists patient reference data.
type PatientStore interface {
	PutPatient(ctx context.Context, p *claim.Patient) error
	GetPatient(ctx context.Context, id string) (*claim.Patient, error)
}

// ProviderStore persists provider reference data.
type ProviderStore interface {
	PutProvider(ctx context.Context, p *claim.Provider) error
	GetProvider(ctx context.Context, id string) (*claim.Provider, error)
}

// ConfigStore persists per-org connector configuration. The hub reads it
// on every resolve; nothing here is cached.
type ConfigStore interface {
	PutConnectorConfig(ctx context.Context, cfg *connector.Config) error
	GetConnectorConfig(ctx context.Context, orgID string, rail connector.Rail) (*connector.Config, error)
	ListConnectorConfigs(ctx context.Context, orgID string) ([]*connector.Config, error)
}

// JobStore persists submission jobs for the durable queue.
type JobStore interface {
	CreateJob(ctx context.Context, j *queue.Job) error
	GetJob(ctx context.Context, id string) (*queue.Job, error)

	// ActiveJobByKey returns a queued or running job carrying the
	// idempotency key, or queue.ErrJobNotFound.
	ActiveJobByKey(ctx context.Context, key string) (*queue.Job, error)

	// LeaseDueJobs atomically claims up to limit due queued jobs: marks
	// them running, bumps attempts and sets the lease expiry. Two workers
	// never lease the same job.
	LeaseDueJobs(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*queue.Job, error)

	UpdateJob(ctx context.Context, j *queue.Job) error

	// RequeueExpiredLeases returns running jobs whose lease lapsed to the
	// queue and reports how many it moved. Re-delivery after a crashed
	// worker is what makes execution at-least-once.
	RequeueExpiredLeases(ctx context.Context, now time.Time) (int, error)

	JobStats(ctx context.Context) (*queue.Stats, error)
}

// PollStore persists the durable polling schedule.
type PollStore interface {
	// UpsertPoll inserts or replaces the entry with the same id.
	// Poll ids derive from external ids, so re-registering a submission
	// overwrites instead of duplicating.
	UpsertPoll(ctx context.Context, p *schedule.Poll) error
	GetPoll(ctx context.Context, id string) (*schedule.Poll, error)
	DuePolls(ctx context.Context, now time.Time, limit int) ([]*schedule.Poll, error)
	UpdatePoll(ctx context.Context, p *schedule.Poll) error
	DeletePoll(ctx context.Context, id string) error
	ListPolls(ctx context.Context) ([]*schedule.Poll, error)
}

// EventStore is the append-only connector event sink. Events are never
// updated or deleted.
type EventStore interface {
	AppendEvent(ctx context.Context, e *connector.Event) error
	ListEventsByClaim(ctx context.Context, claimID string) ([]*connector.Event, error)
	LatestEventByClaim(ctx context.Context, claimID string) (*connector.Event, error)
	ListEvents(ctx context.Context) ([]*connector.Event, error)
}

// RemittanceStore persists reconciled payments.
type RemittanceStore interface {
	AppendRemittance(ctx context.Context, r *claim.Remittance) error
	ListRemittancesByClaim(ctx context.Context, claimID string) ([]*claim.Remittance, error)
	ListRemittances(ctx context.Context) ([]*claim.Remittance, error)
}

// Store aggregates every persistence concern of the hub.
type Store interface {
	ClaimStore
	PatientStore
	ProviderStore
	ConfigStore
	JobStore
	PollStore
	EventStore
	RemittanceStore

	Close() error
}
