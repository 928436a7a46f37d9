package connector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
)

// Bundle is everything a rail needs to adjudicate one claim.
type Bundle struct {
	Claim    *claim.Claim
	Patient  *claim.Patient
	Provider *claim.Provider
}

// Connector submits claims to one rail and polls their status.
// Validate never performs I/O, so the same bundle validates identically
// however many times it is checked.
type Connector interface {
	// Rail identifies which network this connector speaks to.
	Rail() Rail

	// Validate checks rail-specific requirements against the bundle.
	// Returns *ValidationError on failure. No I/O.
	Validate(ctx context.Context, b Bundle) error

	// Submit hands the claim to the rail and returns its tracking handle.
	Submit(ctx context.Context, b Bundle) (*SubmissionResult, error)

	// PollStatus fetches the current adjudication status for a previously
	// submitted claim. Returns ErrForeignExternalID when the id was not
	// issued by this rail.
	PollStatus(ctx context.Context, externalID string) (*PollResult, error)
}

// SubmissionResult is the rail's acknowledgment of a submission.
type SubmissionResult struct {
	ExternalID string          `json:"externalId"`
	Status     RailStatus      `json:"status"`
	Message    string          `json:"message,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// PollResult is one status observation from a rail.
type PollResult struct {
	ExternalID string          `json:"externalId"`
	Status     RailStatus      `json:"status"`
	Message    string          `json:"message,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
	Payment    *PaymentInfo    `json:"payment,omitempty"`
}

// PaymentInfo carries remittance details when a rail reports payment.
type PaymentInfo struct {
	Amount          string    `json:"amount"`
	PaymentDate     time.Time `json:"paymentDate"`
	ReferenceNumber string    `json:"referenceNumber,omitempty"`
}

// RailStatus is a status as reported by a rail, before reconciliation
// maps it onto the claim status machine.
type RailStatus string

const (
	RailStatusProcessing    RailStatus = "processing"
	RailStatusPending       RailStatus = "pending"
	RailStatusInfoRequested RailStatus = "infoRequested"
	RailStatusApproved      RailStatus = "approved"
	RailStatusPaid          RailStatus = "paid"
	RailStatusRejected      RailStatus = "rejected"
	RailStatusDenied        RailStatus = "denied"
	RailStatusError         RailStatus = "error"
)

// MapStatus translates a rail status into the canonical claim status.
// Returns false for statuses the hub does not recognize; callers keep the
// claim unchanged and record the raw observation.
func MapStatus(s RailStatus) (claim.Status, bool) {
	switch s {
	case RailStatusProcessing:
		return claim.StatusSubmitted, true
	case RailStatusPending:
		return claim.StatusPending, true
	case RailStatusInfoRequested:
		return claim.StatusInfoRequested, true
	case RailStatusApproved:
		return claim.StatusApproved, true
	case RailStatusPaid:
		return claim.StatusPaid, true
	case RailStatusRejected, RailStatusDenied:
		return claim.StatusDenied, true
	case RailStatusError:
		return claim.StatusError, true
	}
	return "", false
}
