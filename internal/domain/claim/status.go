// Package claim provides domain types for insurance claims and their
// submission lifecycle.
package claim

// Status represents the adjudication status of a claim.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSubmitted     Status = "submitted"
	StatusPending       Status = "pending"
	StatusInfoRequested Status = "infoRequested"
	StatusApproved      Status = "approved"
	StatusPaid          Status = "paid"
	StatusDenied        Status = "denied"
	StatusError         Status = "error"
)

// IsTerminal returns true if the status ends the polling lifecycle.
// Approved claims keep polling: payment is still expected to follow.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusDenied || s == StatusError
}

// IsInFlight returns true if the claim has been handed to a rail and a
// final outcome has not arrived yet.
func (s Status) IsInFlight() bool {
	return s == StatusSubmitted || s == StatusPending ||
		s == StatusInfoRequested || s == StatusApproved
}

// Valid returns true if s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusPending, StatusInfoRequested,
		StatusApproved, StatusPaid, StatusDenied, StatusError:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status machine allows moving from s
// to next. Nothing leaves a terminal state, nothing skips submitted, and
// any non-terminal state may fall into error.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusError {
		return true
	}
	switch s {
	case StatusDraft:
		return next == StatusSubmitted
	case StatusSubmitted, StatusPending, StatusInfoRequested:
		return next == StatusPending || next == StatusInfoRequested ||
			next == StatusApproved || next == StatusPaid || next == StatusDenied
	case StatusApproved:
		return next == StatusPaid || next == StatusDenied
	}
	return false
}
