package claim

import "errors"

// Domain errors for claims.
var (
	// ErrNotFound indicates the claim was not found.
	ErrNotFound = errors.New("claim not found")

	// ErrPatientNotFound indicates the patient was not found.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrProviderNotFound indicates the provider was not found.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrVersionConflict indicates a concurrent writer updated the claim first.
	ErrVersionConflict = errors.New("claim version conflict")

	// ErrInvalidTransition indicates the status machine forbids the move.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateSubmission indicates a submission is already in flight.
	ErrDuplicateSubmission = errors.New("submission already in flight for claim")
)
