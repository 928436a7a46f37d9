package queue

import "errors"

// Domain errors for the job queue.
var (
	// ErrJobNotFound indicates the job was not found.
	ErrJobNotFound = errors.New("job not found")
)
