package schedule

import "errors"

// Domain errors for the polling schedule.
var (
	// ErrPollNotFound indicates the schedule entry was not found.
	ErrPollNotFound = errors.New("scheduled poll not found")
)
