package shared

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a random UUID string. Used for claims, jobs and remittances.
func NewID() string {
	return uuid.New().String()
}

// NewEventID returns a ULID string for the given timestamp. Event IDs sort
// lexicographically in creation order, which keeps audit queries cheap.
func NewEventID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at.UTC()), rand.Reader).String()
}
