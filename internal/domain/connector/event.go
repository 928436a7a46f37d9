package connector

import (
	"encoding/json"
	"time"
)

// EventKind classifies what produced a connector event.
type EventKind string

const (
	EventKindSubmit  EventKind = "submit"
	EventKindPoll    EventKind = "poll"
	EventKindWebhook EventKind = "webhook"
)

// Event is one append-only audit record of connector activity. Events are
// never mutated or deleted; their ULID ids sort in creation order.
type Event struct {
	ID        string          `json:"id"`
	ClaimID   string          `json:"claimId"`
	Rail      Rail            `json:"rail"`
	Kind      EventKind       `json:"kind"`
	Status    RailStatus      `json:"status"`
	Message   string          `json:"message,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
