// Package events records connector activity as append-only audit events
// and fans them out to in-process listeners.
package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/store"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// Listener receives every recorded event, in recording order.
type Listener func(e *connector.Event)

// Recorder writes events to the store and notifies listeners. Recording
// never fails the caller: a claim submission must not die because the
// audit trail hiccuped.
type Recorder struct {
	mu        sync.RWMutex
	listeners []Listener

	store store.EventStore
	clock shared.Clock
}

// NewRecorder creates a recorder over the event store.
func NewRecorder(s store.EventStore, clock shared.Clock) *Recorder {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Recorder{store: s, clock: clock}
}

// Subscribe registers a listener. Listeners run synchronously on the
// recording goroutine and must be fast.
func (r *Recorder) Subscribe(fn Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Record appends one audit event and returns it.
func (r *Recorder) Record(ctx context.Context, claimID string, rail connector.Rail, kind connector.EventKind, status connector.RailStatus, message string, detail json.RawMessage) *connector.Event {
	now := r.clock.Now()
	event := &connector.Event{
		ID:        shared.NewEventID(now),
		ClaimID:   claimID,
		Rail:      rail,
		Kind:      kind,
		Status:    status,
		Message:   message,
		Detail:    detail,
		CreatedAt: now,
	}

	if err := r.store.AppendEvent(ctx, event); err != nil {
		logger.Error(ctx, "append audit event failed",
			"claim_id", claimID, "rail", rail.String(), "kind", string(kind), "error", err)
	}

	r.mu.RLock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
	return event
}
