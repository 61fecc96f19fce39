package oracle

import (
	"context"
	"encoding/json"
	"time"
)

// EventChannel is the pub/sub channel carrying resolution lifecycle events.
const EventChannel = "oracle:events"

// Event names published to the signal bus and notifier.
const (
	EventProposed   = "outcome_proposed"
	EventChallenged = "outcome_challenged"
	EventResolved   = "market_resolved"
	EventAdjudged   = "dispute_adjudicated"
	EventEscalated  = "escalated"
	EventVerified   = "verification_completed"
)

// Event is the wire format for resolution lifecycle events.
type Event struct {
	Type      string         `json:"type"`
	MarketID  string         `json:"market_id"`
	RequestID string         `json:"request_id,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	At        time.Time      `json:"at"`
}

// publish pushes an event to the signal bus. Event delivery is best effort;
// a bus outage must not fail the state transition that triggered it.
func (s *Service) publish(ctx context.Context, ev Event) {
	if s.bus == nil {
		return
	}
	ev.At = s.now().UTC()

	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode event", "type", ev.Type, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, EventChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			"type", ev.Type, "market_id", ev.MarketID, "error", err)
	}
}
