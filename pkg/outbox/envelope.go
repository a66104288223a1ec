package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event. Reconciliation and sweep events
// carry the worker name; admin overrides carry the token subject.
type ActorRef struct {
	Subject string `json:"subject"`
	Kind    string `json:"kind,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
