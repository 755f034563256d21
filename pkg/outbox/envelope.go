package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies the cart owner (or creator) that produced the event.
type ActorRef struct {
	OwnerKind string `json:"ownerKind"`
	OwnerID   string `json:"ownerId"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Message is the transport-neutral form of an outbox row handed to a Sink.
type Message struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}
