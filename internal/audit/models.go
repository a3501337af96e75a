package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - call_id is required; every audited action happens to a call.
// - actor capture is best-effort; do not block call transitions on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	// Type indicates the lifecycle category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the user causing the event; "system" transitions
	// (timeouts, lost peers) leave it empty and set Reason instead.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// ShardID records which process observed the event.
	ShardID int `json:"shard_id" db:"shard_id"`

	// ChannelID is the endpoint channel the event originated from, when one exists.
	ChannelID string `json:"channel_id,omitempty" db:"channel_id"`

	// Reason carries the end reason for terminal events (missed, hangup,
	// system - number lost).
	Reason string `json:"reason,omitempty" db:"reason"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallStarted EventType = "call_started"
	EventTypePickedUp    EventType = "call_picked_up"
	EventTypeHoldToggled EventType = "call_hold_toggled"
	EventTypeCallEnded   EventType = "call_ended"
	EventTypeRelayFault  EventType = "relay_fault"
)
