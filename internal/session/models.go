package session

import "time"

// Status is the call lifecycle state. Ended is terminal; every other state
// may transition directly to Ended.
type Status string

const (
	StatusDialing   Status = "dialing"
	StatusRinging   Status = "ringing"
	StatusConnected Status = "connected"
	StatusEnded     Status = "ended"
)

// End reasons recorded on terminal transitions. Explicit hangups record the
// acting user id instead.
const (
	EndReasonMissed     = "missed"
	EndReasonNumberLost = "system - number lost"
	EndReasonForced     = "support - forced"
)

// ActionStamp records who did something and when.
type ActionStamp struct {
	At time.Time `json:"at" db:"at"`
	By string    `json:"by" db:"by"`
}

// Hold is the mutually-exclusive pause flag on a connected call.
// HoldingSide is the endpoint channel that took the hold; only that side
// may release it.
type Hold struct {
	OnHold      bool   `json:"on_hold" db:"on_hold"`
	HoldingSide string `json:"holding_side,omitempty" db:"holding_side"`
}

// Record is the persisted session row: the cross-shard convergence point.
//
// Invariants:
// - PickedUp is set at most once and never cleared before Ended.
// - Ended non-nil implies Active false; the transition is final.
// - Each shard only ever writes values it computed itself; no
//   read-modify-write against fields another shard owns.
type Record struct {
	ID string `json:"id" db:"id"`

	FromNumber string `json:"from_number" db:"from_number"`
	ToNumber   string `json:"to_number" db:"to_number"`

	Started  ActionStamp  `json:"started" db:"started"`
	PickedUp *ActionStamp `json:"picked_up,omitempty" db:"picked_up"`
	Ended    *ActionStamp `json:"ended,omitempty" db:"ended"`

	// EndReason is EndReasonMissed, EndReasonNumberLost, or empty for an
	// explicit hangup (Ended.By carries the user).
	EndReason string `json:"end_reason,omitempty" db:"end_reason"`

	Hold Hold `json:"hold" db:"hold"`

	Active bool `json:"active" db:"active"`
}

// Status derives the lifecycle state from the record fields.
func (r Record) Status() Status {
	switch {
	case r.Ended != nil || !r.Active:
		return StatusEnded
	case r.PickedUp != nil:
		return StatusConnected
	case !r.Started.At.IsZero():
		return StatusRinging
	default:
		return StatusDialing
	}
}

// RelayMapping correlates a source message with its forwarded counterpart.
// Keyed by the source message id; scoped to a call.
type RelayMapping struct {
	CallID             string    `json:"call_id" db:"call_id"`
	OriginalMessageID  string    `json:"original_message_id" db:"original_message_id"`
	ForwardedMessageID string    `json:"forwarded_message_id" db:"forwarded_message_id"`
	Sender             string    `json:"sender" db:"sender"`
	SentAt             time.Time `json:"sent_at" db:"sent_at"`
}
