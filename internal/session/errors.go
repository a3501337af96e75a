package session

import "errors"

// Validation errors: reported to the initiator, no state created.
var (
	ErrNumberInvalid  = errors.New("session: number invalid")
	ErrCallingSelf    = errors.New("session: calling self")
	ErrCallerUnknown  = errors.New("session: caller number unknown")
	ErrCallerExpired  = errors.New("session: caller number expired")
	ErrCallerBusy     = errors.New("session: caller already in a call")
	ErrCalleeNotFound = errors.New("session: callee number not found")
	ErrCalleeExpired  = errors.New("session: callee number expired")
	ErrBlocked        = errors.New("session: callee blocked the caller")
	ErrCalleeBusy     = errors.New("session: callee already in a call")
)

// Coordination and delivery errors.
var (
	// ErrNumberMissingChannel means the callee's channel could not be
	// resolved to any shard; the call never became real.
	ErrNumberMissingChannel = errors.New("session: number missing channel")
	// ErrDeliveryFailed means the incoming-call notification could not be
	// delivered; nothing was persisted.
	ErrDeliveryFailed = errors.New("session: notification delivery failed")
)

// Runtime errors.
var (
	ErrNotFound    = errors.New("session: call not found")
	ErrEnded       = errors.New("session: call already ended")
	ErrNotPickedUp = errors.New("session: call not picked up yet")
	ErrNotYourHold = errors.New("session: hold owned by the other side")
)

// LocaleKey maps a validation/coordination error to the i18n key shown to
// the initiator. Unknown errors map to the generic unreachable message.
func LocaleKey(err error) string {
	switch {
	case errors.Is(err, ErrNumberInvalid):
		return "call.errors.numberInvalid"
	case errors.Is(err, ErrCallingSelf):
		return "call.errors.callingSelf"
	case errors.Is(err, ErrCallerUnknown), errors.Is(err, ErrCallerExpired):
		return "call.errors.thisSideExpired"
	case errors.Is(err, ErrCallerBusy):
		return "call.errors.otherSideInCall"
	case errors.Is(err, ErrCalleeNotFound):
		return "call.errors.otherSideNotFound"
	case errors.Is(err, ErrCalleeExpired):
		return "call.errors.otherSideExpired"
	case errors.Is(err, ErrBlocked):
		return "call.errors.otherSideBlockedYou"
	case errors.Is(err, ErrCalleeBusy):
		return "call.errors.otherSideInCall"
	case errors.Is(err, ErrNumberMissingChannel):
		return "call.errors.numberMissingChannel"
	default:
		return "call.errors.couldntReachOtherSide"
	}
}
