package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information about call lifecycles.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to callers by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo    Repository
	shardID int
	clock   func() time.Time
}

func NewService(repo Repository, shardID int) *Service {
	return &Service{repo: repo, shardID: shardID, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CallID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ShardID == 0 {
		e.ShardID = s.shardID
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// CallStarted records a successful initiation (notification delivered).
func (s *Service) CallStarted(ctx context.Context, callID, startedBy, fromChannel string) error {
	return s.Append(ctx, Event{
		CallID:      callID,
		Type:        EventTypeCallStarted,
		ActorUserID: startedBy,
		ChannelID:   fromChannel,
		Message:     "notification delivered, ringing",
	})
}

// PickedUp records the ringing-to-connected transition.
func (s *Service) PickedUp(ctx context.Context, callID, pickedUpBy, channelID string) error {
	return s.Append(ctx, Event{
		CallID:      callID,
		Type:        EventTypePickedUp,
		ActorUserID: pickedUpBy,
		ChannelID:   channelID,
	})
}

// HoldToggled records a hold or release and which side did it.
func (s *Service) HoldToggled(ctx context.Context, callID, actorUserID, channelID string, onHold bool) error {
	msg := "hold released"
	if onHold {
		msg = "hold taken"
	}
	return s.Append(ctx, Event{
		CallID:      callID,
		Type:        EventTypeHoldToggled,
		ActorUserID: actorUserID,
		ChannelID:   channelID,
		Message:     msg,
	})
}

// RelayFault records a relay propagation failure that forced intervention.
func (s *Service) RelayFault(ctx context.Context, callID, messageID, detail string) error {
	return s.Append(ctx, Event{
		CallID:  callID,
		Type:    EventTypeRelayFault,
		Message: "relay fault on message " + messageID,
		Reason:  detail,
	})
}

// CallEnded records a terminal transition and its reason.
func (s *Service) CallEnded(ctx context.Context, callID, endedBy, reason string) error {
	return s.Append(ctx, Event{
		CallID:      callID,
		Type:        EventTypeCallEnded,
		ActorUserID: endedBy,
		Reason:      reason,
	})
}
