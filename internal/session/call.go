package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lgtm-migrator/dtel/internal/endpoint"
	"github.com/lgtm-migrator/dtel/internal/shard"
	"github.com/lgtm-migrator/dtel/internal/transport"
)

// Call is the in-memory session instance on one shard. Two shards may each
// hold a Call for the same record; the store is the convergence point and
// remote invocations keep the copies close.
//
// Lock discipline: the authoritative mutation for any transition happens
// under mu before the first network call; store writes and notifications
// follow, so local state may run ahead of the store and peers but never
// disagree with what this shard asserted.
type Call struct {
	mu  sync.Mutex
	rec Record

	from endpoint.Endpoint
	to   endpoint.Endpoint

	// primary marks the shard that originated the call.
	primary bool

	// remote/otherShard locate the peer copy. remote false means both
	// endpoints are served by this process and no invocations are needed.
	remote     bool
	otherShard int

	// cache maps source message id to its relay record. Scoped to this
	// process: it holds at minimum every mapping for messages originated on
	// locally-owned channels since process start, or full history after a
	// cold rebuild from the store.
	cache map[string]RelayMapping

	timer *time.Timer

	mgr *Manager
}

func (c *Call) ID() string { return c.rec.ID }

// Snapshot returns a copy of the persisted-shape state.
func (c *Call) Snapshot() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.rec
	if rec.PickedUp != nil {
		p := *rec.PickedUp
		rec.PickedUp = &p
	}
	if rec.Ended != nil {
		e := *rec.Ended
		rec.Ended = &e
	}
	return rec
}

// OtherSideShardID reports the peer shard, 0 when both sides are local.
func (c *Call) OtherSideShardID() int {
	if !c.remote {
		return 0
	}
	return c.otherShard
}

func (c *Call) sideByChannel(channelID string) *endpoint.Endpoint {
	if c.from.ChannelID == channelID {
		return &c.from
	}
	if c.to.ChannelID == channelID {
		return &c.to
	}
	return nil
}

func (c *Call) otherSideByChannel(channelID string) *endpoint.Endpoint {
	if c.from.ChannelID == channelID {
		return &c.to
	}
	if c.to.ChannelID == channelID {
		return &c.from
	}
	return nil
}

// localEndpoint is the side this shard speaks for.
func (c *Call) localEndpoint() endpoint.Endpoint {
	if c.primary {
		return c.from
	}
	return c.to
}

func (c *Call) text(ep endpoint.Endpoint, key string, params map[string]string) string {
	return c.mgr.deps.Texts.Text(ep.Locale, key, params)
}

// elapsed humanizes the time since the call started.
func (c *Call) elapsed() string {
	d := c.mgr.deps.Clock().Sub(c.rec.Started.At)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	default:
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
}

/* ===================== PICKUP ===================== */

// Pickup performs the ringing-to-connected transition. Idempotent: a second
// attempt after the first is a no-op.
//
// notifMessageID is the incoming-call notification in the callee channel;
// its interactive controls are stripped on pickup.
func (c *Call) Pickup(ctx context.Context, userID, notifMessageID string) error {
	now := c.mgr.deps.Clock()

	c.mu.Lock()
	if c.rec.Ended != nil {
		c.mu.Unlock()
		return ErrEnded
	}
	if c.rec.PickedUp != nil {
		c.mu.Unlock()
		return nil
	}
	stamp := ActionStamp{At: now, By: userID}
	c.rec.PickedUp = &stamp
	c.stopTimerLocked()
	c.mu.Unlock()

	// Durability boundary first, then the best-effort peer hint.
	if err := c.mgr.deps.Sessions.SetPickedUp(ctx, c.rec.ID, stamp); err != nil {
		c.mgr.deps.Log.Error("pickup store write failed", "call_id", c.rec.ID, "err", err)
	}

	c.stripNotificationControls(ctx, notifMessageID)

	if c.remote {
		payload, _ := json.Marshal(stamp)
		err := c.mgr.deps.Invoker.Invoke(ctx, c.otherShard, shard.Invocation{
			Procedure: shard.ProcPropagatePickup,
			CallID:    c.rec.ID,
			Payload:   payload,
		})
		if err != nil {
			c.peerLost(ctx)
			return nil
		}
	}

	params := map[string]string{"callID": c.rec.ID, "number": c.from.CallerDisplay(now)}
	c.notify(ctx, c.to, successEmbed("", c.text(c.to, "call.pickedUp.toSide", params)))
	params["number"] = c.to.Number
	c.notify(ctx, c.from, successEmbed("", c.text(c.from, "call.pickedUp.fromSide", params)))

	_ = c.mgr.deps.Audit.PickedUp(ctx, c.rec.ID, userID, c.to.ChannelID)
	return nil
}

// applyPickup installs a pickup propagated from the peer shard. State only,
// no side effects; the peer already handled those.
func (c *Call) applyPickup(stamp ActionStamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec.Ended != nil || c.rec.PickedUp != nil {
		return
	}
	c.rec.PickedUp = &stamp
	c.stopTimerLocked()
}

func (c *Call) stripNotificationControls(ctx context.Context, notifMessageID string) {
	if notifMessageID == "" {
		return
	}
	msg, err := c.mgr.deps.Transport.FetchMessage(ctx, c.to.ChannelID, notifMessageID)
	if err != nil {
		return
	}
	_ = c.mgr.deps.Transport.EditMessage(ctx, c.to.ChannelID, notifMessageID, transport.MessageContent{
		Content: msg.Content,
		Embeds:  msg.Embeds,
	})
}

/* ===================== HOLD ===================== */

// ToggleHold takes or releases the hold from the given channel. Release is
// only permitted by the side that took the hold.
//
// Hold does not suppress message relay; it pauses the conversation by
// agreement and stops typing passthrough. Enforcement at the relay layer is
// a deliberate non-choice, matching upstream behavior.
func (c *Call) ToggleHold(ctx context.Context, userID, channelID string) (Hold, error) {
	c.mu.Lock()
	if c.rec.Ended != nil {
		c.mu.Unlock()
		return Hold{}, ErrEnded
	}
	if c.rec.PickedUp == nil {
		c.mu.Unlock()
		return Hold{}, ErrNotPickedUp
	}
	if c.rec.Hold.OnHold && c.rec.Hold.HoldingSide != channelID {
		held := c.rec.Hold
		c.mu.Unlock()
		return held, ErrNotYourHold
	}
	var hold Hold
	if c.rec.Hold.OnHold {
		hold = Hold{}
	} else {
		hold = Hold{OnHold: true, HoldingSide: channelID}
	}
	c.rec.Hold = hold
	c.mu.Unlock()

	if err := c.mgr.deps.Sessions.SetHold(ctx, c.rec.ID, hold); err != nil {
		c.mgr.deps.Log.Error("hold store write failed", "call_id", c.rec.ID, "err", err)
	}

	if c.remote {
		payload, _ := json.Marshal(hold)
		err := c.mgr.deps.Invoker.Invoke(ctx, c.otherShard, shard.Invocation{
			Procedure: shard.ProcPropagateHold,
			CallID:    c.rec.ID,
			Payload:   payload,
		})
		if err != nil {
			c.peerLost(ctx)
			return hold, nil
		}
	}

	state := "resumed"
	if hold.OnHold {
		state = "held"
	}
	thisSide := c.sideByChannel(channelID)
	otherSide := c.otherSideByChannel(channelID)
	if thisSide != nil {
		c.notify(ctx, *thisSide, infoEmbed(
			c.text(*thisSide, "hold."+state+".title", nil),
			c.text(*thisSide, "hold."+state+".thisSide", nil)))
	}
	if otherSide != nil {
		c.notify(ctx, *otherSide, infoEmbed(
			c.text(*otherSide, "hold."+state+".title", nil),
			c.text(*otherSide, "hold."+state+".otherSide", nil)))
	}

	_ = c.mgr.deps.Audit.HoldToggled(ctx, c.rec.ID, userID, channelID, hold.OnHold)
	return hold, nil
}

// applyHold installs a hold toggle propagated from the peer shard.
func (c *Call) applyHold(h Hold) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec.Ended != nil {
		return
	}
	c.rec.Hold = h
}

/* ===================== HANGUP & END ===================== */

// Hangup ends the call at a user's request and notifies both sides.
func (c *Call) Hangup(ctx context.Context, userID, channelID string) error {
	c.mu.Lock()
	if c.rec.Ended != nil {
		c.mu.Unlock()
		return ErrEnded
	}
	picked := c.rec.PickedUp != nil
	c.mu.Unlock()

	length := c.elapsed()
	thisSide := c.sideByChannel(channelID)
	otherSide := c.otherSideByChannel(channelID)

	thisKey, otherKey := "hangup.descriptions.notPickedUp", "hangup.descriptions.notPickedUp"
	if picked {
		thisKey = "hangup.descriptions.pickedUp.thisSide"
		otherKey = "hangup.descriptions.pickedUp.otherSide"
	}
	params := map[string]string{"time": length, "callID": c.rec.ID}
	if thisSide != nil {
		c.notify(ctx, *thisSide, infoEmbed(
			c.text(*thisSide, "hangup.baseEmbed.title", params),
			c.text(*thisSide, thisKey, params)))
	}
	if otherSide != nil {
		c.notify(ctx, *otherSide, infoEmbed(
			c.text(*otherSide, "hangup.baseEmbed.title", params),
			c.text(*otherSide, otherKey, params)))
	}

	c.end(ctx, userID, "")
	return nil
}

// ForceEnd terminates a call on a support operator's authority and notifies
// both sides.
func (c *Call) ForceEnd(ctx context.Context, operator string) error {
	c.mu.Lock()
	if c.rec.Ended != nil {
		c.mu.Unlock()
		return ErrEnded
	}
	c.mu.Unlock()

	c.notify(ctx, c.from, ErrorEmbed(c.text(c.from, "hangup.systemEnded", nil)))
	c.notify(ctx, c.to, ErrorEmbed(c.text(c.to, "hangup.systemEnded", nil)))
	c.end(ctx, operator, EndReasonForced)
	return nil
}

// end performs the terminal transition. Idempotent: ending an ended call is
// a no-op. The store record is retained; only the registry entry goes away.
func (c *Call) end(ctx context.Context, endedBy, reason string) {
	now := c.mgr.deps.Clock()

	c.mu.Lock()
	if c.rec.Ended != nil {
		c.mu.Unlock()
		return
	}
	// The missed-call timer re-checks ringing before its side effects, but a
	// pickup can land in between. The connected call stands; the timer yields.
	if reason == EndReasonMissed && c.rec.PickedUp != nil {
		c.mu.Unlock()
		return
	}
	stamp := ActionStamp{At: now, By: endedBy}
	c.rec.Ended = &stamp
	c.rec.EndReason = reason
	c.rec.Active = false
	c.stopTimerLocked()
	c.mu.Unlock()

	// Store write is best-effort here: the terminal transition must not be
	// blocked by a store outage, and End is idempotent on replay.
	if err := c.mgr.deps.Sessions.End(ctx, c.rec.ID, stamp, reason); err != nil {
		c.mgr.deps.Log.Error("end store write failed", "call_id", c.rec.ID, "err", err)
	}

	c.mgr.remove(c.rec.ID)

	if c.remote {
		payload, _ := json.Marshal(endSignal{EndedBy: endedBy, Reason: reason})
		_ = c.mgr.deps.Invoker.Invoke(ctx, c.otherShard, shard.Invocation{
			Procedure: shard.ProcEndCall,
			CallID:    c.rec.ID,
			Payload:   payload,
		})
	}

	_ = c.mgr.deps.Audit.CallEnded(ctx, c.rec.ID, endedBy, reason)
}

type endSignal struct {
	EndedBy string `json:"ended_by"`
	Reason  string `json:"reason,omitempty"`
}

// applyRemoteEnd drops this shard's copy after the peer ended the call.
// The peer owns the store write.
func (c *Call) applyRemoteEnd(stamp ActionStamp, reason string) {
	c.mu.Lock()
	if c.rec.Ended == nil {
		s := stamp
		c.rec.Ended = &s
		c.rec.EndReason = reason
		c.rec.Active = false
	}
	c.stopTimerLocked()
	c.mu.Unlock()

	c.mgr.remove(c.rec.ID)
}

// peerLost handles a failed remote invocation: the peer shard is down or
// the endpoint is gone. Local cleanup plus a best-effort notice to the
// still-reachable side.
func (c *Call) peerLost(ctx context.Context) {
	local := c.localEndpoint()
	c.end(ctx, "system", EndReasonNumberLost)
	c.notify(ctx, local, ErrorEmbed(c.text(local, "hangup.systemEnded", nil)))
}

/* ===================== PICKUP TIMER ===================== */

// armPickupTimer starts the single-shot ring deadline. Only the shard that
// owns the ringing side's channel arms it; that is where the authoritative
// pickup signal lands without a remote round trip.
func (c *Call) armPickupTimer(notifMessageID string) {
	d := c.mgr.deps.Settings.RingTimeout
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil || c.rec.Ended != nil || c.rec.PickedUp != nil {
		return
	}
	c.timer = time.AfterFunc(d, func() {
		c.missedTimeout(context.Background(), notifMessageID)
	})
}

func (c *Call) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// missedTimeout fires the ringing-to-ended(missed) transition. The timer
// races a just-completed pickup; the re-check makes the duplicate benign.
func (c *Call) missedTimeout(ctx context.Context, notifMessageID string) {
	c.mu.Lock()
	if c.rec.PickedUp != nil || c.rec.Ended != nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Notification side effects are best-effort; none may prevent the
	// terminal transition below.
	c.stripNotificationControls(ctx, notifMessageID)

	c.notify(ctx, c.to, infoEmbed("", c.text(c.to, "call.missedCall.toSide", nil)))

	fromEmbed := infoEmbed("", c.text(c.from, "call.missedCall.fromSide", nil))
	var components []transport.Component
	if box, ok, err := c.mgr.deps.Mailboxes.ByNumber(ctx, c.to.Number); err == nil && ok {
		reply := box.Autoreply
		if box.Full() {
			reply += " (Mailbox full)"
		}
		fromEmbed.Fields = append(fromEmbed.Fields, transport.EmbedField{
			Name:  c.text(c.from, "call.answeringMachine", nil),
			Value: reply,
		})
		if box.CanReceive() {
			components = append(components, transport.Component{
				CustomID: "mailbox-send-initiate-" + c.to.Number,
				Label:    c.text(c.from, "call.sendMessage", nil),
				Emoji:    "📬",
				Style:    transport.ComponentStylePrimary,
			})
		}
	}
	_, _ = c.mgr.deps.Transport.SendMessage(ctx, c.from.ChannelID, transport.MessageContent{
		Embeds:     []transport.Embed{fromEmbed},
		Components: components,
	})

	c.end(ctx, "system", EndReasonMissed)
}

/* ===================== HELPERS ===================== */

// notify sends a single-embed notice to one side, best-effort.
func (c *Call) notify(ctx context.Context, ep endpoint.Endpoint, embed transport.Embed) {
	_, err := c.mgr.deps.Transport.SendMessage(ctx, ep.ChannelID, transport.MessageContent{
		Embeds: []transport.Embed{embed},
	})
	if err != nil {
		c.mgr.deps.Log.Debug("notice delivery failed",
			"call_id", c.rec.ID, "channel_id", ep.ChannelID, "err", err)
	}
}
