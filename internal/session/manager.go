package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lgtm-migrator/dtel/internal/audit"
	"github.com/lgtm-migrator/dtel/internal/endpoint"
	"github.com/lgtm-migrator/dtel/internal/i18n"
	"github.com/lgtm-migrator/dtel/internal/mailbox"
	"github.com/lgtm-migrator/dtel/internal/perms"
	"github.com/lgtm-migrator/dtel/internal/shard"
	"github.com/lgtm-migrator/dtel/internal/transport"
)

// Settings are the static call-layer knobs, loaded once at startup.
type Settings struct {
	ShardID       int
	ShardCount    int
	RingTimeout   time.Duration
	SupportNumber string
	SupportRoleID string
	AliasNumbers  map[string]string
}

// Deps wires the manager to everything it talks to. All fields except Guard
// and Clock are required.
type Deps struct {
	Log       *slog.Logger
	Transport transport.Transport
	Sessions  Repository
	Relays    RelayRepository
	Endpoints endpoint.Repository
	Mailboxes mailbox.Repository
	Perms     perms.Resolver
	Texts     i18n.Localizer
	Resolver  *shard.Resolver
	Invoker   shard.Invoker
	Audit     *audit.Service

	Guard DialGuard
	Clock func() time.Time

	Settings Settings
}

// Manager is the per-process call registry. It owns every Call instance on
// this shard and is the only entry point for lifecycle transitions and
// inbound platform events.
type Manager struct {
	deps Deps

	mu        sync.RWMutex
	byID      map[string]*Call
	byChannel map[string]*Call
}

func NewManager(deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Guard == nil {
		deps.Guard = NopDialGuard{}
	}
	return &Manager{
		deps:      deps,
		byID:      map[string]*Call{},
		byChannel: map[string]*Call{},
	}
}

/* ===================== REGISTRY ===================== */

func (m *Manager) register(c *Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.rec.ID] = c
	m.byChannel[c.from.ChannelID] = c
	m.byChannel[c.to.ChannelID] = c
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return
	}
	delete(m.byID, id)
	if m.byChannel[c.from.ChannelID] == c {
		delete(m.byChannel, c.from.ChannelID)
	}
	if m.byChannel[c.to.ChannelID] == c {
		delete(m.byChannel, c.to.ChannelID)
	}
}

// ByID returns the registered call or nil.
func (m *Manager) ByID(id string) *Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// ByChannel returns the call one of whose sides is the given channel, or nil.
func (m *Manager) ByChannel(channelID string) *Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byChannel[channelID]
}

// Count reports the number of registered calls on this shard.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

/* ===================== INITIATION ===================== */

// InitiateRequest describes a dial attempt from an owned endpoint.
type InitiateRequest struct {
	FromNumber string
	ToRaw      string
	StartedBy  string
}

// Initiate runs the full dial sequence: validate, guard, preflight against
// the store, deliver the incoming-call notification, persist, register, and
// hand the ringing side to its owning shard.
//
// Order matters: the notification goes out before the record is written, so
// a persistence failure leaves at worst a dangling notice, never a call the
// callee cannot see.
func (m *Manager) Initiate(ctx context.Context, req InitiateRequest) (*Call, error) {
	now := m.deps.Clock()

	toNumber := endpoint.ResolveAlias(endpoint.ParseNumber(req.ToRaw), m.deps.Settings.AliasNumbers)
	if !endpoint.ValidNumber(toNumber) {
		return nil, ErrNumberInvalid
	}
	if toNumber == req.FromNumber {
		return nil, ErrCallingSelf
	}

	acquired, err := m.deps.Guard.Acquire(ctx, toNumber)
	if err != nil {
		// The guard narrows a race window; a guard outage must not block
		// dialing outright.
		m.deps.Log.Warn("dial guard unavailable", "number", toNumber, "err", err)
	} else if !acquired {
		return nil, ErrCalleeBusy
	} else {
		defer m.deps.Guard.Release(ctx, toNumber)
	}

	pair, err := m.deps.Endpoints.FetchPair(ctx, req.FromNumber, toNumber)
	if err != nil {
		return nil, fmt.Errorf("session: preflight: %w", err)
	}
	switch {
	case pair.From == nil:
		return nil, ErrCallerUnknown
	case pair.From.Expired(now):
		return nil, ErrCallerExpired
	case pair.FromBusy:
		return nil, ErrCallerBusy
	case pair.To == nil:
		return nil, ErrCalleeNotFound
	case pair.To.Expired(now):
		return nil, ErrCalleeExpired
	case pair.To.HasBlocked(req.FromNumber):
		return nil, ErrBlocked
	case pair.ToBusy:
		return nil, ErrCalleeBusy
	}
	// The store lags the registry by one write on this shard; check both.
	if m.ByChannel(pair.From.ChannelID) != nil {
		return nil, ErrCallerBusy
	}
	if m.ByChannel(pair.To.ChannelID) != nil {
		return nil, ErrCalleeBusy
	}

	calleeShard, err := m.deps.Resolver.ForChannel(ctx, pair.To.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumberMissingChannel, err)
	}

	callID := uuid.NewString()

	notifID, err := m.sendIncomingNotification(ctx, callID, *pair.From, *pair.To, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	rec := Record{
		ID:         callID,
		FromNumber: req.FromNumber,
		ToNumber:   toNumber,
		Started:    ActionStamp{At: now, By: req.StartedBy},
		Active:     true,
	}
	if err := m.deps.Sessions.Create(ctx, rec); err != nil {
		_ = m.deps.Transport.DeleteMessage(ctx, pair.To.ChannelID, notifID)
		return nil, fmt.Errorf("session: persist: %w", err)
	}

	c := &Call{
		rec:        rec,
		from:       *pair.From,
		to:         *pair.To,
		primary:    true,
		remote:     !m.deps.Resolver.IsLocal(calleeShard),
		otherShard: calleeShard,
		cache:      map[string]RelayMapping{},
		mgr:        m,
	}
	m.register(c)

	if c.remote {
		payload, _ := json.Marshal(registerPayload{NotificationMessageID: notifID})
		err := m.deps.Invoker.Invoke(ctx, calleeShard, shard.Invocation{
			Procedure: shard.ProcRegisterCall,
			CallID:    callID,
			Payload:   payload,
		})
		if err != nil {
			// The ringing side has no owner; nobody would run the pickup
			// timer or relay the pickup. Tear the call down.
			c.end(ctx, "system", EndReasonNumberLost)
			_ = m.deps.Transport.DeleteMessage(ctx, pair.To.ChannelID, notifID)
			return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
	} else {
		c.armPickupTimer(notifID)
	}

	c.notify(ctx, c.from, infoEmbed(
		c.text(c.from, "call.dialing.title", nil),
		c.text(c.from, "call.dialing.description", map[string]string{
			"number": pair.To.Number,
			"callID": callID,
		})))

	_ = m.deps.Audit.CallStarted(ctx, callID, req.StartedBy, pair.From.ChannelID)
	return c, nil
}

func (m *Manager) sendIncomingNotification(ctx context.Context, callID string, from, to endpoint.Endpoint, now time.Time) (string, error) {
	embed := transport.Embed{
		Color: colorYellowbook,
		Title: m.deps.Texts.Text(to.Locale, "call.incomingCall.title", nil),
		Description: m.deps.Texts.Text(to.Locale, "call.incomingCall.description", map[string]string{
			"number": from.CallerDisplay(now),
			"callID": callID,
		}),
	}
	return m.deps.Transport.SendMessage(ctx, to.ChannelID, transport.MessageContent{
		Embeds: []transport.Embed{embed},
		Components: []transport.Component{
			{
				CustomID: "call-pickup-" + callID,
				Label:    m.deps.Texts.Text(to.Locale, "call.pickup", nil),
				Emoji:    "📞",
				Style:    transport.ComponentStylePrimary,
			},
			{
				CustomID: "call-hangup-" + callID,
				Label:    m.deps.Texts.Text(to.Locale, "call.hangup", nil),
				Emoji:    "☎️",
				Style:    transport.ComponentStyleSecondary,
			},
		},
	})
}

/* ===================== PEER REGISTRATION & RECOVERY ===================== */

type registerPayload struct {
	NotificationMessageID string `json:"notification_message_id"`
}

// LoadByID rebuilds a call from the store and registers it. Used when a peer
// shard originates a call with a ringing side here, and on recovery reads.
//
// fromShard is the originating peer; notifMessageID is the incoming-call
// notice whose controls the pickup flow strips.
func (m *Manager) LoadByID(ctx context.Context, callID string, fromShard int, notifMessageID string) (*Call, error) {
	if existing := m.ByID(callID); existing != nil {
		return existing, nil
	}

	rec, err := m.deps.Sessions.ByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if rec.Ended != nil || !rec.Active {
		return nil, ErrEnded
	}

	from, err := m.deps.Endpoints.ByNumber(ctx, rec.FromNumber)
	if err != nil {
		return nil, m.prematureEnd(ctx, rec, err)
	}
	to, err := m.deps.Endpoints.ByNumber(ctx, rec.ToNumber)
	if err != nil {
		return nil, m.prematureEnd(ctx, rec, err)
	}

	c := &Call{
		rec:        rec,
		from:       from,
		to:         to,
		primary:    false,
		remote:     !m.deps.Resolver.IsLocal(fromShard),
		otherShard: fromShard,
		cache:      map[string]RelayMapping{},
		mgr:        m,
	}

	mappings, err := m.deps.Relays.ByCall(ctx, callID)
	if err != nil {
		m.deps.Log.Warn("relay mapping load failed", "call_id", callID, "err", err)
	}
	for _, mp := range mappings {
		c.cache[mp.OriginalMessageID] = mp
	}

	m.register(c)

	if rec.PickedUp == nil {
		if owner, err := m.deps.Resolver.ForChannel(ctx, to.ChannelID); err == nil && m.deps.Resolver.IsLocal(owner) {
			c.armPickupTimer(notifMessageID)
		}
	}
	return c, nil
}

// prematureEnd closes a stored call whose endpoint disappeared before this
// shard could register it.
func (m *Manager) prematureEnd(ctx context.Context, rec Record, cause error) error {
	stamp := ActionStamp{At: m.deps.Clock(), By: "system"}
	if err := m.deps.Sessions.End(ctx, rec.ID, stamp, EndReasonNumberLost); err != nil {
		m.deps.Log.Error("premature end store write failed", "call_id", rec.ID, "err", err)
	}
	_ = m.deps.Audit.CallEnded(ctx, rec.ID, "system", EndReasonNumberLost)
	return fmt.Errorf("%w: %v", ErrNumberMissingChannel, cause)
}

/* ===================== INVOCATIONS ===================== */

// HandleInvocation dispatches a peer shard's signal into the local registry.
// Meant to be passed to the invoker's Listen.
func (m *Manager) HandleInvocation(ctx context.Context, inv shard.Invocation) error {
	switch inv.Procedure {
	case shard.ProcRegisterCall:
		var p registerPayload
		if err := json.Unmarshal(inv.Payload, &p); err != nil {
			return fmt.Errorf("session: register payload: %w", err)
		}
		_, err := m.LoadByID(ctx, inv.CallID, inv.FromShard, p.NotificationMessageID)
		return err

	case shard.ProcPropagatePickup:
		c := m.ByID(inv.CallID)
		if c == nil {
			// Not registered here; the store already has the pickup.
			return nil
		}
		var stamp ActionStamp
		if err := json.Unmarshal(inv.Payload, &stamp); err != nil {
			return fmt.Errorf("session: pickup payload: %w", err)
		}
		c.applyPickup(stamp)
		return nil

	case shard.ProcPropagateHold:
		c := m.ByID(inv.CallID)
		if c == nil {
			return nil
		}
		var h Hold
		if err := json.Unmarshal(inv.Payload, &h); err != nil {
			return fmt.Errorf("session: hold payload: %w", err)
		}
		c.applyHold(h)
		return nil

	case shard.ProcEndCall:
		c := m.ByID(inv.CallID)
		if c == nil {
			return nil
		}
		var sig endSignal
		if err := json.Unmarshal(inv.Payload, &sig); err != nil {
			return fmt.Errorf("session: end payload: %w", err)
		}
		c.applyRemoteEnd(ActionStamp{At: m.deps.Clock(), By: sig.EndedBy}, sig.Reason)
		return nil

	default:
		return fmt.Errorf("session: unknown procedure %q", inv.Procedure)
	}
}

/* ===================== EVENT DISPATCH ===================== */

// HandleMessageCreate routes an inbound message to the call owning its
// channel. Channels without a call and bot-authored messages are ignored.
func (m *Manager) HandleMessageCreate(ctx context.Context, ev MessageEvent) error {
	if ev.AuthorBot {
		return nil
	}
	c := m.ByChannel(ev.ChannelID)
	if c == nil {
		return nil
	}
	return c.HandleMessage(ctx, ev)
}

// HandleMessageUpdate routes an edit to the owning call.
func (m *Manager) HandleMessageUpdate(ctx context.Context, ev MessageEvent) error {
	if ev.AuthorBot {
		return nil
	}
	c := m.ByChannel(ev.ChannelID)
	if c == nil {
		return nil
	}
	return c.HandleMessageUpdate(ctx, ev)
}

// HandleMessageDelete routes a deletion to the owning call.
func (m *Manager) HandleMessageDelete(ctx context.Context, ev MessageDeleteEvent) error {
	c := m.ByChannel(ev.ChannelID)
	if c == nil {
		return nil
	}
	return c.HandleMessageDelete(ctx, ev)
}

// HandleTyping forwards a typing signal to the owning call, if any.
func (m *Manager) HandleTyping(ctx context.Context, channelID string) {
	if c := m.ByChannel(channelID); c != nil {
		c.HandleTyping(ctx, channelID)
	}
}
