package session

import (
	"context"
	"errors"
	"strings"

	"github.com/lgtm-migrator/dtel/internal/endpoint"
	"github.com/lgtm-migrator/dtel/internal/perms"
	"github.com/lgtm-migrator/dtel/internal/transport"
)

// relay prefixes mapped from resolved permission tiers. Server managers of
// the source guild show the admin prefix unless a support tier outranks it.
var tierPrefixes = map[perms.Level]string{
	perms.LevelDonator:         "💚 ",
	perms.LevelContributor:     "📞 ",
	perms.LevelCustomerSupport: "📞 ",
	perms.LevelManager:         "👷 ",
	perms.LevelMaintainer:      "📱 ",
}

// HandleMessage relays one inbound message to the other side of the call.
// Requires the call to be connected; ringing-phase messages get a notice
// back instead.
func (c *Call) HandleMessage(ctx context.Context, ev MessageEvent) error {
	c.mu.Lock()
	if c.rec.Ended != nil {
		c.mu.Unlock()
		return ErrEnded
	}
	picked := c.rec.PickedUp != nil
	c.mu.Unlock()

	side := c.sideByChannel(ev.ChannelID)
	other := c.otherSideByChannel(ev.ChannelID)
	if side == nil || other == nil {
		return ErrNotFound
	}

	if !picked {
		c.notify(ctx, *side, ErrorEmbed(c.text(*side, "call.errors.notPickedUpYet", nil)))
		return ErrNotPickedUp
	}

	content, extraEmbeds := c.renderRelay(ctx, ev, *side)

	forwardedID, err := c.mgr.deps.Transport.SendMessage(ctx, other.ChannelID, transport.MessageContent{
		Content: content,
		Embeds:  extraEmbeds,
	})
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) || errors.Is(err, transport.ErrForbidden) {
			// The far channel is gone or locked. The call cannot continue.
			c.peerLost(ctx)
			return ErrDeliveryFailed
		}
		c.mgr.deps.Log.Warn("relay delivery failed",
			"call_id", c.rec.ID, "channel_id", other.ChannelID, "err", err)
		return ErrDeliveryFailed
	}

	mapping := RelayMapping{
		CallID:             c.rec.ID,
		OriginalMessageID:  ev.MessageID,
		ForwardedMessageID: forwardedID,
		Sender:             ev.AuthorID,
		SentAt:             c.mgr.deps.Clock(),
	}
	c.mu.Lock()
	c.cache[ev.MessageID] = mapping
	c.mu.Unlock()
	if err := c.mgr.deps.Relays.Create(ctx, mapping); err != nil {
		c.mgr.deps.Log.Error("relay mapping store write failed",
			"call_id", c.rec.ID, "message_id", ev.MessageID, "err", err)
	}
	return nil
}

// renderRelay builds the forwarded text: author tag, tier prefix, content,
// plus image and file notices for attachments.
func (c *Call) renderRelay(ctx context.Context, ev MessageEvent, side endpoint.Endpoint) (string, []transport.Embed) {
	var b strings.Builder

	level, err := c.mgr.deps.Perms.Level(ctx, ev.AuthorID)
	if err != nil {
		c.mgr.deps.Log.Debug("perm resolution failed", "user_id", ev.AuthorID, "err", err)
	}
	if prefix, ok := tierPrefixes[level]; ok {
		b.WriteString(prefix)
	} else if ev.AuthorManagesGuild {
		b.WriteString("💼 ")
	}

	b.WriteString("**")
	b.WriteString(ev.AuthorTag)
	b.WriteString(":** ")

	// Support-line calls disclose the raw message id so agents can act on
	// specific messages.
	if side.Number == c.mgr.deps.Settings.SupportNumber ||
		c.from.Number == c.mgr.deps.Settings.SupportNumber ||
		c.to.Number == c.mgr.deps.Settings.SupportNumber {
		b.WriteString("`")
		b.WriteString(ev.MessageID)
		b.WriteString("` ")
	}

	b.WriteString(ev.Content)

	other := c.otherSideByChannel(side.ChannelID)
	var embeds []transport.Embed
	for _, att := range ev.Attachments {
		if strings.HasPrefix(att.ContentType, "image/") {
			embeds = append(embeds, transport.Embed{
				Color:    colorInfo,
				ImageURL: att.URL,
			})
			continue
		}
		notice := c.text(*other, "relay.fileNotice", map[string]string{"name": att.Name, "url": att.URL})
		embeds = append(embeds, transport.Embed{
			Color:       colorInfo,
			Description: notice,
			FooterText:  c.text(*other, "relay.dontTrustStrangers", nil),
		})
	}
	return b.String(), embeds
}

// HandleMessageUpdate propagates an edit of an already-relayed message.
// Unknown originals are ignored; the cache is the unit of knowledge here.
func (c *Call) HandleMessageUpdate(ctx context.Context, ev MessageEvent) error {
	c.mu.Lock()
	mapping, ok := c.cache[ev.MessageID]
	ended := c.rec.Ended != nil
	c.mu.Unlock()
	if ended {
		return ErrEnded
	}
	if !ok {
		return nil
	}

	side := c.sideByChannel(ev.ChannelID)
	other := c.otherSideByChannel(ev.ChannelID)
	if side == nil || other == nil {
		return ErrNotFound
	}

	content, embeds := c.renderRelay(ctx, ev, *side)

	err := c.mgr.deps.Transport.EditMessage(ctx, other.ChannelID, mapping.ForwardedMessageID, transport.MessageContent{
		Content: content,
		Embeds:  embeds,
	})
	if err == nil {
		return nil
	}

	// The forwarded copy may have been deleted on the far side. Fall back to
	// a fresh send marked as an edit, quoting the old copy if it survives.
	edited := content + c.text(*other, "relay.edited", nil)
	newID, sendErr := c.mgr.deps.Transport.SendMessage(ctx, other.ChannelID, transport.MessageContent{
		Content: edited,
		Embeds:  embeds,
		Reference: &transport.MessageReference{
			MessageID:       mapping.ForwardedMessageID,
			FailIfNotExists: false,
		},
	})
	if sendErr != nil {
		c.mgr.deps.Log.Error("edit propagation failed on both paths",
			"call_id", c.rec.ID, "message_id", ev.MessageID, "err", sendErr)
		_ = c.mgr.deps.Audit.RelayFault(ctx, c.rec.ID, ev.MessageID, sendErr.Error())
		c.peerLost(ctx)
		return ErrDeliveryFailed
	}

	mapping.ForwardedMessageID = newID
	c.mu.Lock()
	c.cache[ev.MessageID] = mapping
	c.mu.Unlock()
	if err := c.mgr.deps.Relays.Create(ctx, mapping); err != nil {
		c.mgr.deps.Log.Error("relay mapping store write failed",
			"call_id", c.rec.ID, "message_id", ev.MessageID, "err", err)
	}
	return nil
}

// HandleMessageDelete propagates a deletion. The mapping is dropped in every
// outcome: once the original is gone there is nothing left to track.
func (c *Call) HandleMessageDelete(ctx context.Context, ev MessageDeleteEvent) error {
	c.mu.Lock()
	mapping, ok := c.cache[ev.MessageID]
	delete(c.cache, ev.MessageID)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	defer func() {
		if err := c.mgr.deps.Relays.Delete(context.Background(), c.rec.ID, ev.MessageID); err != nil {
			c.mgr.deps.Log.Debug("relay mapping store delete failed",
				"call_id", c.rec.ID, "message_id", ev.MessageID, "err", err)
		}
	}()

	other := c.otherSideByChannel(ev.ChannelID)
	if other == nil {
		return ErrNotFound
	}

	err := c.mgr.deps.Transport.DeleteMessage(ctx, other.ChannelID, mapping.ForwardedMessageID)
	if err == nil {
		return nil
	}

	// Deletion can be denied on the far side. Degrade to a notice quoting
	// the surviving copy; if even that fails the deletion stays visible.
	_, sendErr := c.mgr.deps.Transport.SendMessage(ctx, other.ChannelID, transport.MessageContent{
		Content: c.text(*other, "relay.messageDeleted", nil),
		Reference: &transport.MessageReference{
			MessageID:       mapping.ForwardedMessageID,
			FailIfNotExists: false,
		},
	})
	if sendErr != nil {
		c.mgr.deps.Log.Debug("delete notice failed",
			"call_id", c.rec.ID, "message_id", ev.MessageID, "err", sendErr)
	}
	return nil
}

// HandleTyping forwards a typing signal to the other side while connected
// and not on hold. One-shot and best-effort.
func (c *Call) HandleTyping(ctx context.Context, channelID string) {
	c.mu.Lock()
	relayable := c.rec.Ended == nil && c.rec.PickedUp != nil && !c.rec.Hold.OnHold
	c.mu.Unlock()
	if !relayable {
		return
	}
	other := c.otherSideByChannel(channelID)
	if other == nil {
		return
	}
	if err := c.mgr.deps.Transport.PostTyping(ctx, other.ChannelID); err != nil {
		c.mgr.deps.Log.Debug("typing passthrough failed",
			"call_id", c.rec.ID, "channel_id", other.ChannelID, "err", err)
	}
}
