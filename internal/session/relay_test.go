package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lgtm-migrator/dtel/internal/perms"
	"github.com/lgtm-migrator/dtel/internal/transport"
)

func callerMessage(id, content string) MessageEvent {
	return MessageEvent{
		MessageID: id,
		ChannelID: callerChannel,
		AuthorID:  "user-from",
		AuthorTag: "caller#1",
		Content:   content,
	}
}

// forwarded returns the relayed copy of a source message.
func forwarded(t *testing.T, f *fixture, c *Call, originalID string) transport.Message {
	t.Helper()
	mappings, err := f.relays.ByCall(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("ByCall() error = %v", err)
	}
	for _, m := range mappings {
		if m.OriginalMessageID == originalID {
			msg, ok := f.tp.Get(m.ForwardedMessageID)
			if !ok {
				t.Fatalf("forwarded message %s not found", m.ForwardedMessageID)
			}
			return msg
		}
	}
	t.Fatalf("no mapping for message %s", originalID)
	return transport.Message{}
}

func TestRelay_BeforePickupRejects(t *testing.T) {
	f := newFixture(t)
	f.dial(t)

	err := f.mgr.HandleMessageCreate(context.Background(), callerMessage("orig-1", "hello?"))
	if !errors.Is(err, ErrNotPickedUp) {
		t.Fatalf("HandleMessageCreate() error = %v, want %v", err, ErrNotPickedUp)
	}

	sent := f.tp.Sent(callerChannel)
	if desc := sent[len(sent)-1].Embeds[0].Description; !strings.Contains(desc, "hasn't been picked up") {
		t.Errorf("sender notice = %q", desc)
	}
	if len(f.tp.Sent(calleeChannel)) != 1 { // only the incoming-call notification
		t.Error("ringing-phase message leaked to the other side")
	}
}

func TestRelay_RoundTrip(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)
	ctx := context.Background()

	if err := f.mgr.HandleMessageCreate(ctx, callerMessage("orig-1", "hello!")); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}

	msg := forwarded(t, f, c, "orig-1")
	if msg.ChannelID != calleeChannel {
		t.Errorf("forwarded to %q, want %q", msg.ChannelID, calleeChannel)
	}
	if want := "**caller#1:** hello!"; msg.Content != want {
		t.Errorf("forwarded content = %q, want %q", msg.Content, want)
	}
}

func TestRelay_BotMessagesIgnored(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)

	ev := callerMessage("orig-1", "beep")
	ev.AuthorBot = true
	if err := f.mgr.HandleMessageCreate(context.Background(), ev); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}
	mappings, _ := f.relays.ByCall(context.Background(), c.ID())
	if len(mappings) != 0 {
		t.Error("bot message was relayed")
	}
}

func TestRelay_TierPrefix(t *testing.T) {
	f := newFixture(t)
	f.levels["user-from"] = perms.LevelDonator
	c, _ := f.connect(t)

	if err := f.mgr.HandleMessageCreate(context.Background(), callerMessage("orig-1", "hi")); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}
	msg := forwarded(t, f, c, "orig-1")
	if !strings.HasPrefix(msg.Content, "💚 ") {
		t.Errorf("forwarded content = %q, want donator prefix", msg.Content)
	}
}

func TestRelay_GuildManagerPrefix(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)

	ev := callerMessage("orig-1", "hi")
	ev.AuthorManagesGuild = true
	if err := f.mgr.HandleMessageCreate(context.Background(), ev); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}
	msg := forwarded(t, f, c, "orig-1")
	if !strings.HasPrefix(msg.Content, "💼 ") {
		t.Errorf("forwarded content = %q, want manager prefix", msg.Content)
	}
}

func TestRelay_AttachmentsBecomeEmbeds(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)

	ev := callerMessage("orig-1", "look at this")
	ev.Attachments = []Attachment{
		{Name: "cat.png", URL: "https://cdn.example/cat.png", ContentType: "image/png"},
		{Name: "doc.pdf", URL: "https://cdn.example/doc.pdf", ContentType: "application/pdf"},
	}
	if err := f.mgr.HandleMessageCreate(context.Background(), ev); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}

	msg := forwarded(t, f, c, "orig-1")
	if len(msg.Embeds) != 2 {
		t.Fatalf("got %d embeds, want 2", len(msg.Embeds))
	}
	if msg.Embeds[0].ImageURL != "https://cdn.example/cat.png" {
		t.Errorf("image embed = %+v", msg.Embeds[0])
	}
	if !strings.Contains(msg.Embeds[1].Description, "doc.pdf") {
		t.Errorf("file notice = %+v", msg.Embeds[1])
	}
}

func TestRelay_EditPropagates(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)
	ctx := context.Background()

	if err := f.mgr.HandleMessageCreate(ctx, callerMessage("orig-1", "helo")); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}
	if err := f.mgr.HandleMessageUpdate(ctx, callerMessage("orig-1", "hello")); err != nil {
		t.Fatalf("HandleMessageUpdate() error = %v", err)
	}

	msg := forwarded(t, f, c, "orig-1")
	if want := "**caller#1:** hello"; msg.Content != want {
		t.Errorf("edited content = %q, want %q", msg.Content, want)
	}
}

func TestRelay_EditOfUnknownMessageIgnored(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	before := len(f.tp.Sent(calleeChannel))
	if err := f.mgr.HandleMessageUpdate(context.Background(), callerMessage("never-relayed", "x")); err != nil {
		t.Fatalf("HandleMessageUpdate() error = %v", err)
	}
	if len(f.tp.Sent(calleeChannel)) != before {
		t.Error("unknown edit produced output")
	}
}

func TestRelay_EditFallsBackWhenForwardedCopyGone(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)
	ctx := context.Background()

	if err := f.mgr.HandleMessageCreate(ctx, callerMessage("orig-1", "helo")); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}
	old := forwarded(t, f, c, "orig-1")
	f.tp.DropMessage(old.ID)

	if err := f.mgr.HandleMessageUpdate(ctx, callerMessage("orig-1", "hello")); err != nil {
		t.Fatalf("HandleMessageUpdate() error = %v", err)
	}

	msg := forwarded(t, f, c, "orig-1")
	if msg.ID == old.ID {
		t.Fatal("mapping still points at the deleted copy")
	}
	if want := "**caller#1:** hello (edited)"; msg.Content != want {
		t.Errorf("fallback content = %q, want %q", msg.Content, want)
	}
}

func TestRelay_DeletePropagates(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)
	ctx := context.Background()

	if err := f.mgr.HandleMessageCreate(ctx, callerMessage("orig-1", "oops")); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}
	old := forwarded(t, f, c, "orig-1")

	err := f.mgr.HandleMessageDelete(ctx, MessageDeleteEvent{MessageID: "orig-1", ChannelID: callerChannel})
	if err != nil {
		t.Fatalf("HandleMessageDelete() error = %v", err)
	}

	if _, ok := f.tp.Get(old.ID); ok {
		t.Error("forwarded copy survived the deletion")
	}
	mappings, _ := f.relays.ByCall(ctx, c.ID())
	if len(mappings) != 0 {
		t.Errorf("mapping survived the deletion: %+v", mappings)
	}
}

func TestRelay_DeleteDeniedDegradesToNotice(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)
	ctx := context.Background()

	if err := f.mgr.HandleMessageCreate(ctx, callerMessage("orig-1", "oops")); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}
	old := forwarded(t, f, c, "orig-1")
	f.tp.FailDelete[old.ID] = transport.ErrForbidden

	err := f.mgr.HandleMessageDelete(ctx, MessageDeleteEvent{MessageID: "orig-1", ChannelID: callerChannel})
	if err != nil {
		t.Fatalf("HandleMessageDelete() error = %v", err)
	}

	sent := f.tp.Sent(calleeChannel)
	if got := sent[len(sent)-1].Content; !strings.Contains(got, "deleted on the other side") {
		t.Errorf("deletion notice = %q", got)
	}
	mappings, _ := f.relays.ByCall(ctx, c.ID())
	if len(mappings) != 0 {
		t.Error("mapping survived despite the deletion event")
	}
}

func TestRelay_DeadChannelEndsCall(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)
	ctx := context.Background()
	f.tp.FailSend[calleeChannel] = transport.ErrNotFound

	err := f.mgr.HandleMessageCreate(ctx, callerMessage("orig-1", "anyone there?"))
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("HandleMessageCreate() error = %v, want %v", err, ErrDeliveryFailed)
	}

	rec, _ := f.repo.ByID(ctx, c.ID())
	if rec.Status() != StatusEnded || rec.EndReason != EndReasonNumberLost {
		t.Fatalf("record after dead channel = %+v", rec)
	}
	if f.mgr.ByID(c.ID()) != nil {
		t.Error("dead-channel call still registered")
	}
}

func TestRelay_SupportLineDisclosesMessageID(t *testing.T) {
	f := newFixture(t)
	c, err := f.mgr.Initiate(context.Background(), InitiateRequest{
		FromNumber: callerNumber, ToRaw: supportNumber, StartedBy: "user-from",
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	notifID := f.tp.Sent("chan-support")[0].ID
	if err := c.Pickup(context.Background(), "agent", notifID); err != nil {
		t.Fatalf("Pickup() error = %v", err)
	}

	if err := f.mgr.HandleMessageCreate(context.Background(), callerMessage("orig-42", "I need help")); err != nil {
		t.Fatalf("HandleMessageCreate() error = %v", err)
	}
	msg := forwarded(t, f, c, "orig-42")
	if !strings.Contains(msg.Content, "`orig-42`") {
		t.Errorf("support relay = %q, want raw message id", msg.Content)
	}
}

func TestTyping_PassthroughSuppressedOnHold(t *testing.T) {
	f := newFixture(t)
	c, _ := f.connect(t)
	ctx := context.Background()

	f.mgr.HandleTyping(ctx, callerChannel)
	if got := f.tp.TypingCount(calleeChannel); got != 1 {
		t.Fatalf("TypingCount() = %d, want 1", got)
	}

	if _, err := c.ToggleHold(ctx, "user-from", callerChannel); err != nil {
		t.Fatalf("ToggleHold() error = %v", err)
	}
	f.mgr.HandleTyping(ctx, callerChannel)
	if got := f.tp.TypingCount(calleeChannel); got != 1 {
		t.Errorf("TypingCount() = %d after hold, want still 1", got)
	}
}

func TestTyping_NotRelayedWhileRinging(t *testing.T) {
	f := newFixture(t)
	f.dial(t)

	f.mgr.HandleTyping(context.Background(), callerChannel)
	if got := f.tp.TypingCount(calleeChannel); got != 0 {
		t.Errorf("TypingCount() = %d while ringing, want 0", got)
	}
}
