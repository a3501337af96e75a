package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lgtm-migrator/dtel/internal/audit"
	"github.com/lgtm-migrator/dtel/internal/endpoint"
	"github.com/lgtm-migrator/dtel/internal/history"
	"github.com/lgtm-migrator/dtel/internal/i18n"
	"github.com/lgtm-migrator/dtel/internal/mailbox"
	"github.com/lgtm-migrator/dtel/internal/perms"
	"github.com/lgtm-migrator/dtel/internal/session"
	"github.com/lgtm-migrator/dtel/internal/shard"
	"github.com/lgtm-migrator/dtel/internal/transport"
)

type testEnv struct {
	router *gin.Engine
	tp     *transport.Memory
	mgr    *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tp := transport.NewMemory()
	eps := endpoint.NewMemoryRepo()
	eps.Put(endpoint.Endpoint{Number: "01100000001", ChannelID: "chan-a"})
	eps.Put(endpoint.Endpoint{Number: "01100000002", ChannelID: "chan-b"})
	boxes := mailbox.NewMemoryRepo()
	boxes.Put(mailbox.Mailbox{Number: "01100000002", Autoreply: "later", Receiving: true})

	inv := shard.NewMemoryInvoker()
	mgr := session.NewManager(session.Deps{
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Transport: tp,
		Sessions:  session.NewMemoryRepo(),
		Relays:    session.NewMemoryRelayRepo(),
		Endpoints: eps,
		Mailboxes: boxes,
		Perms:     perms.StaticResolver{},
		Texts:     i18n.NewCatalog(),
		Resolver:  shard.NewResolver(0, 1, tp),
		Invoker:   inv,
		Audit:     audit.NewService(audit.NewMemoryRepo(), 0),
		Settings:  session.Settings{ShardCount: 1, RingTimeout: time.Minute},
	})
	inv.Register(0, mgr.HandleInvocation)

	h := Handlers{
		Calls:     mgr,
		History:   history.NewService(history.NewMemoryRepo()),
		Mailboxes: mailbox.NewService(boxes),
		Endpoints: eps,
	}

	r := gin.New()
	r.POST("/events/message", h.MessageCreate)
	r.POST("/events/message-update", h.MessageUpdate)
	r.POST("/events/message-delete", h.MessageDelete)
	r.POST("/events/typing", h.Typing)
	r.POST("/events/command", h.Command)
	r.POST("/events/interaction", h.Interaction)

	return &testEnv{router: r, tp: tp, mgr: mgr}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}

func TestCommand_CallPickupRelay(t *testing.T) {
	e := newTestEnv(t)

	w := e.post(t, "/events/command", gin.H{
		"command": "call", "channel_id": "chan-a", "user_id": "u1", "number": "01100000002",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("call command: status %d body %s", w.Code, w.Body.String())
	}
	var out struct {
		CallID string `json:"call_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.CallID == "" {
		t.Fatalf("call command response: %s", w.Body.String())
	}

	notifID := e.tp.Sent("chan-b")[0].ID
	w = e.post(t, "/events/interaction", gin.H{
		"custom_id": "call-pickup-" + out.CallID, "channel_id": "chan-b",
		"user_id": "u2", "message_id": notifID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("pickup: status %d body %s", w.Code, w.Body.String())
	}

	w = e.post(t, "/events/message", gin.H{
		"message_id": "orig-1", "channel_id": "chan-a",
		"author_id": "u1", "author_tag": "alice#1", "content": "hi",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("relay: status %d body %s", w.Code, w.Body.String())
	}
	msgs := e.tp.Sent("chan-b")
	if got := msgs[len(msgs)-1].Content; got != "**alice#1:** hi" {
		t.Errorf("relayed content = %q", got)
	}
}

func TestCommand_CallRejectionCarriesLocaleKey(t *testing.T) {
	e := newTestEnv(t)

	w := e.post(t, "/events/command", gin.H{
		"command": "call", "channel_id": "chan-a", "user_id": "u1", "number": "123",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", w.Code)
	}
	var out struct {
		ErrorKey string `json:"error_key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.ErrorKey != "call.errors.numberInvalid" {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestCommand_HangupWithoutCall(t *testing.T) {
	e := newTestEnv(t)
	w := e.post(t, "/events/command", gin.H{
		"command": "hangup", "channel_id": "chan-a", "user_id": "u1",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestInteraction_MailboxLeave(t *testing.T) {
	e := newTestEnv(t)

	w := e.post(t, "/events/interaction", gin.H{
		"custom_id": "mailbox-send-initiate-01100000002",
		"user_id":   "u1", "input": "call me back",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
}

func TestInteraction_UnknownCustomID(t *testing.T) {
	e := newTestEnv(t)
	w := e.post(t, "/events/interaction", gin.H{"custom_id": "mystery-button", "user_id": "u1"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}
