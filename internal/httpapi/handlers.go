package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lgtm-migrator/dtel/internal/auth"
	"github.com/lgtm-migrator/dtel/internal/endpoint"
	"github.com/lgtm-migrator/dtel/internal/history"
	"github.com/lgtm-migrator/dtel/internal/mailbox"
	"github.com/lgtm-migrator/dtel/internal/session"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Calls     *session.Manager
	History   *history.Service
	Mailboxes *mailbox.Service
	Endpoints endpoint.Repository
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair for a support-team operator.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Gateway events ---
//
// The platform gateway pushes channel activity here, already filtered to
// this shard. Handlers ignore channels without calls so the gateway never
// needs to know which channels are mid-call.

func (h Handlers) MessageCreate(c *gin.Context) {
	var ev session.MessageEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if ev.MessageID == "" || ev.ChannelID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "message_id, channel_id required"})
		return
	}
	h.relayOutcome(c, h.Calls.HandleMessageCreate(c.Request.Context(), ev))
}

func (h Handlers) MessageUpdate(c *gin.Context) {
	var ev session.MessageEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if ev.MessageID == "" || ev.ChannelID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "message_id, channel_id required"})
		return
	}
	h.relayOutcome(c, h.Calls.HandleMessageUpdate(c.Request.Context(), ev))
}

func (h Handlers) MessageDelete(c *gin.Context) {
	var ev session.MessageDeleteEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h.relayOutcome(c, h.Calls.HandleMessageDelete(c.Request.Context(), ev))
}

type typingEvent struct {
	ChannelID string `json:"channel_id"`
}

func (h Handlers) Typing(c *gin.Context) {
	var ev typingEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h.Calls.HandleTyping(c.Request.Context(), ev.ChannelID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) relayOutcome(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, session.ErrNotPickedUp), errors.Is(err, session.ErrEnded):
		// The user-facing notice already went out in-channel.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrDeliveryFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "relay failed"})
	}
}

// --- Commands ---

type commandEvent struct {
	Command   string `json:"command"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Number    string `json:"number,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// Command dispatches slash commands: call, hangup, hold.
func (h Handlers) Command(c *gin.Context) {
	var ev commandEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if ev.ChannelID == "" || ev.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "channel_id, user_id required"})
		return
	}
	ctx := c.Request.Context()

	switch ev.Command {
	case "call":
		from, err := h.Endpoints.ByChannel(ctx, ev.ChannelID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "channel has no number"})
			return
		}
		call, err := h.Calls.Initiate(ctx, session.InitiateRequest{
			FromNumber: from.Number,
			ToRaw:      ev.Number,
			StartedBy:  ev.UserID,
		})
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_key": session.LocaleKey(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"call_id": call.ID()})

	case "hangup":
		call := h.Calls.ByChannel(ev.ChannelID)
		if call == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no call in this channel"})
			return
		}
		if err := call.Hangup(ctx, ev.UserID, ev.ChannelID); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ended"})

	case "hold":
		call := h.Calls.ByChannel(ev.ChannelID)
		if call == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no call in this channel"})
			return
		}
		hold, err := call.ToggleHold(ctx, ev.UserID, ev.ChannelID)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_key": session.LocaleKey(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"on_hold": hold.OnHold})

	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown command"})
	}
}

// --- Interactions ---

type interactionEvent struct {
	CustomID  string `json:"custom_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`

	// MessageID is the message carrying the pressed component.
	MessageID string `json:"message_id,omitempty"`

	// Input carries modal text, e.g. a mailbox message body.
	Input string `json:"input,omitempty"`
}

// Interaction dispatches component presses by custom id prefix.
func (h Handlers) Interaction(c *gin.Context) {
	var ev interactionEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if ev.CustomID == "" || ev.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "custom_id, user_id required"})
		return
	}
	ctx := c.Request.Context()

	switch {
	case strings.HasPrefix(ev.CustomID, "call-pickup-"):
		call := h.Calls.ByID(strings.TrimPrefix(ev.CustomID, "call-pickup-"))
		if call == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		if err := call.Pickup(ctx, ev.UserID, ev.MessageID); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "connected"})

	case strings.HasPrefix(ev.CustomID, "call-hangup-"):
		call := h.Calls.ByID(strings.TrimPrefix(ev.CustomID, "call-hangup-"))
		if call == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		if err := call.Hangup(ctx, ev.UserID, ev.ChannelID); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ended"})

	case strings.HasPrefix(ev.CustomID, "mailbox-send-initiate-"):
		if h.Mailboxes == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "mailbox not configured"})
			return
		}
		number := strings.TrimPrefix(ev.CustomID, "mailbox-send-initiate-")
		msg, err := h.Mailboxes.Leave(ctx, number, ev.UserID, ev.Input)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"message_id": msg.ID})
		case errors.Is(err, mailbox.ErrNotReceiving), errors.Is(err, mailbox.ErrFull):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "mailbox store failed"})
		}

	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown interaction"})
	}
}

// --- Ops API ---

func (h Handlers) GetSummary(c *gin.Context) {
	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from, to must be RFC3339"})
		return
	}
	out, err := h.History.Summary(c.Request.Context(), history.SummaryRequest{
		Range: history.TimeRange{From: from, To: to},
	})
	if err != nil {
		if errors.Is(err, history.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) GetCall(c *gin.Context) {
	detail, err := h.History.Detail(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h Handlers) GetTranscript(c *gin.Context) {
	out, err := h.History.Transcript(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": out})
}

// EndCall force-ends a live call on this shard. RBAC: support team only.
func (h Handlers) EndCall(c *gin.Context) {
	operator, _ := auth.UserID(c.Request.Context())

	call := h.Calls.ByID(c.Param("call_id"))
	if call == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not live on this shard"})
		return
	}
	if err := call.ForceEnd(c.Request.Context(), operator); err != nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}
