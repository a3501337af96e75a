package transport

import (
	"context"
	"errors"
)

// Transport is the platform-agnostic gateway interface used by business logic.
//
// Rules:
// - No raw gateway HTTP calls outside this package.
// - Channel and message identifiers are opaque strings owned by the platform.
// - Implementations must classify failures with the sentinel errors below so
//   callers can distinguish "gone" from "down".
type Transport interface {
	SendMessage(ctx context.Context, channelID string, content MessageContent) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID string, content MessageContent) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
	PostTyping(ctx context.Context, channelID string) error
	FetchChannel(ctx context.Context, channelID string) (Channel, error)
}

var (
	// ErrUnreachable covers network failures and gateway 5xx responses.
	ErrUnreachable = errors.New("transport: unreachable")
	// ErrForbidden covers permission failures (bot removed, channel locked).
	ErrForbidden = errors.New("transport: forbidden")
	// ErrNotFound covers deleted channels and messages.
	ErrNotFound = errors.New("transport: not found")
)

// MessageContent is the platform-agnostic outbound payload.
type MessageContent struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`

	// Reference quotes another message in the same channel.
	Reference *MessageReference `json:"message_reference,omitempty"`
}

// MessageReference points at a message to quote.
type MessageReference struct {
	MessageID string `json:"message_id"`

	// FailIfNotExists false means the send succeeds even if the referenced
	// message was deleted in the meantime.
	FailIfNotExists bool `json:"fail_if_not_exists"`
}

type Embed struct {
	Color       int          `json:"color,omitempty"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	FooterText  string       `json:"footer_text,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Component is an interactive control attached to a message. Rendering is the
// platform's concern; the core only names controls by custom id.
type Component struct {
	CustomID string         `json:"custom_id"`
	Label    string         `json:"label"`
	Emoji    string         `json:"emoji,omitempty"`
	Style    ComponentStyle `json:"style"`
}

type ComponentStyle string

const (
	ComponentStylePrimary   ComponentStyle = "primary"
	ComponentStyleSecondary ComponentStyle = "secondary"
)

// Message is the subset of a platform message the core reads back.
type Message struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	Content   string  `json:"content"`
	Embeds    []Embed `json:"embeds"`
}

// Channel is the subset of channel metadata the core needs: the parent guild
// id drives shard resolution.
type Channel struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
}
