package session

// MessageEvent is an inbound platform message (create or edit) routed to the
// session layer. Fields are the subset of the platform payload the relay
// needs; everything else stays at the gateway.
type MessageEvent struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`

	AuthorID  string `json:"author_id"`
	AuthorTag string `json:"author_tag"`
	AuthorBot bool   `json:"author_bot"`

	// AuthorManagesGuild marks server managers of the source guild; they get
	// the admin relay prefix unless they hold a support tier.
	AuthorManagesGuild bool `json:"author_manages_guild"`

	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment references an uploaded file on the source message.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// MessageDeleteEvent is an inbound deletion notice.
type MessageDeleteEvent struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
}
