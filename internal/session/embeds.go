package session

import "github.com/lgtm-migrator/dtel/internal/transport"

// Embed accent colors shared across call notices.
const (
	colorInfo       = 0x2196F3
	colorSuccess    = 0x4CAF50
	colorError      = 0xF44336
	colorYellowbook = 0xFDD835
)

// ErrorEmbed renders a standard error notice.
func ErrorEmbed(description string) transport.Embed {
	return transport.Embed{
		Color:       colorError,
		Title:       "❌ Error!",
		Description: description,
	}
}

func infoEmbed(title, description string) transport.Embed {
	return transport.Embed{Color: colorInfo, Title: title, Description: description}
}

func successEmbed(title, description string) transport.Embed {
	return transport.Embed{Color: colorSuccess, Title: title, Description: description}
}
