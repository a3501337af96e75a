package endpoint

import "time"

// Endpoint is one addressable side of a call: a number bound to a channel.
//
// Tenancy lives with the owning guild; the locale is denormalized from the
// guild row on fetch so call rendering never needs a second lookup.
//
// An Endpoint is immutable for the duration of a session except for its
// display fields (VIP overrides).
type Endpoint struct {
	Number    string `json:"number" db:"number"`
	ChannelID string `json:"channel_id" db:"channel_id"`
	GuildID   string `json:"guild_id,omitempty" db:"guild_id"`

	// Locale comes from the owning guild; defaults to en-US.
	Locale string `json:"locale" db:"locale"`

	// Expiry is the subscription end; expired numbers cannot place or
	// receive calls.
	Expiry time.Time `json:"expiry" db:"expiry"`

	// Blocked lists peer numbers this endpoint refuses calls from.
	Blocked []string `json:"blocked" db:"blocked"`

	VIP *VIP `json:"vip,omitempty"`
}

// VIP holds optional display overrides for paying numbers.
type VIP struct {
	Expiry time.Time `json:"expiry" db:"vip_expiry"`
	Hidden bool      `json:"hidden" db:"vip_hidden"`
	Name   string    `json:"name,omitempty" db:"vip_name"`
}

// DefaultLocale is applied when the owning guild has none configured.
const DefaultLocale = "en-US"

func (e Endpoint) Expired(now time.Time) bool {
	return !e.Expiry.IsZero() && e.Expiry.Before(now)
}

func (e Endpoint) HasBlocked(number string) bool {
	for _, b := range e.Blocked {
		if b == number {
			return true
		}
	}
	return false
}

// CallerDisplay is the string shown to the callee for an incoming call.
// Unexpired VIP overrides apply; otherwise the raw number is shown.
func (e Endpoint) CallerDisplay(now time.Time) string {
	if e.VIP != nil && e.VIP.Expiry.After(now) {
		if e.VIP.Name != "" {
			return e.VIP.Name
		}
		if e.VIP.Hidden {
			return "Hidden"
		}
	}
	return e.Number
}
