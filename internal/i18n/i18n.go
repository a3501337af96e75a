// Package i18n resolves user-facing text by locale and key.
//
// The call core never reasons about locale content; it passes keys and
// params through. Locales without a translation fall back to en-US.
package i18n

import "strings"

// Localizer renders user-facing text for a locale.
type Localizer interface {
	Text(locale, key string, params map[string]string) string
}

// Catalog is a static, in-process Localizer.
type Catalog struct {
	locales map[string]map[string]string
}

const fallbackLocale = "en-US"

// NewCatalog returns the built-in catalog. Additional locales can be layered
// with Merge before the process starts serving.
func NewCatalog() *Catalog {
	return &Catalog{locales: map[string]map[string]string{
		fallbackLocale: enUS,
	}}
}

// Merge overlays translations for a locale. Unknown keys are accepted so
// locale packs can ship ahead of code.
func (c *Catalog) Merge(locale string, entries map[string]string) {
	m, ok := c.locales[locale]
	if !ok {
		m = map[string]string{}
		c.locales[locale] = m
	}
	for k, v := range entries {
		m[k] = v
	}
}

// Text renders a key for a locale, substituting {param} placeholders.
// A missing key renders as the key itself, which is ugly but diagnosable.
func (c *Catalog) Text(locale, key string, params map[string]string) string {
	tmpl := c.lookup(locale, key)
	if tmpl == "" {
		return key
	}
	if len(params) == 0 {
		return tmpl
	}
	out := tmpl
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func (c *Catalog) lookup(locale, key string) string {
	if m, ok := c.locales[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if locale != fallbackLocale {
		if v, ok := c.locales[fallbackLocale][key]; ok {
			return v
		}
	}
	return ""
}

var enUS = map[string]string{
	"call.incomingCall.title":       "📞 Incoming call",
	"call.incomingCall.description": "Incoming call from `{number}`!\nCall ID: `{callID}`",
	"call.dialing.title":            "☎️ Dialing",
	"call.dialing.description":      "Calling `{number}`...\nCall ID: `{callID}`",
	"call.pickup":                   "Pickup",
	"call.hangup":                   "Hangup",

	"call.pickedUp.toSide":   "Call with `{number}` connected.\nCall ID: `{callID}`",
	"call.pickedUp.fromSide": "`{number}` picked up!\nCall ID: `{callID}`",

	"call.missedCall.toSide":   "You missed a call! Use `/call` to call back.",
	"call.missedCall.fromSide": "The other side didn't pick up in time. Try again later!",
	"call.answeringMachine":    "Answering machine",
	"call.sendMessage":         "Leave a message",

	"call.errors.numberInvalid":         "That number doesn't look right. Numbers have 11 digits.",
	"call.errors.callingSelf":           "You can't call yourself.",
	"call.errors.thisSideExpired":       "Your number has expired.",
	"call.errors.otherSideNotFound":     "That number isn't connected.",
	"call.errors.otherSideExpired":      "The number you are calling has expired.",
	"call.errors.otherSideBlockedYou":   "The other side has blocked you from calling them.",
	"call.errors.otherSideInCall":       "The other side is already in a call.",
	"call.errors.numberMissingChannel":  "The other side's line is no longer reachable.",
	"call.errors.couldntReachOtherSide": "We couldn't reach the other side. Try again later.",
	"call.errors.notPickedUpYet":        "The call hasn't been picked up yet!",

	"hangup.baseEmbed.title":                 "☎️ Call ended",
	"hangup.descriptions.pickedUp.thisSide":  "You hung up. The call lasted {time}.",
	"hangup.descriptions.pickedUp.otherSide": "The other side hung up. The call lasted {time}.",
	"hangup.descriptions.notPickedUp":        "The call was ended before it was picked up.",
	"hangup.systemEnded":                     "The call was ended because the other side's number was lost.",

	"hold.held.title":         "⏳ Call held",
	"hold.resumed.title":      "⏳ Call resumed",
	"hold.held.thisSide":      "You have put the call on hold. Use `/hold` to resume the call.",
	"hold.held.otherSide":     "The other side have put you on hold. Please wait...",
	"hold.resumed.thisSide":   "You have released the hold on this call",
	"hold.resumed.otherSide":  "The other side have ended the hold!",
	"hold.errors.notYourHold": "You can't release the hold if you didn't start it!",

	"relay.fileNotice":         "File: **[{name}]({url})**",
	"relay.dontTrustStrangers": "Don't open files from people you don't trust.",
	"relay.edited":             " (edited)",
	"relay.messageDeleted":     "The message above was deleted on the other side.",
}
