package i18n

import "testing"

func TestText_SubstitutesParams(t *testing.T) {
	c := NewCatalog()
	got := c.Text("en-US", "call.incomingCall.description", map[string]string{
		"number": "01161101167",
		"callID": "abc",
	})
	if got == "call.incomingCall.description" {
		t.Fatalf("key not found")
	}
	if want := "Incoming call from `01161101167`!\nCall ID: `abc`"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestText_FallsBackToEnUS(t *testing.T) {
	c := NewCatalog()
	if got := c.Text("de", "call.pickup", nil); got != "Pickup" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestText_MissingKeyRendersKey(t *testing.T) {
	c := NewCatalog()
	if got := c.Text("en-US", "no.such.key", nil); got != "no.such.key" {
		t.Fatalf("got %q", got)
	}
}

func TestMerge_OverlaysLocale(t *testing.T) {
	c := NewCatalog()
	c.Merge("fr", map[string]string{"call.pickup": "Décrocher"})
	if got := c.Text("fr", "call.pickup", nil); got != "Décrocher" {
		t.Fatalf("got %q", got)
	}
	// Untranslated keys still fall back.
	if got := c.Text("fr", "call.hangup", nil); got != "Hangup" {
		t.Fatalf("got %q", got)
	}
}
