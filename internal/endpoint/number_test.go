package endpoint

import (
	"testing"
	"time"
)

func TestParseNumber(t *testing.T) {
	cases := map[string]string{
		"011-611-0116  ": "0116110116",
		"(011) 611 0116": "0116110116",
		"*611":           "*611",
		"01161101167":    "01161101167",
		"abc":            "",
	}
	for in, want := range cases {
		if got := ParseNumber(in); got != want {
			t.Fatalf("ParseNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveAlias(t *testing.T) {
	aliases := map[string]string{"*611": "01161101167"}
	if got := ResolveAlias("*611", aliases); got != "01161101167" {
		t.Fatalf("alias not applied, got %q", got)
	}
	if got := ResolveAlias("01100000000", aliases); got != "01100000000" {
		t.Fatalf("non-alias changed, got %q", got)
	}
}

func TestValidNumber(t *testing.T) {
	if !ValidNumber("01161101167") {
		t.Fatalf("expected 11-digit number to be valid")
	}
	if ValidNumber("0116110116") || ValidNumber("*6110116110") {
		t.Fatalf("expected invalid")
	}
}

func TestCallerDisplay(t *testing.T) {
	now := time.Now()
	e := Endpoint{Number: "01161101167"}
	if e.CallerDisplay(now) != "01161101167" {
		t.Fatalf("expected raw number")
	}

	e.VIP = &VIP{Expiry: now.Add(time.Hour), Name: "Support Desk"}
	if e.CallerDisplay(now) != "Support Desk" {
		t.Fatalf("expected VIP name")
	}

	e.VIP = &VIP{Expiry: now.Add(time.Hour), Hidden: true}
	if e.CallerDisplay(now) != "Hidden" {
		t.Fatalf("expected hidden display")
	}

	e.VIP = &VIP{Expiry: now.Add(-time.Hour), Name: "Expired VIP"}
	if e.CallerDisplay(now) != "01161101167" {
		t.Fatalf("expected expired VIP to fall back to number")
	}
}

func TestEndpointBlockedAndExpiry(t *testing.T) {
	now := time.Now()
	e := Endpoint{Number: "01161101167", Blocked: []string{"01100000000"}, Expiry: now.Add(time.Hour)}
	if !e.HasBlocked("01100000000") || e.HasBlocked("01122222222") {
		t.Fatalf("blocklist check wrong")
	}
	if e.Expired(now) {
		t.Fatalf("not expired yet")
	}
	e.Expiry = now.Add(-time.Minute)
	if !e.Expired(now) {
		t.Fatalf("expected expired")
	}
}
