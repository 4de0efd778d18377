package config

import (
	"regexp"
	"testing"
	"time"
)

func TestOriginAllowedString(t *testing.T) {
	c := &Cors{Origin: "https://example.com"}
	if !c.OriginAllowed("https://example.com") {
		t.Fatal("expected exact string match to be allowed")
	}
	if c.OriginAllowed("https://evil.com") {
		t.Fatal("expected non-matching origin to be rejected")
	}
}

func TestOriginAllowedWildcard(t *testing.T) {
	c := &Cors{Origin: "*"}
	if !c.OriginAllowed("https://anything.example") {
		t.Fatal("expected wildcard origin policy to allow any origin")
	}
}

func TestOriginAllowedList(t *testing.T) {
	c := &Cors{Origin: []string{"https://a.example", "https://b.example"}}
	if !c.OriginAllowed("https://b.example") {
		t.Fatal("expected list membership to allow origin")
	}
	if c.OriginAllowed("https://c.example") {
		t.Fatal("expected non-member origin to be rejected")
	}
}

func TestOriginAllowedRegexp(t *testing.T) {
	c := &Cors{Origin: regexp.MustCompile(`^https://.*\.example\.com$`)}
	if !c.OriginAllowed("https://sub.example.com") {
		t.Fatal("expected regexp match to allow origin")
	}
	if c.OriginAllowed("https://sub.other.com") {
		t.Fatal("expected regexp non-match to reject origin")
	}
}

func TestOriginAllowedPredicate(t *testing.T) {
	c := &Cors{Origin: func(origin string) bool { return origin == "https://special.example" }}
	if !c.OriginAllowed("https://special.example") {
		t.Fatal("expected predicate match to allow origin")
	}
	if c.OriginAllowed("https://other.example") {
		t.Fatal("expected predicate non-match to reject origin")
	}
}

func TestAdaptivePollingTimeout(t *testing.T) {
	base := AdaptivePollingTimeout(60*time.Second, 500)
	if base != 60*time.Second {
		t.Fatalf("expected base timeout under 1000 sessions, got %v", base)
	}
	if AdaptivePollingTimeout(60*time.Second, 2000) != 54*time.Second {
		t.Fatal("expected shortened timeout between 1000 and 5000 sessions")
	}
	if AdaptivePollingTimeout(60*time.Second, 8000) != 45*time.Second {
		t.Fatal("expected shortened timeout between 5000 and 10000 sessions")
	}
	if AdaptivePollingTimeout(60*time.Second, 20000) != 30*time.Second {
		t.Fatal("expected most aggressive timeout above 10000 sessions")
	}
}

func TestAllowsTransport(t *testing.T) {
	o := DefaultOptions()
	if !o.AllowsTransport("websocket") || !o.AllowsTransport("polling") {
		t.Fatal("expected default transports to include websocket and polling")
	}
	if o.AllowsTransport("webtransport") {
		t.Fatal("expected unconfigured transport to be rejected")
	}
}
