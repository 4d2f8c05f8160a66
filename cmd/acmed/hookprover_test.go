package main

import (
	"testing"

	"github.com/acmed/acmed/hook"
)

func TestTriggerForMapsChallengeTypes(t *testing.T) {
	cases := []struct {
		challengeType string
		clean         bool
		want          hook.TriggerType
	}{
		{"http-01", false, hook.TriggerChallengeHTTP01},
		{"http-01", true, hook.TriggerChallengeHTTP01Clean},
		{"dns-01", false, hook.TriggerChallengeDNS01},
		{"dns-01", true, hook.TriggerChallengeDNS01Clean},
		{"tls-alpn-01", false, hook.TriggerChallengeTLSALPN01},
		{"tls-alpn-01", true, hook.TriggerChallengeTLSALPN01Clean},
	}
	for _, c := range cases {
		got, err := triggerFor(c.challengeType, c.clean)
		if err != nil {
			t.Fatalf("triggerFor(%q, %v): %v", c.challengeType, c.clean, err)
		}
		if got != c.want {
			t.Fatalf("triggerFor(%q, %v) = %q, want %q", c.challengeType, c.clean, got, c.want)
		}
	}
}

func TestTriggerForRejectsUnknownChallengeType(t *testing.T) {
	if _, err := triggerFor("unknown-01", false); err == nil {
		t.Fatalf("expected error for unknown challenge type")
	}
}
