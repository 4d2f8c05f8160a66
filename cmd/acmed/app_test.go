package main

import (
	"encoding/base64"
	"testing"

	"github.com/acmed/acmed/config"
)

func TestTaskNameRoundTrips(t *testing.T) {
	cases := []struct{ name, keyType string }{
		{"example.com", "ecdsa_p256"},
		{"foo.bar", "rsa_2048"},
		{"no-key-type", ""},
	}
	for _, c := range cases {
		name, keyType := splitTaskName(taskName(c.name, c.keyType))
		if name != c.name || keyType != c.keyType {
			t.Fatalf("taskName(%q, %q) round trip = (%q, %q)", c.name, c.keyType, name, keyType)
		}
	}
}

func TestDecodeEABKeyAcceptsBothBase64Variants(t *testing.T) {
	raw := []byte("external-account-mac-key")

	encRawURL := base64.RawURLEncoding.EncodeToString(raw)
	got, err := decodeEABKey(encRawURL)
	if err != nil {
		t.Fatalf("decodeEABKey(raw-url): %v", err)
	}
	if string(got) != string(raw) {
		t.Fatalf("decodeEABKey(raw-url) = %q, want %q", got, raw)
	}

	encStd := base64.StdEncoding.EncodeToString(raw)
	got, err = decodeEABKey(encStd)
	if err != nil {
		t.Fatalf("decodeEABKey(std): %v", err)
	}
	if string(got) != string(raw) {
		t.Fatalf("decodeEABKey(std) = %q, want %q", got, raw)
	}
}

func TestFindCertificateMatchesOnNameAndKeyType(t *testing.T) {
	cfg := &config.Config{
		Certificates: []config.Certificate{
			{Name: "example.com", KeyType: "ecdsa_p256"},
			{Name: "example.com", KeyType: "rsa_2048"},
		},
	}

	got, ok := findCertificate(cfg, "example.com", "rsa_2048")
	if !ok || got.KeyType != "rsa_2048" {
		t.Fatalf("findCertificate did not return the rsa_2048 variant: %+v, %v", got, ok)
	}

	if _, ok := findCertificate(cfg, "example.com", "ed25519"); ok {
		t.Fatalf("findCertificate matched a key type that was never configured")
	}
}

func TestFindEndpointAndAccount(t *testing.T) {
	cfg := &config.Config{
		Endpoints: []config.Endpoint{{Name: "letsencrypt"}},
		Accounts:  []config.Account{{Name: "default"}},
	}

	if _, ok := findEndpoint(cfg, "letsencrypt"); !ok {
		t.Fatalf("findEndpoint did not find configured endpoint")
	}
	if _, ok := findEndpoint(cfg, "missing"); ok {
		t.Fatalf("findEndpoint matched a name that was never configured")
	}
	if _, ok := findAccount(cfg, "default"); !ok {
		t.Fatalf("findAccount did not find configured account")
	}
	if _, ok := findAccount(cfg, "missing"); ok {
		t.Fatalf("findAccount matched a name that was never configured")
	}
}
