package crypto

import (
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"testing"
	"time"
)

func TestThumbprintStable(t *testing.T) {
	k, err := Generate(KeyP256)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	a, err := Thumbprint(k)
	if err != nil {
		t.Fatalf("Thumbprint: %v", err)
	}
	b, err := Thumbprint(k)
	if err != nil {
		t.Fatalf("Thumbprint: %v", err)
	}
	if a != b {
		t.Fatalf("thumbprint not stable across calls: %q != %q", a, b)
	}

	other, err := Generate(KeyP256)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	c, err := Thumbprint(other)
	if err != nil {
		t.Fatalf("Thumbprint: %v", err)
	}
	if a == c {
		t.Fatalf("distinct keys produced the same thumbprint")
	}
}

func TestSignHMACSelectsRequestedAlgorithm(t *testing.T) {
	accountKey, err := Generate(KeyP256)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	macKey := []byte("external-account-mac-key")

	cases := []struct {
		algorithm string
		wantAlg   string
		sigLen    int
	}{
		{"", "HS256", 32},
		{"HS256", "HS256", 32},
		{"HS384", "HS384", 48},
		{"HS512", "HS512", 64},
	}
	for _, tc := range cases {
		jws, err := SignHMAC(macKey, "kid-1", "https://example.com/acct", tc.algorithm, accountKey)
		if err != nil {
			t.Fatalf("SignHMAC(%q): %v", tc.algorithm, err)
		}
		protectedJSON, err := base64.RawURLEncoding.DecodeString(jws.Protected)
		if err != nil {
			t.Fatalf("decode protected header: %v", err)
		}
		var hdr eabProtectedHeader
		if err := json.Unmarshal(protectedJSON, &hdr); err != nil {
			t.Fatalf("unmarshal protected header: %v", err)
		}
		if hdr.Alg != tc.wantAlg {
			t.Fatalf("SignHMAC(%q): protected header alg = %q, want %q", tc.algorithm, hdr.Alg, tc.wantAlg)
		}
		if hdr.Kid != "kid-1" {
			t.Fatalf("SignHMAC(%q): protected header kid = %q, want kid-1", tc.algorithm, hdr.Kid)
		}
		sig, err := base64.RawURLEncoding.DecodeString(jws.Signature)
		if err != nil {
			t.Fatalf("decode signature: %v", err)
		}
		if len(sig) != tc.sigLen {
			t.Fatalf("SignHMAC(%q): signature length = %d, want %d", tc.algorithm, len(sig), tc.sigLen)
		}
	}
}

func TestBuildCSRRoundTrip(t *testing.T) {
	key, err := Generate(KeyP256)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	ids := []Identifier{
		{Kind: IdentifierDNS, Value: "example.com"},
		{Kind: IdentifierDNS, Value: "example.com"}, // duplicate, should collapse
		{Kind: IdentifierIP, Value: "192.0.2.1"},
	}
	subj := SubjectAttrs{
		CommonName:          "example.com",
		Organization:        "Example Org",
		EmailAddress:        "hostmaster@example.com",
		PostalAddress:       "1 Example Street",
		GivenName:           "Ann",
		Surname:             "Example",
		Initials:            "A.E.",
		Title:               "Administrator",
		GenerationQualifier: "Jr.",
		DNQualifier:         "Q1",
		UserID:              "aexample",
		Name:                "Ann Example",
	}

	der, err := BuildCSR(ids, key, DigestSHA256, subj)
	if err != nil {
		t.Fatalf("BuildCSR: %v", err)
	}

	parsedIDs, parsedAttrs, err := ParseCSR(der)
	if err != nil {
		t.Fatalf("ParseCSR: %v", err)
	}
	if len(parsedIDs) != 2 {
		t.Fatalf("expected 2 deduplicated identifiers, got %d: %+v", len(parsedIDs), parsedIDs)
	}
	if parsedAttrs.CommonName != "example.com" {
		t.Fatalf("CommonName mismatch: %q", parsedAttrs.CommonName)
	}
	if parsedAttrs.Organization != "Example Org" {
		t.Fatalf("Organization mismatch: %q", parsedAttrs.Organization)
	}
	if parsedAttrs != subj {
		t.Fatalf("subject attribute round trip mismatch: got %+v, want %+v", parsedAttrs, subj)
	}
}

func TestSynthesizeTLSALPNCertExpiry(t *testing.T) {
	cert, err := SynthesizeTLSALPNCert("foo.test", "token.thumbprint", DigestSHA256, KeyP256)
	if err != nil {
		t.Fatalf("SynthesizeTLSALPNCert: %v", err)
	}

	expiry, err := ParseCertExpiry(certToPEM(cert.Certificate[0]))
	if err != nil {
		t.Fatalf("ParseCertExpiry: %v", err)
	}

	now := time.Now()
	if !expiry.After(now.Add(29*24*time.Hour)) || !expiry.Before(now.Add(31*24*time.Hour)) {
		t.Fatalf("expiry %s not within (now+29d, now+31d)", expiry)
	}
}

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	for _, kind := range []KeyKind{KeyRSA2048, KeyP256, KeyP384, KeyP521, KeyEd25519} {
		k, err := Generate(kind)
		if err != nil {
			t.Fatalf("Generate(%s): %v", kind, err)
		}
		pemBytes, err := EncodePrivateKeyPEM(k)
		if err != nil {
			t.Fatalf("EncodePrivateKeyPEM(%s): %v", kind, err)
		}
		decoded, err := DecodePrivateKeyPEM(pemBytes)
		if err != nil {
			t.Fatalf("DecodePrivateKeyPEM(%s): %v", kind, err)
		}
		if decoded.Kind != kind {
			t.Fatalf("round trip kind mismatch: got %s want %s", decoded.Kind, kind)
		}
	}
}

func certToPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}
