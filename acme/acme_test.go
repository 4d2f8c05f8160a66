package acme

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/acmed/acmed/crypto"
	"github.com/acmed/acmed/transport"
)

func TestNoncePoolDiscardsDuplicates(t *testing.T) {
	p := NewNoncePool(nil, "", 0)
	p.Push("a")
	p.Push("a")
	p.Push("b")

	first, err := p.Take(nil)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	second, err := p.Take(nil)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct nonces, got %q twice", first)
	}
	if (first != "a" && first != "b") || (second != "a" && second != "b") {
		t.Fatalf("unexpected nonce values: %q, %q", first, second)
	}
}

func TestProblemClassification(t *testing.T) {
	cases := []struct {
		typ       string
		retryable bool
		fatal     bool
	}{
		{"urn:ietf:params:acme:error:badNonce", true, false},
		{"urn:ietf:params:acme:error:rateLimited", true, false},
		{"urn:ietf:params:acme:error:serverInternal", true, false},
		{"urn:ietf:params:acme:error:unauthorized", false, true},
		{"urn:ietf:params:acme:error:malformed", false, true},
		{"urn:ietf:params:acme:error:accountDoesNotExist", false, true},
		{"urn:ietf:params:acme:error:dns", false, false},
	}
	for _, tc := range cases {
		p := &Problem{Type: tc.typ}
		if got := p.Retryable(); got != tc.retryable {
			t.Errorf("%s: Retryable() = %v, want %v", tc.typ, got, tc.retryable)
		}
		if got := p.Fatal(); got != tc.fatal {
			t.Errorf("%s: Fatal() = %v, want %v", tc.typ, got, tc.fatal)
		}
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	d, ok := parseRetryAfter("5")
	if !ok || d != 5*time.Second {
		t.Fatalf("parseRetryAfter(5) = %s, %v", d, ok)
	}
	if _, ok := parseRetryAfter("not-a-duration"); ok {
		t.Fatalf("expected parse failure for garbage input")
	}
}

func TestPostRetriesAfterRateLimitedRetryAfter(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Replay-Nonce", "nonce-1")
			return
		}
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"type":"urn:ietf:params:acme:error:rateLimited","detail":"slow down"}`))
			return
		}
		w.Header().Set("Replay-Nonce", "nonce-2")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"valid"}`))
	}))
	defer srv.Close()

	httpClient, err := transport.New(transport.Config{UserAgent: "acmed-test/1.0"})
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	key, err := crypto.Generate(crypto.KeyP256)
	if err != nil {
		t.Fatalf("crypto.Generate: %v", err)
	}
	dir := &Directory{NewNonce: srv.URL}
	c := NewClient(httpClient, dir, key)
	c.AccountURL = srv.URL + "/acct/1"

	start := time.Now()
	resp, err := c.post(context.Background(), srv.URL, map[string]string{"hello": "world"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if calls != 2 {
		t.Fatalf("expected 2 POST attempts, got %d", calls)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("post did not honor Retry-After: elapsed %s", elapsed)
	}
}

func TestRevokeCertificateSendsCertificateAndReason(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Replay-Nonce", "nonce-1")
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	httpClient, err := transport.New(transport.Config{UserAgent: "acmed-test/1.0"})
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	key, err := crypto.Generate(crypto.KeyP256)
	if err != nil {
		t.Fatalf("crypto.Generate: %v", err)
	}
	dir := &Directory{NewNonce: srv.URL, RevokeCert: srv.URL}
	c := NewClient(httpClient, dir, key)
	c.AccountURL = srv.URL + "/acct/1"

	reason := ReasonKeyCompromise
	if err := c.RevokeCertificate(context.Background(), []byte{0x01, 0x02, 0x03}, &reason); err != nil {
		t.Fatalf("RevokeCertificate: %v", err)
	}

	var jws crypto.FlattenedJWS
	if err := json.Unmarshal(gotBody, &jws); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	payload, err := base64.RawURLEncoding.DecodeString(jws.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var req revokeCertRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if req.Certificate != base64.RawURLEncoding.EncodeToString([]byte{0x01, 0x02, 0x03}) {
		t.Fatalf("unexpected certificate field: %q", req.Certificate)
	}
	if req.Reason == nil || *req.Reason != int(ReasonKeyCompromise) {
		t.Fatalf("unexpected reason field: %+v", req.Reason)
	}
}

func TestParseAlternateLinks(t *testing.T) {
	header := `<https://example.com/a>;rel="alternate", <https://example.com/b>; rel="alternate"`
	urls := parseAlternateLinks(header)
	if len(urls) != 2 {
		t.Fatalf("expected 2 alternate links, got %d: %v", len(urls), urls)
	}
	if urls[0] != "https://example.com/a" || urls[1] != "https://example.com/b" {
		t.Fatalf("unexpected urls: %v", urls)
	}
}
