package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientGetAndPostJOSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Replay-Nonce", "abc123")
			w.Write([]byte(`{"hello":"world"}`))
		case http.MethodPost:
			if ct := r.Header.Get("Content-Type"); ct != ContentTypeJOSE {
				t.Errorf("unexpected content-type: %q", ct)
			}
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	c, err := New(Config{UserAgent: "acmed-test/1.0"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	resp, err := c.Get(ctx, srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Header("Replay-Nonce") != "abc123" {
		t.Fatalf("missing Replay-Nonce header")
	}

	resp, err = c.PostJOSE(ctx, srv.URL, []byte(`{"payload":"x"}`))
	if err != nil {
		t.Fatalf("PostJOSE: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestClientRateLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := New(Config{RateLimit: 50 * time.Millisecond, Burst: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Get(ctx, srv.URL); err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("rate limiter did not throttle: elapsed %s", elapsed)
	}
}

func TestRetryPolicyBackoffGrows(t *testing.T) {
	p := DefaultRetryPolicy()
	p.Jitter = 0
	if p.Backoff(1) != time.Second {
		t.Fatalf("Backoff(1) = %s, want 1s", p.Backoff(1))
	}
	if p.Backoff(2) != 2*time.Second {
		t.Fatalf("Backoff(2) = %s, want 2s", p.Backoff(2))
	}
	if p.Backoff(3) != 4*time.Second {
		t.Fatalf("Backoff(3) = %s, want 4s", p.Backoff(3))
	}
}

func TestDoHonorsRetryAfterOverBackoff(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.RetryMax = 1
	policy.Base = time.Hour // would dominate if RetryAfter weren't honored

	calls := 0
	start := time.Now()
	_, err := Do(context.Background(), policy, func() (*Response, error) {
		calls++
		if calls == 1 {
			return nil, &Error{Err: context.Canceled, Recoverable: true, RetryAfter: 30 * time.Millisecond}
		}
		return &Response{StatusCode: 200}, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("Do did not wait ~RetryAfter before retrying: elapsed %s", elapsed)
	}
}

func TestDoStopsOnNonRecoverableError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), DefaultRetryPolicy(), func() (*Response, error) {
		calls++
		return nil, &Error{Err: context.Canceled, Recoverable: false}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-recoverable error, got %d", calls)
	}
}
