// Package transport implements the HTTPS client acmed uses to talk to an
// ACME endpoint: JOSE content negotiation, a configurable user agent, extra
// trusted roots, proxy-from-environment, and a per-endpoint token-bucket
// rate limiter (spec.md §4.2).
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
	"golang.org/x/time/rate"
)

// ContentTypeJOSE is the content-type ACME requires on every signed
// request.
const ContentTypeJOSE = "application/jose+json"

// Response captures the handful of headers/status/body the ACME engine
// needs from a round trip.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Header returns a single header value, matching http.Header.Get's
// case-insensitive lookup.
func (r *Response) Header(name string) string {
	return r.Headers.Get(name)
}

// Client is the per-endpoint HTTPS client: one Client per configured
// Endpoint, sharing one *http.Client, one rate Limiter and one user agent.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// Config configures a new Client.
type Config struct {
	// UserAgent is sent on every request.
	UserAgent string

	// ExtraRootCerts are appended to the system trust store.
	ExtraRootCerts []*x509.Certificate

	// RateLimit is the interval at which the token bucket gains one token
	// (zero disables limiting); Burst is the maximum number of requests
	// admitted back to back before the bucket must refill (spec.md §3 Rate
	// limiter).
	RateLimit time.Duration
	Burst     int

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration
}

// New builds a Client from Config.
func New(cfg Config) (*Client, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	for _, c := range cfg.ExtraRootCerts {
		pool.AddCert(c)
	}

	proxyFunc := httpproxy.FromEnvironment().ProxyFunc()
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			return proxyFunc(req.URL)
		},
		TLSClientConfig: &tls.Config{RootCAs: pool},
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(cfg.RateLimit), burst)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "acmed/1.0"
	}

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		limiter:    limiter,
		userAgent:  ua,
	}, nil
}

// AwaitPermit blocks until the rate limiter admits another request
// (spec.md §3/§4.2 "await_permit()"). A Client with no configured rate
// limit never blocks.
func (c *Client) AwaitPermit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Get issues a plain GET request (directory discovery, certificate
// download). Besides GET, the client issues only HEAD (nonce minting) and
// JOSE POSTs.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build GET request: %w", err)
	}
	return c.do(ctx, req)
}

// Head issues a HEAD request (used to mint a fresh nonce).
func (c *Client) Head(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build HEAD request: %w", err)
	}
	return c.do(ctx, req)
}

// PostJOSE issues a signed ACME POST with content-type application/jose+json.
func (c *Client) PostJOSE(ctx context.Context, url string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: build POST request: %w", err)
	}
	req.Header.Set("Content-Type", ContentTypeJOSE)
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*Response, error) {
	if err := c.AwaitPermit(ctx); err != nil {
		return nil, fmt.Errorf("transport: rate limiter: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Err: err, Recoverable: true}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("read body: %w", err), Recoverable: true}
	}

	return &Response{StatusCode: resp.StatusCode, Body: data, Headers: resp.Header}, nil
}

// Error wraps a transport-level failure with a Recoverable hint consumed by
// the ACME engine's retry policy (spec.md §4.2/§7 TransportError).
type Error struct {
	Err         error
	Recoverable bool

	// RetryAfter, when non-zero, is the server-requested delay parsed from
	// a 429 response's Retry-After header (RFC 7231 §7.1.3). Do() honors
	// it instead of the exponential backoff schedule.
	RetryAfter time.Duration
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
