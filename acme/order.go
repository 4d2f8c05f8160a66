package acme

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// OrderIdentifier is one identifier in a new-order request or an order's
// echoed identifier list (spec.md §4.4 "New order").
type OrderIdentifier struct {
	Type  string `json:"type"` // "dns" or "ip"
	Value string `json:"value"`
}

type newOrderRequest struct {
	Identifiers []OrderIdentifier `json:"identifiers"`
	NotBefore   string            `json:"notBefore,omitempty"`
	NotAfter    string            `json:"notAfter,omitempty"`
}

// Order mirrors RFC 8555 §7.1.3's order object.
type Order struct {
	URL            string            `json:"-"`
	Status         string            `json:"status"`
	Expires        string            `json:"expires,omitempty"`
	Identifiers    []OrderIdentifier `json:"identifiers"`
	Authorizations []string          `json:"authorizations"`
	Finalize       string            `json:"finalize"`
	Certificate    string            `json:"certificate,omitempty"`
	Error          *Problem          `json:"error,omitempty"`
}

// NewOrder creates an order for the given identifiers.
func (c *Client) NewOrder(ctx context.Context, identifiers []OrderIdentifier, notBefore, notAfter time.Time) (*Order, error) {
	req := newOrderRequest{Identifiers: identifiers}
	if !notBefore.IsZero() {
		req.NotBefore = notBefore.UTC().Format(time.RFC3339)
	}
	if !notAfter.IsZero() {
		req.NotAfter = notAfter.UTC().Format(time.RFC3339)
	}

	resp, err := c.post(ctx, c.dir.NewOrder, req)
	if err != nil {
		return nil, fmt.Errorf("acme: new order: %w", err)
	}

	var order Order
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return nil, fmt.Errorf("acme: new order: decode: %w", err)
	}
	order.URL = resp.Header("Location")
	return &order, nil
}

// GetOrder POST-as-GETs the order URL, used when polling after finalize.
func (c *Client) GetOrder(ctx context.Context, url string) (*Order, error) {
	resp, err := c.postAsGet(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("acme: get order: %w", err)
	}
	var order Order
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return nil, fmt.Errorf("acme: get order: decode: %w", err)
	}
	order.URL = url
	return &order, nil
}

// Finalize submits the DER-encoded CSR to the order's finalize URL.
func (c *Client) Finalize(ctx context.Context, order *Order, csrDER []byte) (*Order, error) {
	req := struct {
		CSR string `json:"csr"`
	}{CSR: base64.RawURLEncoding.EncodeToString(csrDER)}

	resp, err := c.post(ctx, order.Finalize, req)
	if err != nil {
		return nil, fmt.Errorf("acme: finalize: %w", err)
	}
	var updated Order
	if err := json.Unmarshal(resp.Body, &updated); err != nil {
		return nil, fmt.Errorf("acme: finalize: decode: %w", err)
	}
	updated.URL = order.URL
	return &updated, nil
}

// PollOrder polls the order URL with the spec.md §4.4 backoff (starting at
// 1s, doubling, capped at 8s, honoring Retry-After) until status is valid
// or invalid, or 30 cycles elapse.
func (c *Client) PollOrder(ctx context.Context, order *Order) (*Order, error) {
	cur := order
	delay := time.Second
	for cycle := 0; cycle < 30; cycle++ {
		if cur.Status == "valid" {
			return cur, nil
		}
		if cur.Status == "invalid" {
			return cur, fmt.Errorf("%w: order %s is invalid", ErrOrderFailed, cur.URL)
		}

		resp, err := c.postAsGet(ctx, cur.URL)
		if err != nil {
			return nil, fmt.Errorf("acme: poll order: %w", err)
		}
		if ra := resp.Header("Retry-After"); ra != "" {
			if d, ok := parseRetryAfter(ra); ok {
				delay = d
			}
		}

		var next Order
		if err := json.Unmarshal(resp.Body, &next); err != nil {
			return nil, fmt.Errorf("acme: poll order: decode: %w", err)
		}
		next.URL = cur.URL
		cur = &next

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
		if delay > 8*time.Second {
			delay = 8 * time.Second
		}
	}
	return nil, fmt.Errorf("%w", ErrChallengeTimeout)
}

// DownloadCertificate POST-as-GETs the order's certificate URL and returns
// the PEM chain. Alternative chains advertised via Link: rel="alternate"
// are substituted only when preferredChainRootCN matches one alternate
// chain's root issuer CN (spec.md §4.4 "Download", best-effort per §9).
func (c *Client) DownloadCertificate(ctx context.Context, order *Order, preferredChainRootCN string) ([]byte, error) {
	resp, err := c.postAsGet(ctx, order.Certificate)
	if err != nil {
		return nil, fmt.Errorf("acme: download certificate: %w", err)
	}
	chain := resp.Body

	if preferredChainRootCN == "" {
		return chain, nil
	}
	for _, altURL := range parseAlternateLinks(resp.Header("Link")) {
		altResp, err := c.postAsGet(ctx, altURL)
		if err != nil {
			continue
		}
		if chainRootCN(altResp.Body) == preferredChainRootCN {
			return altResp.Body, nil
		}
	}
	return chain, nil
}
