// Package acme implements the RFC 8555 protocol engine: directory
// discovery, nonce management, account lifecycle, order/authorization/
// challenge orchestration, finalize/download, key rollover and revocation
// (spec.md §4.3/§4.4).
package acme

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/acmed/acmed/crypto"
	"github.com/acmed/acmed/transport"
)

// Client drives the ACME protocol against one endpoint on behalf of one
// account key. It owns the nonce pool and the JWS kid once the account is
// known.
type Client struct {
	http   *transport.Client
	dir    *Directory
	nonces *NoncePool
	retry  transport.RetryPolicy

	AccountKey *crypto.KeyPair
	AccountURL string // set once the account is discovered/created
}

// NewClient builds a Client for an already-fetched directory.
func NewClient(httpClient *transport.Client, dir *Directory, accountKey *crypto.KeyPair) *Client {
	return &Client{
		http:       httpClient,
		dir:        dir,
		nonces:     NewNoncePool(httpClient, dir.NewNonce, 16),
		retry:      transport.DefaultRetryPolicy(),
		AccountKey: accountKey,
	}
}

// Directory returns the endpoint's directory object.
func (c *Client) Directory() *Directory { return c.dir }

// postAsGet is the special case of post with an empty payload, per spec.md
// §4.4's "POST-as-GET" convention.
func (c *Client) postAsGet(ctx context.Context, url string) (*transport.Response, error) {
	return c.post(ctx, url, nil)
}

// post signs payload (nil for POST-as-GET) with the account key and the kid
// (or jwk, before AccountURL is known), retrying per spec.md §4.2 and
// forcing a fresh nonce on badNonce.
func (c *Client) post(ctx context.Context, url string, payload any) (*transport.Response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("acme: marshal request: %w", err)
		}
	}

	return transport.Do(ctx, c.retry, func() (*transport.Response, error) {
		nonce, err := c.nonces.Take(ctx)
		if err != nil {
			return nil, err
		}

		jws, err := crypto.Sign(c.AccountKey, c.AccountURL, nonce, url, body)
		if err != nil {
			return nil, fmt.Errorf("acme: sign request: %w", err)
		}
		signed, err := json.Marshal(jws)
		if err != nil {
			return nil, fmt.Errorf("acme: marshal jws: %w", err)
		}

		resp, err := c.http.PostJOSE(ctx, url, signed)
		if err != nil {
			return nil, err
		}
		c.nonces.Push(resp.Header("Replay-Nonce"))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		prob := parseProblem(resp)
		if prob.shortType() == "badNonce" {
			return nil, &transport.Error{Err: prob, Recoverable: true}
		}
		var retryAfter time.Duration
		if prob.shortType() == "rateLimited" {
			if d, ok := parseRetryAfter(resp.Header("Retry-After")); ok {
				retryAfter = d
			}
		}
		return nil, &transport.Error{Err: prob, Recoverable: prob.Retryable(), RetryAfter: retryAfter}
	})
}

func parseProblem(resp *transport.Response) *Problem {
	var prob Problem
	if err := json.Unmarshal(resp.Body, &prob); err != nil {
		return &Problem{Type: "about:blank", Detail: string(resp.Body), Status: resp.StatusCode}
	}
	if prob.Status == 0 {
		prob.Status = resp.StatusCode
	}
	return &prob
}

