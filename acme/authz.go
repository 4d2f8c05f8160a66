package acme

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/acmed/acmed/crypto"
)

// Challenge mirrors one entry of an authorization's challenge list (RFC
// 8555 §7.1.5).
type Challenge struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Token  string `json:"token"`
	Status string `json:"status"`
}

// Authorization mirrors RFC 8555 §7.1.4's authorization object.
type Authorization struct {
	URL        string          `json:"-"`
	Identifier OrderIdentifier `json:"identifier"`
	Status     string          `json:"status"`
	Expires    string          `json:"expires,omitempty"`
	Challenges []Challenge     `json:"challenges"`
}

// ChallengeProof is everything a provisioning/cleanup hook needs to act on
// one challenge (spec.md §4.6's challenge-hook variables).
type ChallengeProof struct {
	Identifier        string
	IdentifierTLSALPN string // set only for tls-alpn-01
	FileName          string // set only for http-01 (the token)
	Proof             string
	ChallengeType      string
	KeyType           string
}

// ChallengeProver provisions and cleans up the external effect one
// challenge type requires (serving a file, publishing a DNS record,
// presenting a TLS-ALPN certificate). The acme package never performs
// provisioning itself; per spec.md's Non-goals that is always delegated to
// hooks, wired in by the scheduler (spec.md §4.6).
type ChallengeProver interface {
	Provision(ctx context.Context, proof ChallengeProof) error
	Cleanup(ctx context.Context, proof ChallengeProof) error
}

// GetAuthorization POST-as-GETs an authorization URL.
func (c *Client) GetAuthorization(ctx context.Context, url string) (*Authorization, error) {
	resp, err := c.postAsGet(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("acme: get authorization: %w", err)
	}
	var authz Authorization
	if err := json.Unmarshal(resp.Body, &authz); err != nil {
		return nil, fmt.Errorf("acme: get authorization: decode: %w", err)
	}
	authz.URL = url
	return &authz, nil
}

// SolveAuthorization runs the full per-authorization loop of spec.md §4.4:
// fetch, pick the challenge matching challengeType, provision, tell the
// server to validate, poll to a terminal state, then always clean up.
func (c *Client) SolveAuthorization(ctx context.Context, authzURL, challengeType, keyType string, prover ChallengeProver) error {
	authz, err := c.GetAuthorization(ctx, authzURL)
	if err != nil {
		return err
	}
	if authz.Status == "valid" {
		return nil
	}

	var chal *Challenge
	for i := range authz.Challenges {
		if authz.Challenges[i].Type == challengeType {
			chal = &authz.Challenges[i]
			break
		}
	}
	if chal == nil {
		return fmt.Errorf("%w: identifier %s, wanted %s", ErrUnsupportedChallengeType, authz.Identifier.Value, challengeType)
	}

	keyAuth, err := crypto.KeyAuthorization(chal.Token, c.AccountKey)
	if err != nil {
		return fmt.Errorf("acme: compute key authorization: %w", err)
	}

	proof := ChallengeProof{
		Identifier:    authz.Identifier.Value,
		ChallengeType: challengeType,
		KeyType:       keyType,
	}
	switch challengeType {
	case "http-01":
		proof.Proof = keyAuth
		proof.FileName = chal.Token
	case "dns-01":
		sum := sha256.Sum256([]byte(keyAuth))
		proof.Proof = base64.RawURLEncoding.EncodeToString(sum[:])
	case "tls-alpn-01":
		sum := sha256.Sum256([]byte(keyAuth))
		proof.Proof = hex.EncodeToString(sum[:])
		proof.IdentifierTLSALPN = authz.Identifier.Value
	}

	defer func() {
		// Cleanup always runs, even when provisioning or validation failed
		// or timed out (spec.md §4.4 step 8).
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = prover.Cleanup(cleanupCtx, proof)
	}()

	if err := prover.Provision(ctx, proof); err != nil {
		return fmt.Errorf("acme: provision challenge: %w", err)
	}

	if _, err := c.post(ctx, chal.URL, struct{}{}); err != nil {
		return fmt.Errorf("acme: trigger challenge validation: %w", err)
	}

	final, err := c.pollAuthorization(ctx, authz.URL)
	if err != nil {
		return err
	}
	if final.Status != "valid" {
		return fmt.Errorf("%w: authorization %s ended in status %s", ErrOrderFailed, authz.URL, final.Status)
	}
	return nil
}

func (c *Client) pollAuthorization(ctx context.Context, url string) (*Authorization, error) {
	delay := time.Second
	for cycle := 0; cycle < 30; cycle++ {
		resp, err := c.postAsGet(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("acme: poll authorization: %w", err)
		}
		var authz Authorization
		if err := json.Unmarshal(resp.Body, &authz); err != nil {
			return nil, fmt.Errorf("acme: poll authorization: decode: %w", err)
		}
		authz.URL = url

		if authz.Status == "valid" || authz.Status == "invalid" {
			return &authz, nil
		}

		if ra := resp.Header("Retry-After"); ra != "" {
			if d, ok := parseRetryAfter(ra); ok {
				delay = d
			}
		}
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
	return nil, ErrChallengeTimeout
}
