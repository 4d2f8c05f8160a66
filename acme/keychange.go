package acme

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/acmed/acmed/crypto"
)

// innerKeyChange is the payload of the inner JWS in a key rollover request
// (RFC 8555 §7.3.5): signed by the NEW key, naming the account URL and
// embedding the OLD key's JWK.
type innerKeyChange struct {
	Account string `json:"account"`
	OldKey  any    `json:"oldKey"`
}

// RolloverKey replaces the account's key. The inner JWS is signed by
// newKey with no nonce (the outer JWS carries the nonce); the outer JWS is
// signed by the current (old) key using the existing kid. On success the
// caller must persist newKey as the account's current key (spec.md §4.4
// "Rotations of contacts or key").
func (c *Client) RolloverKey(ctx context.Context, newKey *crypto.KeyPair) error {
	if c.AccountURL == "" {
		return fmt.Errorf("acme: key rollover: no account bound")
	}

	oldJWK, err := crypto.PublicJWKJSON(c.AccountKey)
	if err != nil {
		return fmt.Errorf("acme: key rollover: %w", err)
	}

	payload, err := json.Marshal(innerKeyChange{Account: c.AccountURL, OldKey: oldJWK})
	if err != nil {
		return fmt.Errorf("acme: key rollover: marshal inner payload: %w", err)
	}

	inner, err := crypto.Sign(newKey, "", "", c.dir.KeyChange, payload)
	if err != nil {
		return fmt.Errorf("acme: key rollover: sign inner jws: %w", err)
	}
	if _, err := c.post(ctx, c.dir.KeyChange, inner); err != nil {
		return fmt.Errorf("acme: key rollover: %w", err)
	}

	c.AccountKey = newKey
	return nil
}
