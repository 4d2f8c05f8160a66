package acme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/acmed/acmed/crypto"
	"github.com/acmed/acmed/transport"
)

// EAB holds the external account binding credentials spec.md §4.4 requires
// when the directory advertises externalAccountRequired.
type EAB struct {
	KeyID     string
	MACKey    []byte // base64url-decoded HMAC key
	Algorithm string // "HS256" (default), "HS384" or "HS512"
}

// accountRequest is the payload acmed sends to newAccount/the account URL.
type accountRequest struct {
	TermsOfServiceAgreed *bool           `json:"termsOfServiceAgreed,omitempty"`
	Contact              []string        `json:"contact,omitempty"`
	OnlyReturnExisting   bool            `json:"onlyReturnExisting,omitempty"`
	ExternalAccountBind  json.RawMessage `json:"externalAccountBinding,omitempty"`
}

// DiscoverAccount looks up an existing account for the client's key via
// onlyReturnExisting, per spec.md §4.4 "Account discovery/creation".
// ErrAccountDoesNotExist is returned when the server reports
// accountDoesNotExist, leaving the caller to call CreateAccount.
func (c *Client) DiscoverAccount(ctx context.Context) error {
	req := accountRequest{OnlyReturnExisting: true}
	resp, err := c.post(ctx, c.dir.NewAccount, req)
	if err != nil {
		if prob, ok := asProblem(err); ok && prob.shortType() == "accountDoesNotExist" {
			return ErrAccountDoesNotExist
		}
		return fmt.Errorf("acme: discover account: %w", err)
	}
	c.AccountURL = resp.Header("Location")
	return nil
}

// CreateAccount registers a brand-new account, per spec.md §4.4. eab is nil
// when the endpoint does not require external account binding.
func (c *Client) CreateAccount(ctx context.Context, contacts []string, eab *EAB) error {
	agreed := true
	req := accountRequest{TermsOfServiceAgreed: &agreed, Contact: contacts}

	if c.dir.Meta.ExternalAccountRequired {
		if eab == nil {
			return ErrExternalAccountRequired
		}
		binding, err := buildEABJWS(c.AccountKey, eab, c.dir.NewAccount)
		if err != nil {
			return fmt.Errorf("acme: build eab: %w", err)
		}
		req.ExternalAccountBind = binding
	}

	resp, err := c.post(ctx, c.dir.NewAccount, req)
	if err != nil {
		return fmt.Errorf("acme: create account: %w", err)
	}
	c.AccountURL = resp.Header("Location")
	return nil
}

// UpdateAccount rotates contacts on the already-bound account.
func (c *Client) UpdateAccount(ctx context.Context, contacts []string) error {
	if c.AccountURL == "" {
		return fmt.Errorf("acme: update account: no account bound")
	}
	req := accountRequest{Contact: contacts}
	_, err := c.post(ctx, c.AccountURL, req)
	if err != nil {
		return fmt.Errorf("acme: update account: %w", err)
	}
	return nil
}

// buildEABJWS builds the inner JWS of spec.md §4.4's external account
// binding: protected header {alg, kid=eab.KeyID, url}, payload = the
// account key's JWK, signed with the MAC key using eab.Algorithm (HS256 if
// unset), independent of the account key's own algorithm.
func buildEABJWS(accountKey *crypto.KeyPair, eab *EAB, url string) (json.RawMessage, error) {
	inner, err := crypto.SignHMAC(eab.MACKey, eab.KeyID, url, eab.Algorithm, accountKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(inner)
}

// asProblem recovers the *Problem wrapped inside a *transport.Error, if any.
func asProblem(err error) (*Problem, bool) {
	var te *transport.Error
	if !errors.As(err, &te) {
		return nil, false
	}
	prob, ok := te.Err.(*Problem)
	return prob, ok
}
