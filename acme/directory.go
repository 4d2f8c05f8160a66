package acme

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/acmed/acmed/cache"
	"github.com/acmed/acmed/transport"
)

// DirectoryCache memoizes a directory object per endpoint URL for the
// process lifetime (spec.md §4.4 "cache the result for the process
// lifetime"), backed by cache/ristretto.
type DirectoryCache = cache.Cache[string, *Directory]

// Directory is the set of resource URLs an ACME server advertises at its
// directory endpoint (spec.md §4.4).
type Directory struct {
	NewNonce   string `json:"newNonce"`
	NewAccount string `json:"newAccount"`
	NewOrder   string `json:"newOrder"`
	NewAuthz   string `json:"newAuthz,omitempty"`
	RevokeCert string `json:"revokeCert"`
	KeyChange  string `json:"keyChange"`

	Meta struct {
		TermsOfService          string   `json:"termsOfService,omitempty"`
		Website                 string   `json:"website,omitempty"`
		CAAIdentities           []string `json:"caaIdentities,omitempty"`
		ExternalAccountRequired bool     `json:"externalAccountRequired,omitempty"`
	} `json:"meta,omitempty"`
}

// FetchDirectory GETs and validates an endpoint's directory object,
// consulting dirCache first and populating it on a miss. dirCache may be
// nil, in which case every call fetches fresh.
func FetchDirectory(ctx context.Context, client *transport.Client, dirCache DirectoryCache, url string) (*Directory, error) {
	if dirCache != nil {
		if cached, ok := dirCache.Get(url); ok {
			return cached, nil
		}
	}

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("acme: fetch directory: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("acme: fetch directory: unexpected status %d", resp.StatusCode)
	}

	var dir Directory
	if err := json.Unmarshal(resp.Body, &dir); err != nil {
		return nil, fmt.Errorf("acme: fetch directory: decode: %w", err)
	}

	if dir.NewNonce == "" || dir.NewAccount == "" || dir.NewOrder == "" {
		return nil, ErrDirectoryIncomplete
	}

	if dirCache != nil {
		dirCache.Set(url, &dir, 1)
	}
	return &dir, nil
}
