package main

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/acmed/acmed/acme"
	"github.com/acmed/acmed/cache/ristretto"
	"github.com/acmed/acmed/config"
	"github.com/acmed/acmed/crypto"
	"github.com/acmed/acmed/hook"
	"github.com/acmed/acmed/storage"
	"github.com/acmed/acmed/transport"
)

const (
	defaultAccountDir = "/var/lib/acmed/accounts"
	defaultCertDir    = "/var/lib/acmed/certs"
	defaultKeyDir     = "/var/lib/acmed/certs"

	defaultNameFormat    = "{{ name }}_{{ key_type }}.{{ file_type }}.{{ ext }}"
	defaultKeyNameFormat = "{{ name }}_{{ key_type }}.key.{{ ext }}"
)

// app wires together every package the renewal pass needs: one HTTP
// client and directory cache entry per endpoint, the account bundle
// store, and the hook registry built from the loaded configuration
// (spec.md §4, SPEC_FULL.md §4).
type app struct {
	cfgProvider *config.Provider
	logger      *slog.Logger
	hooks       *hook.Registry
	accounts    *storage.AccountStore
	dirCache    acme.DirectoryCache

	extraRoots []*x509.Certificate

	mu      sync.Mutex
	clients map[string]*transport.Client // endpoint name -> client
}

func newApp(cfgProvider *config.Provider, logger *slog.Logger, extraRoots []*x509.Certificate) (*app, error) {
	cfg := cfgProvider.Get()

	registry, err := config.BuildHookRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("build hook registry: %w", err)
	}

	accounts, err := storage.NewAccountStore(defaultAccountDir)
	if err != nil {
		return nil, err
	}

	dirCache, err := ristretto.New[string, *acme.Directory](ristretto.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("build directory cache: %w", err)
	}

	return &app{
		cfgProvider: cfgProvider,
		logger:      logger,
		hooks:       registry,
		accounts:    accounts,
		dirCache:    dirCache,
		extraRoots:  extraRoots,
		clients:     make(map[string]*transport.Client),
	}, nil
}

func (a *app) endpointClient(ep config.Endpoint) (*transport.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[ep.Name]; ok {
		return c, nil
	}

	roots := append([]*x509.Certificate{}, a.extraRoots...)
	for _, path := range ep.RootCertificates {
		certs, err := loadPEMCertificates(path)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", ep.Name, err)
		}
		roots = append(roots, certs...)
	}

	burst := ep.RateLimits.Number
	if burst == 0 {
		burst = 1
	}
	// One token every TimeUnit/Number, with up to Number admitted back to
	// back, gives the configured "Number per TimeUnit" rate.
	rateLimit := ep.RateLimits.TimeUnit.Duration / time.Duration(burst)

	c, err := transport.New(transport.Config{
		UserAgent:      "acmed/1.0",
		ExtraRootCerts: roots,
		RateLimit:      rateLimit,
		Burst:          burst,
	})
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: build transport client: %w", ep.Name, err)
	}
	a.clients[ep.Name] = c
	return c, nil
}

// acmeClientFor resolves the endpoint's directory, the account's
// persisted key and URL binding, discovering or creating the account on
// first use (spec.md §4.4 "Account discovery/creation").
func (a *app) acmeClientFor(ctx context.Context, ep config.Endpoint, acct config.Account) (*acme.Client, *storage.AccountBundle, error) {
	httpClient, err := a.endpointClient(ep)
	if err != nil {
		return nil, nil, err
	}

	dir, err := acme.FetchDirectory(ctx, httpClient, a.dirCache, ep.URL)
	if err != nil {
		return nil, nil, err
	}

	bundle, err := a.accounts.Load(acct.Name)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("load account %q: %w", acct.Name, err)
		}
		kind := crypto.KeyKind(acct.KeyType)
		if kind == "" {
			kind = crypto.KeyP256
		}
		key, genErr := crypto.Generate(kind)
		if genErr != nil {
			return nil, nil, fmt.Errorf("generate account key for %q: %w", acct.Name, genErr)
		}
		pemKey, encErr := crypto.EncodePrivateKeyPEM(key)
		if encErr != nil {
			return nil, nil, encErr
		}
		bundle = &storage.AccountBundle{
			Name:        acct.Name,
			CurrentKey:  storage.EncodedKey{Kind: string(kind), PEM: pemKey},
			EndpointURL: make(map[string]string),
		}
	}
	if bundle.EndpointURL == nil {
		bundle.EndpointURL = make(map[string]string)
	}

	accountKey, err := crypto.DecodePrivateKeyPEM(bundle.CurrentKey.PEM)
	if err != nil {
		return nil, nil, fmt.Errorf("decode account %q key: %w", acct.Name, err)
	}

	client := acme.NewClient(httpClient, dir, accountKey)
	client.AccountURL = bundle.EndpointURL[ep.Name]

	if client.AccountURL == "" {
		discoverErr := client.DiscoverAccount(ctx)
		switch {
		case discoverErr == nil:
			// found, Location already populated by DiscoverAccount.
		case discoverErr == acme.ErrAccountDoesNotExist:
			if !ep.TOSAgreed {
				return nil, nil, fmt.Errorf("endpoint %q requires agreeing to its terms of service (tos_agreed=false)", ep.Name)
			}
			var eab *acme.EAB
			if acct.ExternalAccount != nil {
				key, decErr := decodeEABKey(acct.ExternalAccount.Key)
				if decErr != nil {
					return nil, nil, fmt.Errorf("decode external account key for %q: %w", acct.Name, decErr)
				}
				eab = &acme.EAB{
					KeyID:     acct.ExternalAccount.Identifier,
					MACKey:    key,
					Algorithm: acct.ExternalAccount.SignatureAlgorithm,
				}
			}
			if err := client.CreateAccount(ctx, acct.Contacts, eab); err != nil {
				return nil, nil, fmt.Errorf("create account %q: %w", acct.Name, err)
			}
		default:
			return nil, nil, fmt.Errorf("discover account %q: %w", acct.Name, discoverErr)
		}
		bundle.EndpointURL[ep.Name] = client.AccountURL
		if err := a.accounts.Save(bundle); err != nil {
			return nil, nil, fmt.Errorf("persist account %q: %w", acct.Name, err)
		}
	}

	// If the configured key type no longer matches the persisted account
	// key, roll the account over to a freshly generated key of the
	// configured kind (spec.md §4.4 "Rotations of contacts or key").
	if desired := crypto.KeyKind(acct.KeyType); desired != "" && desired != crypto.KeyKind(bundle.CurrentKey.Kind) {
		newKey, err := crypto.Generate(desired)
		if err != nil {
			return nil, nil, fmt.Errorf("generate rollover key for account %q: %w", acct.Name, err)
		}
		if err := client.RolloverKey(ctx, newKey); err != nil {
			return nil, nil, fmt.Errorf("roll over account %q key: %w", acct.Name, err)
		}
		newPEM, err := crypto.EncodePrivateKeyPEM(newKey)
		if err != nil {
			return nil, nil, err
		}
		bundle.OldKeys = append(bundle.OldKeys, bundle.CurrentKey)
		bundle.CurrentKey = storage.EncodedKey{Kind: string(desired), PEM: newPEM}
		if err := a.accounts.Save(bundle); err != nil {
			return nil, nil, fmt.Errorf("persist rolled-over account %q: %w", acct.Name, err)
		}
	}

	return client, bundle, nil
}

func decodeEABKey(encoded string) ([]byte, error) {
	if key, err := base64.RawURLEncoding.DecodeString(encoded); err == nil {
		return key, nil
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func loadPEMCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read root certificate %q: %w", path, err)
	}
	var out []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse root certificate %q: %w", path, err)
		}
		out = append(out, cert)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("root certificate %q: no CERTIFICATE PEM block found", path)
	}
	return out, nil
}

func findCertificate(cfg *config.Config, name, keyType string) (config.Certificate, bool) {
	for _, c := range cfg.Certificates {
		if c.Name == name && c.KeyType == keyType {
			return c, true
		}
	}
	return config.Certificate{}, false
}

func findEndpoint(cfg *config.Config, name string) (config.Endpoint, bool) {
	for _, e := range cfg.Endpoints {
		if e.Name == name {
			return e, true
		}
	}
	return config.Endpoint{}, false
}

func findAccount(cfg *config.Config, name string) (config.Account, bool) {
	for _, a := range cfg.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return config.Account{}, false
}

// taskName joins a certificate's (name, key_type) pair into the single
// string scheduler.Task carries, since that pair (not name alone) is the
// config's uniqueness key (spec.md §6.3).
func taskName(name, keyType string) string { return name + "/" + keyType }

func splitTaskName(task string) (name, keyType string) {
	name, keyType, _ = strings.Cut(task, "/")
	return name, keyType
}
