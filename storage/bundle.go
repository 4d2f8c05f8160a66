// Package storage persists account bundles and certificate/key material to
// the filesystem (spec.md §4.7): a single versioned binary blob per named
// account, atomically replaced, plus templated certificate and key files
// with file-lifecycle hook invocations around each write.
package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// bundleSchemaVersion is the leading byte of every serialized account
// bundle, bumped whenever the encoded shape changes.
const bundleSchemaVersion byte = 1

// AccountBundle is everything persisted for one named account: every key
// it has ever used (current plus historical, oldest first) and its bound
// URL on every endpoint it has registered with.
type AccountBundle struct {
	Name        string
	CurrentKey  EncodedKey
	OldKeys     []EncodedKey
	EndpointURL map[string]string // endpoint name -> account URL
}

// EncodedKey is a key pair in the wire form crypto.EncodePrivateKeyPEM/
// DecodePrivateKeyPEM produce.
type EncodedKey struct {
	Kind string
	PEM  []byte
}

// AccountStore reads and atomically writes account bundles under one base
// directory, one file per account (spec.md §4.7).
type AccountStore struct {
	dir string
}

// NewAccountStore ensures dir exists with mode 0700 (spec.md §4.7
// "directories 0700 for accounts") and returns a store rooted there.
func NewAccountStore(dir string) (*AccountStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("storage: create account directory: %w", err)
	}
	return &AccountStore{dir: dir}, nil
}

func (s *AccountStore) path(name string) string {
	return filepath.Join(s.dir, name+".bundle")
}

// Load reads and decodes the named account's bundle. os.IsNotExist(err) is
// true when the account has never been persisted.
func (s *AccountStore) Load(name string) (*AccountBundle, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data[0] != bundleSchemaVersion {
		return nil, fmt.Errorf("storage: account %q: unsupported bundle schema version", name)
	}

	var bundle AccountBundle
	dec := gob.NewDecoder(bytes.NewReader(data[1:]))
	if err := dec.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("storage: account %q: decode bundle: %w", name, err)
	}
	return &bundle, nil
}

// Save atomically replaces the named account's bundle: encode to a temp
// file in the same directory, then rename over the final path, so a crash
// mid-write never leaves a truncated bundle (spec.md §4.7).
func (s *AccountStore) Save(bundle *AccountBundle) error {
	var buf bytes.Buffer
	buf.WriteByte(bundleSchemaVersion)
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("storage: account %q: encode bundle: %w", bundle.Name, err)
	}

	final := s.path(bundle.Name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("storage: account %q: write temp bundle: %w", bundle.Name, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: account %q: rename bundle into place: %w", bundle.Name, err)
	}
	return nil
}
