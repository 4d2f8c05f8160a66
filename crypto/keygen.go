// Package crypto is the cryptographic facade used by the ACME engine, the
// hook-driven challenge provers and tacd: key generation, JWS signing, JWK
// thumbprints, CSR construction, certificate expiry parsing and synthesis of
// the TLS-ALPN-01 responder certificate.
package crypto

import (
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"
)

// KeyKind identifies one of the key algorithms acmed can request for an
// account or a certificate.
type KeyKind string

const (
	KeyRSA2048 KeyKind = "rsa2048"
	KeyRSA4096 KeyKind = "rsa4096"
	KeyP256    KeyKind = "p256"
	KeyP384    KeyKind = "p384"
	KeyP521    KeyKind = "p521"
	KeyEd25519 KeyKind = "ed25519"
	KeyEd448   KeyKind = "ed448"
)

// KeyPair is the algorithm-agnostic container returned by Generate. Exactly
// one of the typed fields is populated; Public/Private return the stdlib
// crypto interfaces regardless of which.
type KeyPair struct {
	Kind KeyKind

	RSA        *rsa.PrivateKey
	ECDSA      *ecdsa.PrivateKey
	Ed25519Pub ed25519.PublicKey
	Ed25519Key ed25519.PrivateKey
	Ed448Pub   ed448.PublicKey
	Ed448Key   ed448.PrivateKey
}

// Public returns the public half of the key pair as a value usable with
// crypto/x509 and go-jose.
func (k *KeyPair) Public() any {
	switch k.Kind {
	case KeyRSA2048, KeyRSA4096:
		return &k.RSA.PublicKey
	case KeyP256, KeyP384, KeyP521:
		return &k.ECDSA.PublicKey
	case KeyEd25519:
		return k.Ed25519Pub
	case KeyEd448:
		return k.Ed448Pub
	default:
		return nil
	}
}

// Private returns the private key as a value usable with crypto.Signer.
func (k *KeyPair) Private() any {
	switch k.Kind {
	case KeyRSA2048, KeyRSA4096:
		return k.RSA
	case KeyP256, KeyP384, KeyP521:
		return k.ECDSA
	case KeyEd25519:
		return k.Ed25519Key
	case KeyEd448:
		return k.Ed448Key
	default:
		return nil
	}
}

// Signer returns the private key as a crypto.Signer, for use with
// crypto/x509's certificate- and CSR-signing functions. Ed448 keys do not
// satisfy crypto.Signer with a signature x509 understands, so this returns
// ErrUnsupportedAlgorithm for KeyEd448 (see BuildCSR).
func (k *KeyPair) Signer() (gocrypto.Signer, error) {
	switch k.Kind {
	case KeyRSA2048, KeyRSA4096:
		return k.RSA, nil
	case KeyP256, KeyP384, KeyP521:
		return k.ECDSA, nil
	case KeyEd25519:
		return k.Ed25519Key, nil
	default:
		return nil, fmt.Errorf("%w: %s has no crypto.Signer usable with crypto/x509", ErrUnsupportedAlgorithm, k.Kind)
	}
}

// Generate produces a fresh key pair of the requested kind.
func Generate(kind KeyKind) (*KeyPair, error) {
	switch kind {
	case KeyRSA2048:
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("crypto: generate rsa2048: %w", err)
		}
		return &KeyPair{Kind: kind, RSA: k}, nil
	case KeyRSA4096:
		k, err := rsa.GenerateKey(rand.Reader, 4096)
		if err != nil {
			return nil, fmt.Errorf("crypto: generate rsa4096: %w", err)
		}
		return &KeyPair{Kind: kind, RSA: k}, nil
	case KeyP256:
		k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("crypto: generate p256: %w", err)
		}
		return &KeyPair{Kind: kind, ECDSA: k}, nil
	case KeyP384:
		k, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("crypto: generate p384: %w", err)
		}
		return &KeyPair{Kind: kind, ECDSA: k}, nil
	case KeyP521:
		k, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("crypto: generate p521: %w", err)
		}
		return &KeyPair{Kind: kind, ECDSA: k}, nil
	case KeyEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("crypto: generate ed25519: %w", err)
		}
		return &KeyPair{Kind: kind, Ed25519Pub: pub, Ed25519Key: priv}, nil
	case KeyEd448:
		pub, priv, err := ed448.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("crypto: generate ed448: %w", err)
		}
		return &KeyPair{Kind: kind, Ed448Pub: pub, Ed448Key: priv}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, kind)
	}
}
