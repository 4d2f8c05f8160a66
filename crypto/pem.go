package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"
)

// EncodePrivateKeyPEM serializes a key pair's private half to PKCS#8 PEM,
// the format acmed writes to the key file templated by storage (spec.md §4.7).
func EncodePrivateKeyPEM(k *KeyPair) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.Private())
	if err != nil {
		// circl's ed448 key does not implement the interfaces x509 expects;
		// encode it manually as a raw seed under a private PEM type.
		if k.Kind == KeyEd448 {
			return pem.EncodeToMemory(&pem.Block{
				Type:  "ED448 PRIVATE KEY",
				Bytes: k.Ed448Key,
			}), nil
		}
		return nil, fmt.Errorf("crypto: marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// DecodePrivateKeyPEM parses a PEM block written by EncodePrivateKeyPEM back
// into a KeyPair, inferring Kind from the decoded key's concrete type.
func DecodePrivateKeyPEM(data []byte) (*KeyPair, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("crypto: no PEM block found in key data")
	}

	if block.Type == "ED448 PRIVATE KEY" {
		if len(block.Bytes) != ed448.PrivateKeySize {
			return nil, fmt.Errorf("crypto: malformed ed448 private key")
		}
		priv := ed448.PrivateKey(block.Bytes)
		pub := priv.Public().(ed448.PublicKey)
		return &KeyPair{Kind: KeyEd448, Ed448Pub: pub, Ed448Key: priv}, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}

	switch k := key.(type) {
	case *rsa.PrivateKey:
		kind := KeyRSA2048
		if k.N.BitLen() > 3072 {
			kind = KeyRSA4096
		}
		return &KeyPair{Kind: kind, RSA: k}, nil
	case *ecdsa.PrivateKey:
		var kind KeyKind
		switch k.Curve {
		case elliptic.P256():
			kind = KeyP256
		case elliptic.P384():
			kind = KeyP384
		case elliptic.P521():
			kind = KeyP521
		default:
			return nil, fmt.Errorf("%w: unknown ecdsa curve", ErrUnsupportedAlgorithm)
		}
		return &KeyPair{Kind: kind, ECDSA: k}, nil
	case ed25519.PrivateKey:
		return &KeyPair{Kind: KeyEd25519, Ed25519Pub: k.Public().(ed25519.PublicKey), Ed25519Key: k}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized key type", ErrUnsupportedAlgorithm)
	}
}
