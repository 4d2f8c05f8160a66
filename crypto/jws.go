package crypto

import (
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// SignAlg is the JWS "alg" value acmed picked for a given key kind.
func SignAlg(kind KeyKind) (string, error) {
	switch kind {
	case KeyRSA2048, KeyRSA4096:
		return "RS256", nil
	case KeyP256:
		return "ES256", nil
	case KeyP384:
		return "ES384", nil
	case KeyP521:
		return "ES512", nil
	case KeyEd25519:
		return "EdDSA", nil
	case KeyEd448:
		return "Ed448", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSigningAlg, kind)
	}
}

// protectedHeader carries the fields spec.md §4.1 requires in every ACME
// JWS: alg plus either jwk (pre-registration) or kid (post-registration),
// plus nonce and url. The jwk member is left as `any` so it can hold either
// a *jose.JSONWebKey (standard key kinds) or our own *JWK (Ed448).
type protectedHeader struct {
	Alg   string `json:"alg"`
	JWK   any    `json:"jwk,omitempty"`
	Kid   string `json:"kid,omitempty"`
	Nonce string `json:"nonce,omitempty"`
	URL   string `json:"url"`
}

// FlattenedJWS is the RFC 7515 flattened JSON serialization ACME uses on
// the wire.
type FlattenedJWS struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// Sign produces the flattened JWS for an ACME request. payload is the raw
// JSON body to sign; pass nil for POST-as-GET (encoded per spec.md §4.1 as
// an empty string, not base64url of "null").
func Sign(key *KeyPair, kid, nonce, url string, payload []byte) (*FlattenedJWS, error) {
	alg, err := SignAlg(key.Kind)
	if err != nil {
		return nil, err
	}

	hdr := protectedHeader{Alg: alg, Nonce: nonce, URL: url}
	if kid != "" {
		hdr.Kid = kid
	} else {
		jwk, err := jwkJSON(key)
		if err != nil {
			return nil, err
		}
		hdr.JWK = jwk
	}

	protectedJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal protected header: %w", err)
	}
	protectedB64 := base64.RawURLEncoding.EncodeToString(protectedJSON)

	payloadB64 := ""
	if len(payload) > 0 {
		payloadB64 = base64.RawURLEncoding.EncodeToString(payload)
	}

	signingInput := []byte(protectedB64 + "." + payloadB64)

	sig, err := rawSign(key, signingInput)
	if err != nil {
		return nil, err
	}

	return &FlattenedJWS{
		Protected: protectedB64,
		Payload:   payloadB64,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
	}, nil
}

// rawSign computes the JWS signature bytes (RFC 7518 §3) over signingInput.
// Implemented directly against stdlib crypto/circl primitives rather than a
// JOSE library's high-level Signer: every such Signer constructs its own
// protected header internally, which would fight this package's explicit
// control over the jwk/kid/nonce/url discipline spec.md §4.1 mandates.
// go-jose is still genuinely exercised elsewhere in this package (JWK
// encoding and RFC 7638 thumbprints in jwk.go).
func rawSign(key *KeyPair, signingInput []byte) ([]byte, error) {
	switch key.Kind {
	case KeyRSA2048, KeyRSA4096:
		sum := sha256.Sum256(signingInput)
		return rsa.SignPKCS1v15(rand.Reader, key.RSA, gocrypto.SHA256, sum[:])
	case KeyP256:
		sum := sha256.Sum256(signingInput)
		return signECDSA(key.ECDSA, sum[:], 32)
	case KeyP384:
		sum := sha512.Sum384(signingInput)
		return signECDSA(key.ECDSA, sum[:], 48)
	case KeyP521:
		sum := sha512.Sum512(signingInput)
		return signECDSA(key.ECDSA, sum[:], 66)
	case KeyEd25519:
		return ed25519.Sign(key.Ed25519Key, signingInput), nil
	case KeyEd448:
		return ed448SignRaw(key.Ed448Key, signingInput), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSigningAlg, key.Kind)
	}
}

// signECDSA signs a digest and encodes r||s as two fixed-width big-endian
// integers of byteSize length each, per RFC 7518 §3.4 (JWS requires this
// concatenated form, not the ASN.1 DER signature crypto/ecdsa.Sign produces
// by default via SignASN1).
func signECDSA(priv *ecdsa.PrivateKey, digest []byte, byteSize int) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, fmt.Errorf("crypto: ecdsa sign: %w", err)
	}
	out := make([]byte, 2*byteSize)
	r.FillBytes(out[:byteSize])
	s.FillBytes(out[byteSize:])
	return out, nil
}
