package crypto

import (
	gocrypto "crypto"
	"encoding/base64"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// JWK is acmed's own minimal JSON Web Key view, used only for the one key
// kind go-jose cannot represent: Ed448 has no registered JOSE "OKP" curve,
// so its JWK/thumbprint are built by hand per RFC 7638's canonical-member
// rule instead of through jose.JSONWebKey.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
}

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// publicJOSEJWK builds a *jose.JSONWebKey for every key kind go-jose
// natively marshals (RSA, the NIST P-curves, Ed25519).
func publicJOSEJWK(k *KeyPair) (*jose.JSONWebKey, error) {
	pub := k.Public()
	if pub == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, k.Kind)
	}
	return &jose.JSONWebKey{Key: pub}, nil
}

// jwkJSON returns the protected-header "jwk" member for any supported key
// kind: go-jose's canonical marshaling for everything but Ed448, and the
// hand-rolled encoding above for Ed448.
func jwkJSON(k *KeyPair) (any, error) {
	if k.Kind == KeyEd448 {
		return &JWK{Kty: "OKP", Crv: "Ed448", X: b64(k.Ed448Pub)}, nil
	}
	return publicJOSEJWK(k)
}

// PublicJWKJSON exposes jwkJSON for packages outside crypto that need to
// embed a key's JWK in a hand-built payload (e.g. the keyChange inner JWS).
func PublicJWKJSON(k *KeyPair) (any, error) {
	return jwkJSON(k)
}

// Thumbprint computes the RFC 7638 JWK thumbprint (SHA-256, base64url, no
// padding) of a key pair's public half.
func Thumbprint(k *KeyPair) (string, error) {
	if k.Kind == KeyEd448 {
		return ed448Thumbprint(k.Ed448Pub)
	}
	jwk, err := publicJOSEJWK(k)
	if err != nil {
		return "", err
	}
	sum, err := jwk.Thumbprint(gocrypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("crypto: jwk thumbprint: %w", err)
	}
	return b64(sum), nil
}

// KeyAuthorization builds the ACME key authorization string for a challenge
// token, per spec.md §4.4 step 3.
func KeyAuthorization(token string, accountKey *KeyPair) (string, error) {
	tp, err := Thumbprint(accountKey)
	if err != nil {
		return "", err
	}
	return token + "." + tp, nil
}
