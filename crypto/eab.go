package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash"
)

// eabProtectedHeader is the inner JWS header for external account binding
// (RFC 8555 §7.3.4): kid is the CA-issued EAB key identifier, and jwk (not
// kid) carries the account's public key as the payload's subject.
type eabProtectedHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	URL string `json:"url"`
}

// eabHash resolves a CA-advertised EAB signature algorithm to its HMAC hash
// constructor, defaulting to HS256 (the value almost every CA requests).
func eabHash(algorithm string) (alg string, newHash func() hash.Hash) {
	switch algorithm {
	case "HS384":
		return "HS384", sha512.New384
	case "HS512":
		return "HS512", sha512.New
	default:
		return "HS256", sha256.New
	}
}

// SignHMAC builds the inner JWS of an external-account-binding request: its
// payload is the account key's JWK, signed under the CA-issued MAC key with
// the CA's requested algorithm (HS256/HS384/HS512, spec.md §4.4), protected
// header {alg, kid:eabKeyID, url}.
func SignHMAC(macKey []byte, eabKeyID, url, signatureAlgorithm string, accountKey *KeyPair) (*FlattenedJWS, error) {
	jwk, err := jwkJSON(accountKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: eab: %w", err)
	}
	payload, err := json.Marshal(jwk)
	if err != nil {
		return nil, fmt.Errorf("crypto: eab: marshal jwk payload: %w", err)
	}

	alg, newHash := eabHash(signatureAlgorithm)
	hdr := eabProtectedHeader{Alg: alg, Kid: eabKeyID, URL: url}
	protectedJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("crypto: eab: marshal protected header: %w", err)
	}

	protectedB64 := base64.RawURLEncoding.EncodeToString(protectedJSON)
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	signingInput := protectedB64 + "." + payloadB64

	mac := hmac.New(newHash, macKey)
	mac.Write([]byte(signingInput))
	sig := mac.Sum(nil)

	return &FlattenedJWS{
		Protected: protectedB64,
		Payload:   payloadB64,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
	}, nil
}
