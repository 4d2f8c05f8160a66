package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"
)

// ed448Thumbprint computes the RFC 7638 thumbprint by hand for Ed448, since
// it has no registered JOSE "OKP" curve name and go-jose's JSONWebKey does
// not accept ed448.PublicKey.
func ed448Thumbprint(pub ed448.PublicKey) (string, error) {
	// Canonical member order for an OKP key per RFC 8037 §3 / RFC 7638 §3:
	// {"crv":"Ed448","kty":"OKP","x":"<b64url(pub)>"}
	canonical := fmt.Sprintf(`{"crv":"Ed448","kty":"OKP","x":%q}`, b64(pub))
	sum := sha256.Sum256([]byte(canonical))
	return b64(sum[:]), nil
}

// ed448SignRaw signs message with an Ed448 private key using the empty
// context string, matching the plain "Ed448" JWS algorithm (no Ed448ph).
func ed448SignRaw(priv ed448.PrivateKey, message []byte) []byte {
	return ed448.Sign(priv, message, "")
}
