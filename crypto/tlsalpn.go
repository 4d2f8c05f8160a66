package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// idPeACMEIdentifier is the acmeIdentifier X.509 extension OID defined by
// RFC 8737 §3 for the TLS-ALPN-01 challenge.
var idPeACMEIdentifier = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 31}

// ACMEALPNProtocol is the ALPN protocol name RFC 8737 reserves for the
// TLS-ALPN-01 challenge.
const ACMEALPNProtocol = "acme-tls/1"

// SynthesizeTLSALPNCert builds the ephemeral self-signed certificate tacd
// presents during a TLS-ALPN-01 handshake: SAN covering domain, validity
// window [now-1h, now+30d], and a CRITICAL acmeIdentifier extension whose
// value is an ASN.1 OCTET STRING wrapping digest(keyAuthorization)
// (spec.md §4.1/§4.8).
func SynthesizeTLSALPNCert(domain, keyAuthorization string, digest CSRDigest, keyKind KeyKind) (tls.Certificate, error) {
	key, err := Generate(keyKind)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: synthesize tls-alpn cert: %w", err)
	}
	signer, err := key.Signer()
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: synthesize tls-alpn cert: %w", err)
	}

	sum := digestSum(digest, []byte(keyAuthorization))
	extValue, err := asn1.Marshal(sum)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: marshal acmeIdentifier extension: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    now.Add(-1 * time.Hour),
		NotAfter:     now.Add(30 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtraExtensions: []pkix.Extension{
			{
				Id:       idPeACMEIdentifier,
				Critical: true,
				Value:    extValue,
			},
		},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), signer)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: create tls-alpn cert: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key.Private(),
	}, nil
}

// SynthesizeTLSALPNCertFromDigest builds the same certificate as
// SynthesizeTLSALPNCert, but takes the already-computed acmeIdentifier
// extension value as a hex string directly — the form tacd receives on its
// command line or stdin (spec.md §4.8), rather than deriving it itself
// from a key authorization.
func SynthesizeTLSALPNCertFromDigest(domain, digestHex string, keyKind KeyKind) (tls.Certificate, error) {
	sum, err := hex.DecodeString(digestHex)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: decode acmeIdentifier digest: %w", err)
	}

	key, err := Generate(keyKind)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: synthesize tls-alpn cert: %w", err)
	}
	signer, err := key.Signer()
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: synthesize tls-alpn cert: %w", err)
	}

	extValue, err := asn1.Marshal(sum)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: marshal acmeIdentifier extension: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    now.Add(-1 * time.Hour),
		NotAfter:     now.Add(30 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtraExtensions: []pkix.Extension{
			{Id: idPeACMEIdentifier, Critical: true, Value: extValue},
		},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), signer)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("crypto: create tls-alpn cert: %w", err)
	}

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key.Private()}, nil
}

func digestSum(digest CSRDigest, data []byte) []byte {
	switch digest {
	case DigestSHA384:
		sum := sha512.Sum384(data)
		return sum[:]
	case DigestSHA512:
		sum := sha512.Sum512(data)
		return sum[:]
	default:
		sum := sha256.Sum256(data)
		return sum[:]
	}
}
