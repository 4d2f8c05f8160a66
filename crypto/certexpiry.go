package crypto

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

// ParseCertExpiry returns the notAfter of the leaf certificate in a PEM
// chain, as a UTC instant (spec.md §4.1).
func ParseCertExpiry(pemChain []byte) (time.Time, error) {
	block, _ := pem.Decode(pemChain)
	if block == nil || block.Type != "CERTIFICATE" {
		return time.Time{}, fmt.Errorf("%w: no certificate PEM block found", ErrCorruptCertificate)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorruptCertificate, err)
	}

	return cert.NotAfter.UTC(), nil
}
