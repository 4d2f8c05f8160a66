package crypto

import "errors"

// Error sentinels for the crypto facade, switched on by callers instead of
// string-matching messages.
var (
	// ErrUnsupportedAlgorithm is returned by Generate when the requested key
	// kind has no backing implementation available.
	ErrUnsupportedAlgorithm = errors.New("crypto: unsupported algorithm")

	// ErrCorruptCertificate is returned by ParseCertExpiry when the supplied
	// PEM chain does not contain a parseable leaf certificate.
	ErrCorruptCertificate = errors.New("crypto: corrupt certificate")

	// ErrUnsupportedSigningAlg is returned by Sign when the key type has no
	// known JWS algorithm mapping.
	ErrUnsupportedSigningAlg = errors.New("crypto: unsupported signing algorithm")
)
