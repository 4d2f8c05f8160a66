package crypto

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"net"
)

// IdentifierKind distinguishes a DNS name from an IP literal in a CSR/order
// identifier list (spec.md §3, RFC 8738).
type IdentifierKind string

const (
	IdentifierDNS IdentifierKind = "dns"
	IdentifierIP  IdentifierKind = "ip"
)

// Identifier is one certificate subject alternative name.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// SubjectAttrs carries the optional CSR subject fields spec.md §4.1 lists.
// Every field is optional; only non-empty ones are added to the subject.
type SubjectAttrs struct {
	CommonName          string
	Organization        string
	OrganizationalUnit  string
	Country             string
	Locality            string
	Province            string
	StreetAddress       string
	PostalCode          string
	PostalAddress       string
	SerialNumber        string
	EmailAddress        string
	GivenName           string
	Surname             string
	Initials            string
	Title               string
	GenerationQualifier string
	DNQualifier         string
	UserID              string
	Name                string
}

// Attribute OIDs absent from pkix.Name's typed fields, added as
// ExtraNames. oidPKCS9EmailAddress is RFC 2985 pkcs9_emailAddress; the
// rest are RFC 4519/X.520 attribute types, except oidUserID which is the
// COSINE/RFC 4519 "uid" attribute.
var (
	oidPKCS9EmailAddress   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}
	oidSurname             = asn1.ObjectIdentifier{2, 5, 4, 4}
	oidTitle               = asn1.ObjectIdentifier{2, 5, 4, 12}
	oidPostalAddress       = asn1.ObjectIdentifier{2, 5, 4, 16}
	oidName                = asn1.ObjectIdentifier{2, 5, 4, 41}
	oidGivenName           = asn1.ObjectIdentifier{2, 5, 4, 42}
	oidInitials            = asn1.ObjectIdentifier{2, 5, 4, 43}
	oidGenerationQualifier = asn1.ObjectIdentifier{2, 5, 4, 44}
	oidDNQualifier         = asn1.ObjectIdentifier{2, 5, 4, 46}
	oidUserID              = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}
)

func (s SubjectAttrs) toPkixName() pkix.Name {
	name := pkix.Name{CommonName: s.CommonName}
	if s.Organization != "" {
		name.Organization = []string{s.Organization}
	}
	if s.OrganizationalUnit != "" {
		name.OrganizationalUnit = []string{s.OrganizationalUnit}
	}
	if s.Country != "" {
		name.Country = []string{s.Country}
	}
	if s.Locality != "" {
		name.Locality = []string{s.Locality}
	}
	if s.Province != "" {
		name.Province = []string{s.Province}
	}
	if s.StreetAddress != "" {
		name.StreetAddress = []string{s.StreetAddress}
	}
	if s.PostalCode != "" {
		name.PostalCode = []string{s.PostalCode}
	}
	if s.SerialNumber != "" {
		name.SerialNumber = s.SerialNumber
	}
	extra := []struct {
		oid   asn1.ObjectIdentifier
		value string
	}{
		{oidPKCS9EmailAddress, s.EmailAddress},
		{oidPostalAddress, s.PostalAddress},
		{oidGivenName, s.GivenName},
		{oidSurname, s.Surname},
		{oidInitials, s.Initials},
		{oidTitle, s.Title},
		{oidGenerationQualifier, s.GenerationQualifier},
		{oidDNQualifier, s.DNQualifier},
		{oidUserID, s.UserID},
		{oidName, s.Name},
	}
	for _, e := range extra {
		if e.value == "" {
			continue
		}
		name.ExtraNames = append(name.ExtraNames, pkix.AttributeTypeAndValue{Type: e.oid, Value: e.value})
	}
	return name
}

// CSRDigest identifies the hash algorithm used to sign the CSR.
type CSRDigest string

const (
	DigestSHA256 CSRDigest = "sha256"
	DigestSHA384 CSRDigest = "sha384"
	DigestSHA512 CSRDigest = "sha512"
)

func (d CSRDigest) signatureAlgorithm(kind KeyKind) x509.SignatureAlgorithm {
	switch kind {
	case KeyRSA2048, KeyRSA4096:
		switch d {
		case DigestSHA384:
			return x509.SHA384WithRSA
		case DigestSHA512:
			return x509.SHA512WithRSA
		default:
			return x509.SHA256WithRSA
		}
	case KeyP256, KeyP384, KeyP521:
		switch d {
		case DigestSHA384:
			return x509.ECDSAWithSHA384
		case DigestSHA512:
			return x509.ECDSAWithSHA512
		default:
			return x509.ECDSAWithSHA256
		}
	case KeyEd25519:
		return x509.PureEd25519
	default:
		return x509.UnknownSignatureAlgorithm
	}
}

// BuildCSR produces a DER-encoded PKCS#10 CSR for the given identifiers,
// deduplicated, with DNS names in the SAN dNSName field and IP identifiers
// in the SAN iPAddress field (spec.md §4.1).
func BuildCSR(identifiers []Identifier, key *KeyPair, digest CSRDigest, subject SubjectAttrs) ([]byte, error) {
	if len(identifiers) == 0 {
		return nil, fmt.Errorf("crypto: build csr: no identifiers")
	}

	seen := make(map[string]bool, len(identifiers))
	var dnsNames []string
	var ips []net.IP
	for _, id := range identifiers {
		key := string(id.Kind) + ":" + id.Value
		if seen[key] {
			continue
		}
		seen[key] = true
		switch id.Kind {
		case IdentifierDNS:
			dnsNames = append(dnsNames, id.Value)
		case IdentifierIP:
			ip := net.ParseIP(id.Value)
			if ip == nil {
				return nil, fmt.Errorf("crypto: build csr: invalid ip identifier %q", id.Value)
			}
			ips = append(ips, ip)
		}
	}

	template := &x509.CertificateRequest{
		Subject:            subject.toPkixName(),
		DNSNames:           dnsNames,
		IPAddresses:        ips,
		SignatureAlgorithm: digest.signatureAlgorithm(key.Kind),
	}

	// crypto/x509 has no Ed448 signature algorithm, so CSRs for an Ed448
	// certificate key cannot be produced through the stdlib path; Ed448
	// remains fully usable for account keys (crypto/jws.go), just not here.
	signer, err := key.Signer()
	if err != nil {
		return nil, fmt.Errorf("crypto: build csr: %w", err)
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, template, signer)
	if err != nil {
		return nil, fmt.Errorf("crypto: create csr: %w", err)
	}
	return der, nil
}

// ParseCSR parses a DER-encoded CSR back into its identifiers and subject
// attributes, used by tests validating the BuildCSR/ParseCSR round trip
// (spec.md §8).
func ParseCSR(der []byte) ([]Identifier, SubjectAttrs, error) {
	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return nil, SubjectAttrs{}, fmt.Errorf("crypto: parse csr: %w", err)
	}

	var ids []Identifier
	for _, n := range csr.DNSNames {
		ids = append(ids, Identifier{Kind: IdentifierDNS, Value: n})
	}
	for _, ip := range csr.IPAddresses {
		ids = append(ids, Identifier{Kind: IdentifierIP, Value: ip.String()})
	}

	attrs := SubjectAttrs{CommonName: csr.Subject.CommonName}
	if len(csr.Subject.Organization) > 0 {
		attrs.Organization = csr.Subject.Organization[0]
	}
	if len(csr.Subject.OrganizationalUnit) > 0 {
		attrs.OrganizationalUnit = csr.Subject.OrganizationalUnit[0]
	}
	if len(csr.Subject.Country) > 0 {
		attrs.Country = csr.Subject.Country[0]
	}
	if len(csr.Subject.Locality) > 0 {
		attrs.Locality = csr.Subject.Locality[0]
	}
	if len(csr.Subject.Province) > 0 {
		attrs.Province = csr.Subject.Province[0]
	}
	attrs.SerialNumber = csr.Subject.SerialNumber
	// Parsing populates Names (every attribute seen, typed or not), not
	// ExtraNames (which pkix.Name only consults when marshaling).
	for _, atv := range csr.Subject.Names {
		s, ok := atv.Value.(string)
		if !ok {
			continue
		}
		switch {
		case atv.Type.Equal(oidPKCS9EmailAddress):
			attrs.EmailAddress = s
		case atv.Type.Equal(oidPostalAddress):
			attrs.PostalAddress = s
		case atv.Type.Equal(oidGivenName):
			attrs.GivenName = s
		case atv.Type.Equal(oidSurname):
			attrs.Surname = s
		case atv.Type.Equal(oidInitials):
			attrs.Initials = s
		case atv.Type.Equal(oidTitle):
			attrs.Title = s
		case atv.Type.Equal(oidGenerationQualifier):
			attrs.GenerationQualifier = s
		case atv.Type.Equal(oidDNQualifier):
			attrs.DNQualifier = s
		case atv.Type.Equal(oidUserID):
			attrs.UserID = s
		case atv.Type.Equal(oidName):
			attrs.Name = s
		}
	}

	return ids, attrs, nil
}
