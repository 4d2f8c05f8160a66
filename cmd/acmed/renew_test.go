package main

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/acmed/acmed/config"
	"github.com/acmed/acmed/crypto"
	"github.com/acmed/acmed/storage"
)

// selfSignedTestCert writes a self-signed certificate for identifiers under
// certDir, named per certConf's name format (or the default one), and
// returns its notAfter as stored in the certificate (whole seconds).
func selfSignedTestCert(t *testing.T, certDir string, certConf config.Certificate, notAfter time.Time) time.Time {
	t.Helper()
	key, err := crypto.Generate(crypto.KeyKind(certConf.KeyType))
	if err != nil {
		t.Fatalf("crypto.Generate: %v", err)
	}
	signer, err := key.Signer()
	if err != nil {
		t.Fatalf("key.Signer: %v", err)
	}

	var dnsNames []string
	var ips []net.IP
	for _, id := range certConf.Identifiers {
		if id.Type == "ip" {
			ips = append(ips, net.ParseIP(id.Value))
		} else {
			dnsNames = append(dnsNames, id.Value)
		}
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: certConf.Name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		DNSNames:     dnsNames,
		IPAddresses:  ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	if err != nil {
		t.Fatalf("x509.CreateCertificate: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	nameFormat := certConf.NameFormat
	if nameFormat == "" {
		nameFormat = defaultNameFormat
	}
	certName, err := storage.RenderName(nameFormat, storage.NameVars{Name: certConf.Name, KeyType: certConf.KeyType, FileType: "cert", Ext: "pem"})
	if err != nil {
		t.Fatalf("RenderName: %v", err)
	}
	if err := os.WriteFile(filepath.Join(certDir, certName), pemBytes, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return notAfter.Truncate(time.Second)
}

func TestChallengeTypeForMatchesIdentifierValue(t *testing.T) {
	certConf := config.Certificate{
		Identifiers: []config.Identifier{
			{Type: "dns", Value: "example.com", Challenge: "http-01"},
			{Type: "dns", Value: "*.example.com", Challenge: "dns-01"},
		},
	}

	if got := challengeTypeFor(certConf, "example.com"); got != "http-01" {
		t.Fatalf("challengeTypeFor(example.com) = %q, want http-01", got)
	}
	if got := challengeTypeFor(certConf, "*.example.com"); got != "dns-01" {
		t.Fatalf("challengeTypeFor(*.example.com) = %q, want dns-01", got)
	}
	if got := challengeTypeFor(certConf, "unknown.example.com"); got != "" {
		t.Fatalf("challengeTypeFor(unknown) = %q, want empty", got)
	}
}

func TestToCryptoAndOrderIdentifiers(t *testing.T) {
	ids := []config.Identifier{
		{Type: "dns", Value: "example.com"},
		{Type: "ip", Value: "203.0.113.1"},
	}

	cryptoIDs := toCryptoIdentifiers(ids)
	if len(cryptoIDs) != 2 || cryptoIDs[0].Value != "example.com" || cryptoIDs[1].Value != "203.0.113.1" {
		t.Fatalf("toCryptoIdentifiers = %+v", cryptoIDs)
	}

	orderIDs := toOrderIdentifiers(ids)
	if len(orderIDs) != 2 || orderIDs[0].Type != "dns" || orderIDs[1].Type != "ip" {
		t.Fatalf("toOrderIdentifiers = %+v", orderIDs)
	}
}

func TestToSubjectAttrsCopiesFields(t *testing.T) {
	sa := config.SubjectAttributes{CommonName: "example.com", Country: "US", Organization: "Example Corp"}
	got := toSubjectAttrs(sa)
	if got.CommonName != "example.com" || got.Country != "US" || got.Organization != "Example Corp" {
		t.Fatalf("toSubjectAttrs = %+v", got)
	}
}

func TestMergeEnvLaterMapsWin(t *testing.T) {
	got := mergeEnv(
		map[string]string{"A": "global", "B": "global"},
		map[string]string{"B": "account"},
		map[string]string{"C": "cert"},
	)
	want := map[string]string{"A": "global", "B": "account", "C": "cert"}
	if len(got) != len(want) {
		t.Fatalf("mergeEnv len = %d, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("mergeEnv[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestCheckExistingCertificateMissingFileNeedsRenewal(t *testing.T) {
	a := &app{}
	certConf := config.Certificate{Name: "example", KeyType: "p256", Directory: t.TempDir()}
	if _, fresh := a.checkExistingCertificate(certConf, 30*24*time.Hour); fresh {
		t.Fatalf("expected missing certificate file to need renewal")
	}
}

func TestCheckExistingCertificateFreshWithinDelay(t *testing.T) {
	a := &app{}
	dir := t.TempDir()
	certConf := config.Certificate{
		Name:        "example",
		KeyType:     "p256",
		Directory:   dir,
		Identifiers: []config.Identifier{{Type: "dns", Value: "example.com"}},
	}
	wantNotAfter := selfSignedTestCert(t, dir, certConf, time.Now().Add(90*24*time.Hour))

	notAfter, fresh := a.checkExistingCertificate(certConf, 30*24*time.Hour)
	if !fresh {
		t.Fatalf("expected certificate to be fresh")
	}
	if !notAfter.Equal(wantNotAfter) {
		t.Fatalf("notAfter = %s, want %s", notAfter, wantNotAfter)
	}
}

func TestCheckExistingCertificateWithinRenewalWindowNeedsRenewal(t *testing.T) {
	a := &app{}
	dir := t.TempDir()
	certConf := config.Certificate{
		Name:        "example",
		KeyType:     "p256",
		Directory:   dir,
		Identifiers: []config.Identifier{{Type: "dns", Value: "example.com"}},
	}
	selfSignedTestCert(t, dir, certConf, time.Now().Add(5*24*time.Hour))

	if _, fresh := a.checkExistingCertificate(certConf, 30*24*time.Hour); fresh {
		t.Fatalf("expected certificate inside the renewal window to need renewal")
	}
}

func TestCheckExistingCertificateIdentifierChangeNeedsRenewal(t *testing.T) {
	a := &app{}
	dir := t.TempDir()
	certConf := config.Certificate{
		Name:        "example",
		KeyType:     "p256",
		Directory:   dir,
		Identifiers: []config.Identifier{{Type: "dns", Value: "example.com"}},
	}
	selfSignedTestCert(t, dir, certConf, time.Now().Add(90*24*time.Hour))

	changed := certConf
	changed.Identifiers = []config.Identifier{{Type: "dns", Value: "example.com"}, {Type: "dns", Value: "www.example.com"}}
	if _, fresh := a.checkExistingCertificate(changed, 30*24*time.Hour); fresh {
		t.Fatalf("expected identifier change to need renewal")
	}
}

func TestCheckExistingCertificateKeyTypeChangeNeedsRenewal(t *testing.T) {
	a := &app{}
	dir := t.TempDir()
	certConf := config.Certificate{
		Name:        "example",
		KeyType:     "p256",
		Directory:   dir,
		Identifiers: []config.Identifier{{Type: "dns", Value: "example.com"}},
	}
	// A name format without {{ key_type }} keeps the file name the same
	// after the key type changes, so the key kind check is what fails.
	certConf.NameFormat = "{{ name }}.{{ file_type }}.{{ ext }}"
	selfSignedTestCert(t, dir, certConf, time.Now().Add(90*24*time.Hour))

	changed := certConf
	changed.KeyType = "rsa4096"
	if _, fresh := a.checkExistingCertificate(changed, 30*24*time.Hour); fresh {
		t.Fatalf("expected key type change to need renewal")
	}
}

func TestIdentifiersMatchCert(t *testing.T) {
	cert := &x509.Certificate{DNSNames: []string{"example.com", "www.example.com"}}
	match := []config.Identifier{{Type: "dns", Value: "example.com"}, {Type: "dns", Value: "www.example.com"}}
	if !identifiersMatchCert(cert, match) {
		t.Fatalf("expected identifiers to match")
	}
	mismatch := []config.Identifier{{Type: "dns", Value: "example.com"}}
	if identifiersMatchCert(cert, mismatch) {
		t.Fatalf("expected identifier count mismatch to fail")
	}
}

func TestKeyKindMatchesCert(t *testing.T) {
	key, err := crypto.Generate(crypto.KeyP256)
	if err != nil {
		t.Fatalf("crypto.Generate: %v", err)
	}
	signer, err := key.Signer()
	if err != nil {
		t.Fatalf("key.Signer: %v", err)
	}
	template := &x509.Certificate{SerialNumber: big.NewInt(1), NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, template, template, signer.Public(), signer)
	if err != nil {
		t.Fatalf("x509.CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("x509.ParseCertificate: %v", err)
	}

	if !keyKindMatchesCert(crypto.KeyP256, cert) {
		t.Fatalf("expected P-256 key to match")
	}
	if keyKindMatchesCert(crypto.KeyP384, cert) {
		t.Fatalf("expected P-384 mismatch")
	}
	if keyKindMatchesCert(crypto.KeyRSA2048, cert) {
		t.Fatalf("expected RSA mismatch")
	}
}
