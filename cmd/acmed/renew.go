package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/acmed/acmed/acme"
	"github.com/acmed/acmed/config"
	"github.com/acmed/acmed/crypto"
	"github.com/acmed/acmed/hook"
	"github.com/acmed/acmed/scheduler"
	"github.com/acmed/acmed/storage"
)

// renew performs one full issuance/renewal pass for a task (spec.md §4.4's
// state machine): directory/account resolution, order creation,
// per-authorization challenge solving via hooks, finalize, download and
// persistence to the templated certificate/key files.
func (a *app) renew(ctx context.Context, task scheduler.Task) scheduler.Outcome {
	cfg := a.cfgProvider.Get()
	name, keyType := splitTaskName(task.Name)

	certConf, ok := findCertificate(cfg, name, keyType)
	if !ok {
		return scheduler.Outcome{Err: fmt.Errorf("renew: certificate %q no longer configured", task.Name)}
	}
	epConf, ok := findEndpoint(cfg, certConf.Endpoint)
	if !ok {
		return scheduler.Outcome{Err: fmt.Errorf("renew: certificate %q: unknown endpoint %q", certConf.Name, certConf.Endpoint)}
	}
	acctConf, ok := findAccount(cfg, certConf.Account)
	if !ok {
		return scheduler.Outcome{Err: fmt.Errorf("renew: certificate %q: unknown account %q", certConf.Name, certConf.Account)}
	}

	delay := certConf.RenewDelay.Duration
	if delay == 0 {
		delay = cfg.Global.RenewDelay.Duration
	}
	if delay == 0 {
		delay = 21 * 24 * time.Hour
	}
	if notAfter, fresh := a.checkExistingCertificate(certConf, delay); fresh {
		a.logger.Info("certificate still valid, skipping renewal", "certificate", certConf.Name, "not_after", notAfter)
		return scheduler.Outcome{Success: true, NotAfter: notAfter}
	}

	client, _, err := a.acmeClientFor(ctx, epConf, acctConf)
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: %w", certConf.Name, err)}
	}

	certKey, err := crypto.Generate(crypto.KeyKind(certConf.KeyType))
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: generate certificate key: %w", certConf.Name, err)}
	}

	digest := crypto.CSRDigest(certConf.CSRDigest)
	if digest == "" {
		digest = crypto.DigestSHA256
	}
	csrDER, err := crypto.BuildCSR(toCryptoIdentifiers(certConf.Identifiers), certKey, digest, toSubjectAttrs(certConf.SubjectAttributes))
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: build csr: %w", certConf.Name, err)}
	}

	order, err := client.NewOrder(ctx, toOrderIdentifiers(certConf.Identifiers), time.Time{}, time.Time{})
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: new order: %w", certConf.Name, err)}
	}

	env := mergeEnv(cfg.Global.Env, acctConf.Env, certConf.Env)
	prover := &hookProver{registry: a.hooks, hooks: certConf.Hooks, env: env}

	for _, authzURL := range order.Authorizations {
		authz, err := client.GetAuthorization(ctx, authzURL)
		if err != nil {
			return scheduler.Outcome{Err: fmt.Errorf("renew %q: get authorization: %w", certConf.Name, err)}
		}
		challengeType := challengeTypeFor(certConf, authz.Identifier.Value)
		if challengeType == "" {
			return scheduler.Outcome{Err: fmt.Errorf("renew %q: no configured challenge for identifier %q", certConf.Name, authz.Identifier.Value)}
		}
		if err := client.SolveAuthorization(ctx, authzURL, challengeType, certConf.KeyType, prover); err != nil {
			return scheduler.Outcome{Err: fmt.Errorf("renew %q: %w", certConf.Name, err)}
		}
	}

	order, err = client.Finalize(ctx, order, csrDER)
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: finalize: %w", certConf.Name, err)}
	}
	order, err = client.PollOrder(ctx, order)
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: poll order: %w", certConf.Name, err)}
	}

	pemChain, err := client.DownloadCertificate(ctx, order, "")
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: download certificate: %w", certConf.Name, err)}
	}
	expiry, err := crypto.ParseCertExpiry(pemChain)
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: parse certificate expiry: %w", certConf.Name, err)}
	}
	keyPEM, err := crypto.EncodePrivateKeyPEM(certKey)
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: encode certificate key: %w", certConf.Name, err)}
	}

	if err := a.persist(ctx, certConf, pemChain, keyPEM, env); err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("renew %q: %w", certConf.Name, err)}
	}

	a.logger.Info("certificate renewed", "certificate", certConf.Name, "not_after", expiry)
	return scheduler.Outcome{Success: true, NotAfter: expiry}
}

func (a *app) persist(ctx context.Context, certConf config.Certificate, pemChain, keyPEM []byte, env map[string]string) error {
	certDir := defaultCertDir
	keyDir := defaultKeyDir
	if certConf.Directory != "" {
		certDir = certConf.Directory
		keyDir = certConf.Directory
	}

	nameFormat := certConf.NameFormat
	if nameFormat == "" {
		nameFormat = defaultNameFormat
	}
	keyNameFormat := certConf.KeyFileNameFormat
	if keyNameFormat == "" {
		keyNameFormat = defaultKeyNameFormat
	}

	certName, err := storage.RenderName(nameFormat, storage.NameVars{Name: certConf.Name, KeyType: certConf.KeyType, FileType: "cert", Ext: "pem"})
	if err != nil {
		return fmt.Errorf("render certificate file name: %w", err)
	}
	keyName, err := storage.RenderName(keyNameFormat, storage.NameVars{Name: certConf.Name, KeyType: certConf.KeyType, FileType: "key", Ext: "pem"})
	if err != nil {
		return fmt.Errorf("render key file name: %w", err)
	}

	writer := &storage.FileWriter{CertDir: certDir, KeyDir: keyDir, Registry: a.hooks, Hooks: certConf.Hooks, Env: env}
	if err := writer.WriteCertificate(ctx, certName, pemChain); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	if err := writer.WriteKey(ctx, keyName, keyPEM); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}

// postOperation runs the post-operation hooks spec.md §4.5 step 3/4
// requires after every pass, success or failure.
func (a *app) postOperation(ctx context.Context, task scheduler.Task, success bool) {
	cfg := a.cfgProvider.Get()
	name, keyType := splitTaskName(task.Name)
	certConf, ok := findCertificate(cfg, name, keyType)
	if !ok {
		return
	}
	resolved, err := a.hooks.Resolve(certConf.Hooks, hook.TriggerPostOperation)
	if err != nil {
		a.logger.Warn("resolve post-operation hooks failed", "certificate", certConf.Name, "err", err)
		return
	}
	if len(resolved) == 0 {
		return
	}
	env := mergeEnv(cfg.Global.Env, certConf.Env)
	status := "false"
	if success {
		status = "true"
	}
	vars := hook.Vars{Fields: map[string]string{"identifier": certConf.Name, "is_success": status}, Env: env}
	if err := hook.Run(ctx, resolved, vars); err != nil {
		a.logger.Warn("post-operation hook failed", "certificate", certConf.Name, "err", err)
	}
}

func challengeTypeFor(certConf config.Certificate, identifierValue string) string {
	for _, id := range certConf.Identifiers {
		if id.Value == identifierValue {
			return id.Challenge
		}
	}
	return ""
}

func toCryptoIdentifiers(ids []config.Identifier) []crypto.Identifier {
	out := make([]crypto.Identifier, len(ids))
	for i, id := range ids {
		out[i] = crypto.Identifier{Kind: crypto.IdentifierKind(id.Type), Value: id.Value}
	}
	return out
}

func toOrderIdentifiers(ids []config.Identifier) []acme.OrderIdentifier {
	out := make([]acme.OrderIdentifier, len(ids))
	for i, id := range ids {
		out[i] = acme.OrderIdentifier{Type: id.Type, Value: id.Value}
	}
	return out
}

func toSubjectAttrs(sa config.SubjectAttributes) crypto.SubjectAttrs {
	return crypto.SubjectAttrs{
		CommonName:          sa.CommonName,
		Organization:        sa.Organization,
		OrganizationalUnit:  sa.OrganizationalUnit,
		Country:             sa.Country,
		Locality:            sa.Locality,
		Province:            sa.Province,
		StreetAddress:       sa.StreetAddress,
		PostalCode:          sa.PostalCode,
		PostalAddress:       sa.PostalAddress,
		SerialNumber:        sa.SerialNumber,
		EmailAddress:        sa.EmailAddress,
		GivenName:           sa.GivenName,
		Surname:             sa.Surname,
		Initials:            sa.Initials,
		Title:               sa.Title,
		GenerationQualifier: sa.GenerationQualifier,
		DNQualifier:         sa.DNQualifier,
		UserID:              sa.UserID,
		Name:                sa.Name,
	}
}

// checkExistingCertificate implements spec.md §4.5's "needs renewal"
// predicate: a certificate is still fresh only if its file exists, its
// SANs and key type still match the configuration, and notAfter minus
// delay is still in the future. Any failure to read or parse the existing
// file is treated as "needs renewal", same as a missing file.
func (a *app) checkExistingCertificate(certConf config.Certificate, delay time.Duration) (notAfter time.Time, fresh bool) {
	certDir := defaultCertDir
	if certConf.Directory != "" {
		certDir = certConf.Directory
	}
	nameFormat := certConf.NameFormat
	if nameFormat == "" {
		nameFormat = defaultNameFormat
	}
	certName, err := storage.RenderName(nameFormat, storage.NameVars{Name: certConf.Name, KeyType: certConf.KeyType, FileType: "cert", Ext: "pem"})
	if err != nil {
		return time.Time{}, false
	}

	data, err := os.ReadFile(filepath.Join(certDir, certName))
	if err != nil {
		return time.Time{}, false
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return time.Time{}, false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return time.Time{}, false
	}

	if !identifiersMatchCert(cert, certConf.Identifiers) {
		return time.Time{}, false
	}
	if !keyKindMatchesCert(crypto.KeyKind(certConf.KeyType), cert) {
		return time.Time{}, false
	}
	if time.Until(cert.NotAfter) <= delay {
		return cert.NotAfter, false
	}
	return cert.NotAfter, true
}

func identifiersMatchCert(cert *x509.Certificate, ids []config.Identifier) bool {
	wantDNS := make(map[string]bool, len(ids))
	wantIP := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id.Type == "ip" {
			wantIP[id.Value] = true
		} else {
			wantDNS[id.Value] = true
		}
	}
	if len(cert.DNSNames) != len(wantDNS) || len(cert.IPAddresses) != len(wantIP) {
		return false
	}
	for _, name := range cert.DNSNames {
		if !wantDNS[name] {
			return false
		}
	}
	for _, ip := range cert.IPAddresses {
		if !wantIP[ip.String()] {
			return false
		}
	}
	return true
}

// keyKindMatchesCert reports whether cert's public key matches kind.
// Ed448 has no x509.PublicKeyAlgorithm of its own, so it is recognized by
// the stdlib parser falling back to UnknownPublicKeyAlgorithm; this is a
// weak signal but the best the stdlib parser offers.
func keyKindMatchesCert(kind crypto.KeyKind, cert *x509.Certificate) bool {
	switch kind {
	case crypto.KeyRSA2048:
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		return ok && pub.N.BitLen() == 2048
	case crypto.KeyRSA4096:
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		return ok && pub.N.BitLen() == 4096
	case crypto.KeyP256:
		pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		return ok && pub.Curve == elliptic.P256()
	case crypto.KeyP384:
		pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		return ok && pub.Curve == elliptic.P384()
	case crypto.KeyP521:
		pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
		return ok && pub.Curve == elliptic.P521()
	case crypto.KeyEd25519:
		_, ok := cert.PublicKey.(ed25519.PublicKey)
		return ok
	case crypto.KeyEd448:
		return cert.PublicKeyAlgorithm == x509.UnknownPublicKeyAlgorithm
	default:
		return false
	}
}

func mergeEnv(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
