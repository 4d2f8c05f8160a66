package main

import (
	"context"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/acmed/acmed/acme"
	"github.com/acmed/acmed/storage"
)

// revokeCertificate is the `-revoke` maintenance path: it loads the
// already-issued certificate for (name, keyType) off disk and revokes it
// through its configured endpoint/account, without touching the scheduler.
func (a *app) revokeCertificate(ctx context.Context, name, keyType string, reason *acme.RevocationReason) error {
	cfg := a.cfgProvider.Get()

	certConf, ok := findCertificate(cfg, name, keyType)
	if !ok {
		return fmt.Errorf("revoke: certificate %q (key type %q) is not configured", name, keyType)
	}
	epConf, ok := findEndpoint(cfg, certConf.Endpoint)
	if !ok {
		return fmt.Errorf("revoke: certificate %q: unknown endpoint %q", certConf.Name, certConf.Endpoint)
	}
	acctConf, ok := findAccount(cfg, certConf.Account)
	if !ok {
		return fmt.Errorf("revoke: certificate %q: unknown account %q", certConf.Name, certConf.Account)
	}

	client, _, err := a.acmeClientFor(ctx, epConf, acctConf)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

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
		return fmt.Errorf("revoke: render certificate file name: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(certDir, certName))
	if err != nil {
		return fmt.Errorf("revoke: read certificate file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return fmt.Errorf("revoke: no certificate PEM block found in %q", certName)
	}

	if err := client.RevokeCertificate(ctx, block.Bytes, reason); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}
