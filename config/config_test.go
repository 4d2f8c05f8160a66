package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.toml"), `
[global]
renew_delay = "21d"

[[endpoint]]
name = "staging"
url = "https://acme-staging.example.com/directory"
tos_agreed = true

[[account]]
name = "default"
key_type = "p256"

[[certificate]]
name = "example.com"
endpoint = "staging"
account = "default"
key_type = "p256"
csr_digest = "sha256"

[[certificate.identifiers]]
type = "dns"
value = "example.com"
challenge = "http-01"

[[hook]]
name = "serve-http01"
type = ["challenge-http-01"]
cmd = "/bin/true"
`)

	cfg, err := Load(filepath.Join(dir, "main.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Certificates) != 1 || cfg.Certificates[0].Name != "example.com" {
		t.Fatalf("unexpected certificates: %+v", cfg.Certificates)
	}
	if cfg.Global.RenewDelay.Duration.Hours() != 21*24 {
		t.Fatalf("renew_delay = %s, want 504h", cfg.Global.RenewDelay.Duration)
	}
}

func TestValidateRejectsWildcardWithHTTP01(t *testing.T) {
	cfg := &Config{
		Certificates: []Certificate{{
			Name: "wild",
			Identifiers: []Identifier{
				{Type: "dns", Value: "*.example.com", Challenge: "http-01"},
			},
		}},
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected wildcard+http-01 to be rejected")
	}
}

func TestValidateRejectsIPWithDNS01(t *testing.T) {
	cfg := &Config{
		Certificates: []Certificate{{
			Name: "ipcert",
			Identifiers: []Identifier{
				{Type: "ip", Value: "192.0.2.1", Challenge: "dns-01"},
			},
		}},
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected ip+dns-01 to be rejected")
	}
}

func TestValidateRejectsHookCycle(t *testing.T) {
	cfg := &Config{
		Certificates: []Certificate{{
			Name:        "c",
			Identifiers: []Identifier{{Type: "dns", Value: "example.com", Challenge: "http-01"}},
			Hooks:       []string{"g1"},
		}},
		Groups: []Group{
			{Name: "g1", Hooks: []string{"g2"}},
			{Name: "g2", Hooks: []string{"g1"}},
		},
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected hook group cycle to be rejected")
	}
}

func TestLoadIncludeByGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "certs.toml"), `
[[certificate]]
name = "included.example.com"
endpoint = "staging"
account = "default"
key_type = "p256"
csr_digest = "sha256"

[[certificate.identifiers]]
type = "dns"
value = "included.example.com"
challenge = "http-01"
`)
	writeFile(t, filepath.Join(dir, "main.toml"), `
[[endpoint]]
name = "staging"
url = "https://acme-staging.example.com/directory"
tos_agreed = true

[[account]]
name = "default"
key_type = "p256"

[[include]]
globs = ["`+filepath.Join(dir, "*.toml")+`"]
`)

	cfg, err := Load(filepath.Join(dir, "main.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var found bool
	for _, c := range cfg.Certificates {
		if c.Name == "included.example.com" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected included certificate to be merged: %+v", cfg.Certificates)
	}
}
