package main

import (
	"context"
	"testing"

	"github.com/acmed/acmed/config"
)

func TestRevokeCertificateUnknownCertificate(t *testing.T) {
	a := &app{cfgProvider: config.NewProvider(&config.Config{})}
	err := a.revokeCertificate(context.Background(), "example.com", "p256", nil)
	if err == nil {
		t.Fatalf("expected error for an unconfigured certificate")
	}
}

func TestRevokeCertificateUnknownEndpoint(t *testing.T) {
	cfg := &config.Config{
		Certificates: []config.Certificate{{Name: "example.com", KeyType: "p256", Endpoint: "letsencrypt", Account: "default"}},
	}
	a := &app{cfgProvider: config.NewProvider(cfg)}
	err := a.revokeCertificate(context.Background(), "example.com", "p256", nil)
	if err == nil {
		t.Fatalf("expected error for an unconfigured endpoint")
	}
}

func TestRevokeCertificateUnknownAccount(t *testing.T) {
	cfg := &config.Config{
		Certificates: []config.Certificate{{Name: "example.com", KeyType: "p256", Endpoint: "letsencrypt", Account: "default"}},
		Endpoints:    []config.Endpoint{{Name: "letsencrypt"}},
	}
	a := &app{cfgProvider: config.NewProvider(cfg)}
	err := a.revokeCertificate(context.Background(), "example.com", "p256", nil)
	if err == nil {
		t.Fatalf("expected error for an unconfigured account")
	}
}
