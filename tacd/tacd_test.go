package tacd

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"net"
	"testing"
	"time"

	"github.com/acmed/acmed/crypto"
)

func freeListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestDaemonHandshakeWithACMEALPN(t *testing.T) {
	sum := sha256.Sum256([]byte("token.thumbprint"))
	digestHex := hex.EncodeToString(sum[:])
	addr := freeListenAddr(t)

	d, err := New(Config{Listen: addr, Domain: "foo.test", DigestHex: digestHex, KeyKind: crypto.KeyP256})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)

	conn, err := tls.Dial("tcp", addr, &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{ACMEALPNProtocol, "h2"},
	})
	if err != nil {
		t.Fatalf("tls.Dial: %v", err)
	}
	defer conn.Close()

	state := conn.ConnectionState()
	if state.NegotiatedProtocol != ACMEALPNProtocol {
		t.Fatalf("negotiated protocol = %q, want %q", state.NegotiatedProtocol, ACMEALPNProtocol)
	}
	if len(state.PeerCertificates) != 1 {
		t.Fatalf("expected exactly one presented certificate, got %d", len(state.PeerCertificates))
	}

	cert := state.PeerCertificates[0]
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "foo.test" {
		t.Fatalf("unexpected SAN: %v", cert.DNSNames)
	}

	var extValue []byte
	for _, ext := range cert.Extensions {
		if ext.Id.String() == "1.3.6.1.5.5.7.1.31" {
			if !ext.Critical {
				t.Fatalf("acmeIdentifier extension must be critical")
			}
			extValue = ext.Value
		}
	}
	if extValue == nil {
		t.Fatalf("acmeIdentifier extension not present")
	}
}

func TestDaemonRejectsNonACMEALPN(t *testing.T) {
	sum := sha256.Sum256([]byte("token.thumbprint"))
	digestHex := hex.EncodeToString(sum[:])
	addr := freeListenAddr(t)

	d, err := New(Config{Listen: addr, Domain: "foo.test", DigestHex: digestHex, KeyKind: crypto.KeyP256})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)

	_, err = tls.Dial("tcp", addr, &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"h2"},
	})
	if err == nil {
		t.Fatalf("expected handshake failure when acme-tls/1 is not offered")
	}
}
