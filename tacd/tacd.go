// Package tacd implements the TLS-ALPN-01 responder daemon: a minimal TLS
// listener that presents a synthesized self-signed certificate carrying
// the acmeIdentifier extension and closes without exchanging application
// data (spec.md §4.8, RFC 8737), grounded on the teacher's Daemon
// lifecycle and TLS-config construction in server/server.go.
package tacd

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/acmed/acmed/crypto"
)

// ACMEALPNProtocol is the ALPN protocol name RFC 8737 reserves for this
// challenge.
const ACMEALPNProtocol = crypto.ACMEALPNProtocol

// Config configures one tacd listener.
type Config struct {
	// Listen is "host:port" for a TCP listener or "unix:/path/to/sock" for
	// a Unix socket (spec.md §6.2 -l/--listen).
	Listen string

	Domain    string
	DigestHex string // the acmeIdentifier extension value, hex-encoded
	KeyKind   crypto.KeyKind

	Logger *slog.Logger
}

// Daemon is tacd's single managed listener, matching the teacher's
// Name()/Start()/Stop(ctx) Daemon contract.
type Daemon struct {
	cfg      Config
	logger   *slog.Logger
	cert     tls.Certificate
	listener net.Listener

	mu      sync.Mutex
	wg      sync.WaitGroup
	closing bool
}

// New synthesizes the responder's certificate and prepares the listener
// (not yet accepting connections — call Start).
func New(cfg Config) (*Daemon, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cert, err := crypto.SynthesizeTLSALPNCertFromDigest(cfg.Domain, cfg.DigestHex, cfg.KeyKind)
	if err != nil {
		return nil, err
	}
	return &Daemon{cfg: cfg, logger: cfg.Logger, cert: cert}, nil
}

// Name identifies this daemon for logging.
func (d *Daemon) Name() string { return "tacd" }

// Start binds the listener and begins accepting connections in the
// background; it returns once the listener is bound.
func (d *Daemon) Start() error {
	network, address := parseListen(d.cfg.Listen)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{d.cert},
		NextProtos:   []string{ACMEALPNProtocol},
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	d.listener = tls.NewListener(ln, tlsConfig)

	d.wg.Add(1)
	go d.acceptLoop()
	return nil
}

// Stop closes the listener and waits for in-flight handshakes to finish.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()

	if d.listener != nil {
		_ = d.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Daemon) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			d.mu.Lock()
			closing := d.closing
			d.mu.Unlock()
			if closing {
				return
			}
			d.logger.Debug("tacd: accept error", "err", err)
			continue
		}
		d.wg.Add(1)
		go d.handle(conn)
	}
}

// handle drives one connection through the handshake and immediately
// closes it (spec.md §4.8 steps 1-3). tlsConfig.NextProtos advertises only
// acme-tls/1, so a peer whose ALPN list doesn't include it fails
// negotiation and the handshake itself errors out with no application
// data ever written; a peer that does select it completes the handshake
// and is closed right after, also without exchanging application bytes.
func (d *Daemon) handle(conn net.Conn) {
	defer d.wg.Done()
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return
	}
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		if !errors.Is(err, net.ErrClosed) {
			d.logger.Debug("tacd: handshake error", "err", err)
		}
		return
	}
}

// parseListen splits spec.md §6.2's "host:port | unix:path" listen address
// form into a net.Listen network/address pair.
func parseListen(listen string) (network, address string) {
	if rest, ok := strings.CutPrefix(listen, "unix:"); ok {
		return "unix", rest
	}
	return "tcp", listen
}
