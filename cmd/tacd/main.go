// Command tacd is the TLS-ALPN-01 responder daemon (RFC 8737): a minimal
// TLS listener that presents a synthesized certificate carrying the
// acmeIdentifier extension and closes the connection right after the
// handshake (spec.md §4.8/§6.2).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/acmed/acmed/crypto"
	"github.com/acmed/acmed/logger"
	"github.com/acmed/acmed/tacd"
)

const version = "tacd 1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		acmeExt        string
		acmeExtFile    string
		crtDigest      string
		crtSigAlg      string
		domain         string
		domainFile     string
		foreground     bool
		listen         string
		logStderr      bool
		logSyslog      bool
		logLevel       string
		noPIDFile      bool
		pidFile        string
		showVer        bool
	)

	fs := flag.NewFlagSet("tacd", flag.ContinueOnError)
	for _, name := range []string{"e", "acme-ext"} {
		fs.StringVar(&acmeExt, name, "", "hex-encoded acmeIdentifier extension value")
	}
	fs.StringVar(&acmeExtFile, "acme-ext-file", "", "file containing the hex-encoded acmeIdentifier extension value")
	fs.StringVar(&crtDigest, "crt-digest", "sha256", "one of sha256, sha384, sha512")
	fs.StringVar(&crtSigAlg, "crt-signature-alg", "p256", "signing key algorithm for the synthesized certificate")
	for _, name := range []string{"d", "domain"} {
		fs.StringVar(&domain, name, "", "domain the synthesized certificate covers")
	}
	fs.StringVar(&domainFile, "domain-file", "", "file containing the domain")
	for _, name := range []string{"f", "foreground"} {
		fs.BoolVar(&foreground, name, false, "stay attached to the controlling terminal")
	}
	for _, name := range []string{"l", "listen"} {
		fs.StringVar(&listen, name, ":443", "host:port or unix:path to listen on")
	}
	fs.BoolVar(&logStderr, "log-stderr", true, "log to stderr")
	fs.BoolVar(&logSyslog, "log-syslog", false, "log to syslog")
	fs.StringVar(&logLevel, "log-level", "info", "one of error, warn, info, debug, trace")
	fs.BoolVar(&noPIDFile, "no-pid-file", false, "do not write a pidfile")
	fs.StringVar(&pidFile, "pid-file", "/var/run/tacd.pid", "path to the pidfile")
	for _, name := range []string{"V", "version"} {
		fs.BoolVar(&showVer, name, false, "print the version and exit")
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return 1
	}
	if showVer {
		fmt.Println(version)
		return 0
	}
	_ = foreground
	_ = crtDigest // the responder certificate's signature digest follows crypto/x509's per-key-type default; see DESIGN.md.
	switch crtDigest {
	case "sha256", "sha384", "sha512":
	default:
		fmt.Fprintf(os.Stderr, "tacd: --crt-digest must be one of sha256, sha384, sha512, got %q\n", crtDigest)
		return 1
	}

	if acmeExt != "" && acmeExtFile != "" {
		fmt.Fprintln(os.Stderr, "tacd: --acme-ext and --acme-ext-file are mutually exclusive")
		return 1
	}
	if domain != "" && domainFile != "" {
		fmt.Fprintln(os.Stderr, "tacd: --domain and --domain-file are mutually exclusive")
		return 1
	}

	reader := bufio.NewReader(os.Stdin)

	if domain == "" {
		if domainFile != "" {
			data, err := os.ReadFile(domainFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "tacd: read domain file: %v\n", err)
				return 1
			}
			domain = strings.TrimSpace(string(data))
		} else {
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				fmt.Fprintf(os.Stderr, "tacd: read domain from stdin: %v\n", err)
				return 1
			}
			domain = strings.TrimSpace(line)
		}
	}

	if acmeExt == "" {
		if acmeExtFile != "" {
			data, err := os.ReadFile(acmeExtFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "tacd: read acme-ext file: %v\n", err)
				return 1
			}
			acmeExt = strings.TrimSpace(string(data))
		} else {
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				fmt.Fprintf(os.Stderr, "tacd: read acme-ext from stdin: %v\n", err)
				return 1
			}
			acmeExt = strings.TrimSpace(line)
		}
	}

	if domain == "" || acmeExt == "" {
		fmt.Fprintln(os.Stderr, "tacd: both a domain and an acme-ext value are required")
		return 1
	}

	if !noPIDFile {
		release, err := acquirePIDFile(pidFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tacd: pidfile conflict: %v\n", err)
			return 3
		}
		defer release()
	}

	log := logger.New(logger.Config{Level: logger.Level(logLevel), Stderr: logStderr, Syslog: logSyslog})

	daemon, err := tacd.New(tacd.Config{
		Listen:    listen,
		Domain:    domain,
		DigestHex: acmeExt,
		KeyKind:   crypto.KeyKind(crtSigAlg),
		Logger:    log,
	})
	if err != nil {
		log.Error("failed to build responder", "err", err)
		return 2
	}
	if err := daemon.Start(); err != nil {
		log.Error("failed to start listener", "listen", listen, "err", err)
		return 2
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	log.Info("tacd started", "listen", listen, "domain", domain)
	<-sigCh
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := daemon.Stop(ctx); err != nil {
		log.Error("shutdown did not complete cleanly", "err", err)
		return 2
	}
	return 0
}
