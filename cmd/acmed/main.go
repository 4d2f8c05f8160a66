// Command acmed is the ACME client daemon: it keeps every certificate
// named in its configuration file renewed, talking RFC 8555 to one or
// more CAs and delegating challenge provisioning to external hooks
// (spec.md §1/§6.1).
package main

import (
	"context"
	"crypto/x509"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/acmed/acmed/acme"
	"github.com/acmed/acmed/config"
	"github.com/acmed/acmed/logger"
	"github.com/acmed/acmed/scheduler"
)

const version = "acmed 1.0.0"

// rootCertFlags collects the repeatable --root-cert flag (spec.md §6.1).
type rootCertFlags []string

func (f *rootCertFlags) String() string { return strings.Join(*f, ",") }
func (f *rootCertFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath    string
		foreground    bool
		logStderr     bool
		logSyslog     bool
		logLevel      string
		noPIDFile     bool
		pidFile       string
		showVer       bool
		rootCerts     rootCertFlags
		revokeName    string
		revokeKeyType string
		revokeReason  int
	)

	fs := flag.NewFlagSet("acmed", flag.ContinueOnError)
	for _, name := range []string{"c", "config"} {
		fs.StringVar(&configPath, name, "/etc/acmed/acmed.toml", "path to the configuration file")
	}
	for _, name := range []string{"f", "foreground"} {
		fs.BoolVar(&foreground, name, false, "stay attached to the controlling terminal")
	}
	fs.BoolVar(&logStderr, "log-stderr", true, "log to stderr")
	fs.BoolVar(&logSyslog, "log-syslog", false, "log to syslog")
	fs.StringVar(&logLevel, "log-level", "info", "one of error, warn, info, debug, trace")
	fs.BoolVar(&noPIDFile, "no-pid-file", false, "do not write a pidfile")
	fs.StringVar(&pidFile, "pid-file", "/var/run/acmed.pid", "path to the pidfile")
	fs.Var(&rootCerts, "root-cert", "additional trusted root certificate (repeatable)")
	fs.StringVar(&revokeName, "revoke", "", "revoke the named certificate and exit, instead of running the daemon")
	fs.StringVar(&revokeKeyType, "revoke-key-type", "", "key type of the certificate named by --revoke")
	fs.IntVar(&revokeReason, "revoke-reason", 0, "RFC 5280 CRL reason code to revoke with")
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
	_ = foreground // systemd/runit-style supervision handles backgrounding; acmed itself never forks.

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", configPath, "err", err)
		return 1
	}

	log := logger.New(logger.Config{Level: logger.Level(logLevel), Stderr: logStderr, Syslog: logSyslog})
	provider := config.NewProvider(cfg)

	var extraRoots []*x509.Certificate
	for _, path := range rootCerts {
		certs, err := loadPEMCertificates(path)
		if err != nil {
			log.Error("failed to load root certificate", "path", path, "err", err)
			return 1
		}
		extraRoots = append(extraRoots, certs...)
	}

	if !noPIDFile {
		release, err := acquirePIDFile(pidFile)
		if err != nil {
			log.Error("pidfile conflict", "path", pidFile, "err", err)
			return 3
		}
		defer release()
	}

	a, err := newApp(provider, log, extraRoots)
	if err != nil {
		log.Error("failed to initialize application", "err", err)
		return 2
	}

	if revokeName != "" {
		reason := acme.RevocationReason(revokeReason)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.revokeCertificate(ctx, revokeName, revokeKeyType, &reason); err != nil {
			log.Error("revoke failed", "certificate", revokeName, "err", err)
			return 2
		}
		log.Info("certificate revoked", "certificate", revokeName)
		return 0
	}

	tasks := buildTasks(cfg)
	sched := scheduler.New(tasks, a.renew, a.postOperation, 0)
	sched.Start()

	stopWatch := config.WatchSIGHUP(configPath, provider, log)
	defer stopWatch()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	log.Info("acmed started", "config", configPath, "certificates", len(tasks))
	<-sigCh
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		log.Error("scheduler shutdown did not complete cleanly", "err", err)
		return 2
	}

	log.Info("shutdown complete")
	return 0
}

func buildTasks(cfg *config.Config) []scheduler.Task {
	tasks := make([]scheduler.Task, 0, len(cfg.Certificates))
	for _, cert := range cfg.Certificates {
		delay := cert.RenewDelay.Duration
		if delay == 0 {
			delay = cfg.Global.RenewDelay.Duration
		}
		if delay == 0 {
			delay = 21 * 24 * time.Hour
		}
		tasks = append(tasks, scheduler.Task{
			Name:         taskName(cert.Name, cert.KeyType),
			Account:      cert.Account,
			RenewalDelay: delay,
		})
	}
	return tasks
}
