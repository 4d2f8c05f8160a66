package config

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WatchSIGHUP reloads path from disk and swaps it into provider on every
// SIGHUP, logging and keeping the previous configuration on failure
// (spec.md §5/§7: post-startup errors never crash the daemon). It returns
// a stop function that unregisters the signal handler.
func WatchSIGHUP(path string, provider *Provider, logger *slog.Logger) (stop func()) {
	if logger == nil {
		logger = slog.Default()
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				logger.Info("received SIGHUP, reloading configuration", "path", path)
				cfg, err := Load(path)
				if err != nil {
					logger.Error("configuration reload failed, keeping previous configuration", "err", err)
					continue
				}
				provider.Set(cfg)
				logger.Info("configuration reloaded")
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
