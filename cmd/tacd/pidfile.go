package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// acquirePIDFile writes the running process's pid to path, refusing to
// start if an existing pidfile names a still-alive process (spec.md §6.2
// exit code 3 "lock/pidfile conflict").
func acquirePIDFile(path string) (release func(), err error) {
	if data, readErr := os.ReadFile(path); readErr == nil {
		if pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && pid > 0 {
			if syscall.Kill(pid, 0) == nil {
				return nil, fmt.Errorf("pidfile %q names running process %d", path, pid)
			}
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, fmt.Errorf("write pidfile %q: %w", path, err)
	}
	return func() { os.Remove(path) }, nil
}
