package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquirePIDFileWritesOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tacd.pid")

	release, err := acquirePIDFile(path)
	if err != nil {
		t.Fatalf("acquirePIDFile: %v", err)
	}
	defer release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pidfile: %v", err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil || pid != os.Getpid() {
		t.Fatalf("pidfile contents = %q, want %d", data, os.Getpid())
	}
}

func TestAcquirePIDFileRefusesWhenOwnerStillAlive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tacd.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		t.Fatalf("seed pidfile: %v", err)
	}

	if _, err := acquirePIDFile(path); err == nil {
		t.Fatalf("expected acquirePIDFile to refuse a pidfile naming a live process")
	}
}
