package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"auralense/internal/reports"
)

func TestRunReturnsListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "reports.db")
	cfgPath := filepath.Join(dir, "auralense.yaml")
	cfg := "sites_dir: " + dir + "\nreports_db: " + dbPath + "\nbrowser:\n  disabled: true\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	err = run(busy.Addr().String(), cfgPath)
	if err == nil || !strings.Contains(err.Error(), "listen on") {
		t.Fatalf("run = %v, expected a listen error", err)
	}

	// The store opened by run was released and can be used again.
	store, err := reports.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen reports: %v", err)
	}
	defer store.Close()
	if _, err := store.Record(context.Background(), reports.Report{Kind: reports.KindScan}); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestRunReturnsConfigError(t *testing.T) {
	err := run("127.0.0.1:0", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config") {
		t.Fatalf("run = %v, expected a config error", err)
	}
}
