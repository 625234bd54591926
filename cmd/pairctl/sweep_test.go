package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alfredjeanlab/pairing/internal/config"
)

func init() {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepConfig_BrokenDestinationFails(t *testing.T) {
	c := &config.Config{
		AuditRetention:   24 * time.Hour,
		ArchiveGitRepo:   filepath.Join(t.TempDir(), "missing"),
		ArchiveGitDir:    "audit",
		ArchiveGitBranch: "main",
	}
	sc, err := sweepConfig(context.Background(), c)
	if err == nil {
		t.Fatalf("expected error, got config with %d destinations", len(sc.Destinations))
	}
}

func TestSweepConfig_RetentionDisabledSkipsDestinations(t *testing.T) {
	c := &config.Config{
		ArchiveGitRepo:   filepath.Join(t.TempDir(), "missing"),
		ArchiveGitDir:    "audit",
		ArchiveGitBranch: "main",
	}
	sc, err := sweepConfig(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Retention != 0 || len(sc.Destinations) != 0 {
		t.Errorf("config = %+v, want no retention and no destinations", sc)
	}
}

func TestSweepConfig_GitDestination(t *testing.T) {
	repo := t.TempDir()
	if err := os.Mkdir(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	c := &config.Config{
		AuditRetention:   time.Hour,
		ArchiveGitRepo:   repo,
		ArchiveGitDir:    "audit",
		ArchiveGitBranch: "main",
	}
	sc, err := sweepConfig(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Retention != time.Hour || len(sc.Destinations) != 1 {
		t.Errorf("config = %+v, want one destination and 1h retention", sc)
	}
}
