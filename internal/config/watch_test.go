package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWatchDeliversReloadedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	if err := os.WriteFile(path, []byte("campaign:\n  wall_clock_budget_min: 25\n"), 0644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	updates := make(chan *Config, 4)
	stop, err := Watch(path, zap.NewNop(), func(cfg *Config) { updates <- cfg })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("campaign:\n  wall_clock_budget_min: 40\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-updates:
		if cfg.Campaign.WallClockBudgetMin != 40 {
			t.Errorf("reloaded budget = %d, want 40", cfg.Campaign.WallClockBudgetMin)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload delivered within 5s")
	}
}

func TestWatchKeepsPreviousOnBrokenEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	if err := os.WriteFile(path, []byte("campaign:\n  wall_clock_budget_min: 25\n"), 0644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	updates := make(chan *Config, 4)
	stop, err := Watch(path, zap.NewNop(), func(cfg *Config) { updates <- cfg })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("accounts: [\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-updates:
		t.Fatalf("broken edit delivered a config: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
		// Expected: the bad edit was logged and skipped.
	}
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pilot.yaml")
	if err := os.WriteFile(path, []byte("campaign:\n  wall_clock_budget_min: 25\n"), 0644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	updates := make(chan *Config, 4)
	stop, err := Watch(path, zap.NewNop(), func(cfg *Config) { updates <- cfg })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case <-updates:
		t.Fatal("sibling file edit triggered a reload")
	case <-time.After(500 * time.Millisecond):
	}
}
