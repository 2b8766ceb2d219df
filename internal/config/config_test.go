package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected defaults to load, got %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.CustomerTargetARR != 1_500_000 {
		t.Fatalf("expected default customer target, got %f", cfg.CustomerTargetARR)
	}
	if cfg.ArbiterBatchSize != 25 {
		t.Fatalf("expected default arbiter batch size 25, got %d", cfg.ArbiterBatchSize)
	}
}

func TestLoadRejectsMinAboveMax(t *testing.T) {
	t.Setenv("CUSTOMER_MIN_ARR", "3000000")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for min above max")
	}
}

func TestLoadRejectsTargetOutsideBand(t *testing.T) {
	t.Setenv("PROSPECT_TARGET_ARR", "100")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for target below min")
	}
}

func TestLoadTerritoryMap(t *testing.T) {
	empty, err := LoadTerritoryMap("")
	if err != nil {
		t.Fatalf("empty path must not fail: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty map, got %v", empty)
	}

	path := filepath.Join(t.TempDir(), "territories.json")
	if err := os.WriteFile(path, []byte(`{"NY":"EAST","CA":"WEST"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadTerritoryMap(path)
	if err != nil {
		t.Fatalf("expected map to load, got %v", err)
	}
	if m["NY"] != "EAST" || m["CA"] != "WEST" {
		t.Fatalf("unexpected mappings: %v", m)
	}

	if _, err := LoadTerritoryMap(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
