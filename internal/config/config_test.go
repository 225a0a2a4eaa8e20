package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != 3000 {
		t.Errorf("HTTPPort = %d", cfg.HTTPPort)
	}
	if cfg.StoreDriver != "sqlite" {
		t.Errorf("StoreDriver = %s", cfg.StoreDriver)
	}
	if cfg.QueueConcurrency != 10 || cfg.QueueMaxRetries != 3 {
		t.Errorf("queue defaults = %d / %d", cfg.QueueConcurrency, cfg.QueueMaxRetries)
	}
	if cfg.QueueBackoffBase != 2*time.Second {
		t.Errorf("QueueBackoffBase = %s", cfg.QueueBackoffBase)
	}
	if cfg.QueueRateMax != 100 || cfg.QueueRateWindow != time.Minute {
		t.Errorf("rate defaults = %d / %s", cfg.QueueRateMax, cfg.QueueRateWindow)
	}
	if cfg.MonitorTimeout != 0 {
		t.Errorf("MonitorTimeout = %s, want 0 (indefinite)", cfg.MonitorTimeout)
	}
	if cfg.InputMint != "So11111111111111111111111111111111111111112" {
		t.Errorf("InputMint = %s", cfg.InputMint)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("MAX_RETRY_ATTEMPTS", "5")
	t.Setenv("MONITOR_TIMEOUT", "10m")

	cfg := Load()
	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d", cfg.HTTPPort)
	}
	if cfg.StoreDriver != "postgres" {
		t.Errorf("StoreDriver = %s", cfg.StoreDriver)
	}
	if cfg.QueueMaxRetries != 5 {
		t.Errorf("QueueMaxRetries = %d", cfg.QueueMaxRetries)
	}
	if cfg.MonitorTimeout != 10*time.Minute {
		t.Errorf("MonitorTimeout = %s", cfg.MonitorTimeout)
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("MONITOR_TIMEOUT", "soon")

	cfg := Load()
	if cfg.HTTPPort != 3000 {
		t.Errorf("HTTPPort = %d, want default on parse failure", cfg.HTTPPort)
	}
	if cfg.MonitorTimeout != 0 {
		t.Errorf("MonitorTimeout = %s, want default on parse failure", cfg.MonitorTimeout)
	}
}

func TestLoadKnownPools(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.yaml")
	data := []byte(`venues:
  raydium:
    - pool_id: ray-pool-1
      token_mint: TokenMint111111111111111111111111111111111
      base_mint: So11111111111111111111111111111111111111112
  meteora:
    - pool_id: met-pool-1
      token_mint: TokenMint111111111111111111111111111111111
      base_mint: So11111111111111111111111111111111111111112
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	pools, err := LoadKnownPools(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	id, ok := pools.Lookup("raydium", "TokenMint111111111111111111111111111111111")
	if !ok || id != "ray-pool-1" {
		t.Errorf("raydium lookup = %q, %v", id, ok)
	}
	id, ok = pools.Lookup("meteora", "TokenMint111111111111111111111111111111111")
	if !ok || id != "met-pool-1" {
		t.Errorf("meteora lookup = %q, %v", id, ok)
	}
	if _, ok := pools.Lookup("raydium", "OtherMint111111111111111111111111111111111"); ok {
		t.Error("unknown mint should not resolve")
	}
	if _, ok := pools.Lookup("orca", "TokenMint111111111111111111111111111111111"); ok {
		t.Error("unknown venue should not resolve")
	}
}

func TestLoadKnownPoolsMissingFile(t *testing.T) {
	pools, err := LoadKnownPools(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing registry should not error: %v", err)
	}
	if len(pools.Venues) != 0 {
		t.Errorf("pools = %+v", pools.Venues)
	}
}

func TestLoadKnownPoolsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.yaml")
	if err := os.WriteFile(path, []byte("venues: [not: a: map"), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	if _, err := LoadKnownPools(path); err == nil {
		t.Fatal("malformed registry should error")
	}
}
