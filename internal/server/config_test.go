package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deb2000-sudo/cloudvault/internal/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "listen_addr: \":9001\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":9001" {
		t.Errorf("ListenAddr = %q, want :9001", cfg.ListenAddr)
	}
	if cfg.MaxConcurrentSessions != 100 {
		t.Errorf("MaxConcurrentSessions = %d, want 100", cfg.MaxConcurrentSessions)
	}
	if cfg.SessionTimeout != 30*time.Minute {
		t.Errorf("SessionTimeout = %v, want 30m", cfg.SessionTimeout)
	}
	if cfg.AdmissionBurst != cfg.MaxConcurrentSessions {
		t.Errorf("AdmissionBurst = %d, want %d", cfg.AdmissionBurst, cfg.MaxConcurrentSessions)
	}
	if cfg.HealthInterval != time.Minute {
		t.Errorf("HealthInterval = %v, want 1m", cfg.HealthInterval)
	}
	if cfg.ErasureEnabled {
		t.Error("ErasureEnabled should default to false")
	}
}

func TestLoadConfigDefaultsErasureShardsWhenEnabled(t *testing.T) {
	path := writeConfig(t, "erasure_enabled: true\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ErasureDataShards != 4 || cfg.ErasureParityShards != 4 {
		t.Errorf("erasure shards = (%d, %d), want (4, 4)", cfg.ErasureDataShards, cfg.ErasureParityShards)
	}
	if cfg.ErasureMinShielded != 1*1024*1024 {
		t.Errorf("ErasureMinShielded = %d, want 1MiB", cfg.ErasureMinShielded)
	}
}

func TestLoadConfigDefaultsZeroMaxSessions(t *testing.T) {
	path := writeConfig(t, "max_concurrent_sessions: 0\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig should default 0 to 100, got error: %v", err)
	}
	if cfg.MaxConcurrentSessions != 100 {
		t.Errorf("MaxConcurrentSessions = %d, want defaulted to 100", cfg.MaxConcurrentSessions)
	}
}

func TestConfigHolderWatchReload(t *testing.T) {
	path := writeConfig(t, "listen_addr: \":9001\"\n")
	h, err := NewConfigHolder(path)
	if err != nil {
		t.Fatalf("NewConfigHolder: %v", err)
	}
	if h.Get().ListenAddr != ":9001" {
		t.Fatalf("initial ListenAddr = %q, want :9001", h.Get().ListenAddr)
	}

	stop, err := h.WatchReload(logging.NewNop())
	if err != nil {
		t.Fatalf("WatchReload: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("listen_addr: \":9002\"\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Get().ListenAddr == ":9002" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("config was not reloaded within deadline, still %q", h.Get().ListenAddr)
}
