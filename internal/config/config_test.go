package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 37707 {
		t.Errorf("Port = %d, want 37707", cfg.Server.Port)
	}
	if cfg.Retrieval.MaxHops != 2 || cfg.Retrieval.RRFK != 60 {
		t.Errorf("retrieval defaults wrong: %+v", cfg.Retrieval)
	}
	if cfg.Decay.NodeRate <= 0 || cfg.Decay.NodeRate >= 1 {
		t.Errorf("NodeRate = %v, want in (0,1)", cfg.Decay.NodeRate)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/no/such/path.yaml")
	if err != nil {
		t.Fatalf("missing config file should not be an error: %v", err)
	}
	if cfg.Server.Port != 37707 {
		t.Errorf("Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kindex.yaml")
	yaml := `
server:
  port: 9999
retrieval:
  max_hops: 3
  limit: 5
decay:
  grace_hours: 48
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Retrieval.MaxHops != 3 || cfg.Retrieval.Limit != 5 {
		t.Errorf("retrieval overrides not applied: %+v", cfg.Retrieval)
	}
	if cfg.Decay.GraceHours != 48 {
		t.Errorf("GraceHours = %d, want 48", cfg.Decay.GraceHours)
	}
	// Untouched keys keep their defaults.
	if cfg.Retrieval.RRFK != 60 {
		t.Errorf("RRFK = %d, want default 60", cfg.Retrieval.RRFK)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KINDEX_PORT", "4242")
	t.Setenv("KINDEX_DB_PATH", "/tmp/test.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4242 {
		t.Errorf("Port = %d, want 4242", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Path = %q", cfg.Database.Path)
	}

	t.Setenv("KINDEX_PORT", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-integer KINDEX_PORT")
	}
}

func TestValidateRejectsBadRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kindex.yaml")
	if err := os.WriteFile(path, []byte("decay:\n  node_rate: 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for decay rate outside (0,1)")
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.ListenAddr(); got != "127.0.0.1:37707" {
		t.Errorf("ListenAddr = %q", got)
	}
}
