package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pagepilot/pagectl/internal/director"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigPartialOverride(t *testing.T) {
	path := writeFile(t, "api_key = \"abc\"\npolicy = \"reject\"\n")
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Undefined keys keep their defaults; defined keys win.
	if cfg.Director.Listen != ":7860" || cfg.Director.Name != "director" {
		t.Fatalf("defaults lost: %+v", cfg.Director)
	}
	if cfg.Director.Policy != director.PolicyReject {
		t.Fatalf("override lost: %q", cfg.Director.Policy)
	}
	if cfg.Director.Secret != "abc" {
		t.Fatalf("secret not mapped: %q", cfg.Director.Secret)
	}
}

func TestLoadServiceConfigOpsAndLog(t *testing.T) {
	path := writeFile(t, "api_key = \"abc\"\nops_addr = \":7861\"\nlog_file = \"/tmp/director.log\"\ncors_origins = [\"http://localhost:5173\"]\n")
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpsAddr != ":7861" || cfg.LogFile != "/tmp/director.log" {
		t.Fatalf("ops/log not mapped: %+v", cfg)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://localhost:5173" {
		t.Fatalf("cors not mapped: %+v", cfg.CorsOrigins)
	}
}

func TestLoadServiceConfigMissingFile(t *testing.T) {
	if _, err := loadServiceConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadServiceConfigEmptyNameKeepsDefault(t *testing.T) {
	path := writeFile(t, "name = \"  \"\napi_key = \"abc\"\n")
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Director.Name != "director" {
		t.Fatalf("blank name must keep default, got %q", cfg.Director.Name)
	}
}
