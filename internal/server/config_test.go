package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got := v.GetInt("server.port"); got != 8080 {
		t.Errorf("server.port = %d, want 8080", got)
	}
	if got := v.GetString("plugins.insight.anchor"); got != "2024-07-01" {
		t.Errorf("anchor = %q", got)
	}
	if got := v.GetDuration("plugins.insight.session_ttl"); got != 2*time.Hour {
		t.Errorf("session_ttl = %v", got)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "hydrosim.yaml")
	yaml := "server:\n  port: 9000\nplugins:\n  insight:\n    max_day: 35\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HS_SERVER_HOST", "127.0.0.1")

	v, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got := v.GetInt("server.port"); got != 9000 {
		t.Errorf("server.port = %d, want 9000", got)
	}
	if got := v.GetInt("plugins.insight.max_day"); got != 35 {
		t.Errorf("max_day = %d, want 35", got)
	}
	if got := v.GetString("server.host"); got != "127.0.0.1" {
		t.Errorf("server.host = %q, want env override", got)
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HS_LOGGING_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("HS_LOGGING_LEVEL") })

	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got := v.GetString("logging.level"); got != "debug" {
		t.Errorf("logging.level = %q, want debug from .env", got)
	}
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() error = nil for malformed YAML")
	}
}

func TestConfig_Addr(t *testing.T) {
	c := Config{Host: "127.0.0.1", Port: 8081}
	if got := c.Addr(); got != "127.0.0.1:8081" {
		t.Errorf("Addr() = %q", got)
	}
}
