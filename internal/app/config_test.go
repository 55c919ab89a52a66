package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/convotap/internal/browser"
	"github.com/raysh454/convotap/internal/model"
	"github.com/raysh454/convotap/internal/store"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg.Server.ListenAddr != "127.0.0.1:7717" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.StorageRoot != "~/.config/convotap" {
		t.Errorf("StorageRoot = %q", cfg.StorageRoot)
	}
	if cfg.Store.Driver != store.DriverSQLite {
		t.Errorf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.Browser.Mode != browser.ModeNetwork {
		t.Errorf("Browser.Mode = %q", cfg.Browser.Mode)
	}
	if cfg.Capture.TargetEndpoint != "https://chatgpt.com/backend-api/conversation" {
		t.Errorf("TargetEndpoint = %q", cfg.Capture.TargetEndpoint)
	}
	if cfg.Capture.AttachDelay != 100*time.Millisecond {
		t.Errorf("AttachDelay = %s", cfg.Capture.AttachDelay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadConfig_DefaultPathMissing_ReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.ListenAddr != DefaultConfig().Server.ListenAddr {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfig_DefaultPathRead(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "convotap")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfig_OverlaysFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "convotap.yaml")
	data := `
server:
  listen_addr: 127.0.0.1:9000
store:
  driver: memory
browser:
  cdp_url: http://127.0.0.1:9333
  mode: intercept
capture:
  target_origin: http://127.0.0.1:8080
  target_endpoint: http://127.0.0.1:8080/backend-api/conversation
  attach_delay: 250ms
log_level: warn
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Store.Driver != store.DriverMemory {
		t.Errorf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.Browser.CDPURL != "http://127.0.0.1:9333" || cfg.Browser.Mode != browser.ModeIntercept {
		t.Errorf("Browser = %+v", cfg.Browser)
	}
	if cfg.Capture.AttachDelay != 250*time.Millisecond {
		t.Errorf("AttachDelay = %s", cfg.Capture.AttachDelay)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	// untouched fields keep their defaults
	if cfg.Browser.DebugPort != 9222 || cfg.Browser.EventBuffer != 1024 {
		t.Errorf("browser defaults lost: %+v", cfg.Browser)
	}
}

func TestLoadConfig_ExplicitPathMissing_ReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadConfig_InvalidYAML_ReturnsError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfig_Resolve(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.StorageRoot = root
	cfg.Browser.Mode = browser.ModeIntercept

	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Store.Path != filepath.Join(root, "convotap.db") {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Browser.UserDataDir != filepath.Join(root, "profile") {
		t.Errorf("UserDataDir = %q", cfg.Browser.UserDataDir)
	}
	if cfg.Capture.Source != model.SourceIntercept {
		t.Errorf("Source = %q", cfg.Capture.Source)
	}
}

func TestConfig_Resolve_RemoteBrowserKeepsNoProfile(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	cfg.Browser.CDPURL = "http://127.0.0.1:9222"

	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Browser.UserDataDir != "" {
		t.Errorf("UserDataDir = %q, want empty for a remote browser", cfg.Browser.UserDataDir)
	}
	if cfg.Capture.Source != model.SourceNetwork {
		t.Errorf("Source = %q", cfg.Capture.Source)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"listen addr", func(c *Config) { c.Server.ListenAddr = " " }, "listen_addr"},
		{"endpoint", func(c *Config) { c.Capture.TargetEndpoint = "" }, "target_endpoint"},
		{"negative delay", func(c *Config) { c.Capture.AttachDelay = -time.Second }, "attach_delay"},
		{"mode", func(c *Config) { c.Browser.Mode = "proxy" }, "browser.mode"},
		{"driver", func(c *Config) { c.Store.Driver = "redis" }, "store.driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := map[string]string{
		"~":             home,
		"~/a/b":         filepath.Join(home, "a", "b"),
		"/abs/path":     "/abs/path",
		"relative/path": "relative/path",
		"~user/x":       "~user/x",
	}
	for in, want := range tests {
		got, err := ExpandPath(in)
		if err != nil {
			t.Fatalf("ExpandPath(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}
