package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/convotap/internal/browser"
	"github.com/raysh454/convotap/internal/capture"
	"github.com/raysh454/convotap/internal/model"
	"github.com/raysh454/convotap/internal/server"
	"github.com/raysh454/convotap/internal/store"
)

// Config is the runtime configuration of the daemon and its clients.
type Config struct {
	Server server.Config `yaml:"server"`

	// StorageRoot is the base directory for the snapshot database and the
	// launched browser profile.
	StorageRoot string `yaml:"storage_root"`

	Store   store.Config   `yaml:"store"`
	Browser browser.Config `yaml:"browser"`
	Capture capture.Config `yaml:"capture"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:      server.DefaultConfig(),
		StorageRoot: "~/.config/convotap",
		Store: store.Config{
			Driver: store.DriverSQLite,
		},
		Browser:  browser.DefaultConfig(),
		Capture:  capture.DefaultConfig(),
		LogLevel: "info",
	}
}

// DefaultConfigPath is where LoadConfig looks when no path is given.
func DefaultConfigPath() string {
	return filepath.Join("~", ".config", "convotap", "config.yaml")
}

// LoadConfig overlays the YAML file at path on the defaults. An empty path
// reads DefaultConfigPath and tolerates its absence.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	optional := path == ""
	if optional {
		path = DefaultConfigPath()
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", expanded, err)
	}
	return cfg, nil
}

// Resolve expands paths and fills values derived from other fields.
func (c *Config) Resolve() error {
	root, err := ExpandPath(c.StorageRoot)
	if err != nil {
		return err
	}
	c.StorageRoot = root

	if c.Store.Driver == store.DriverSQLite || c.Store.Driver == "" {
		if c.Store.Path == "" {
			c.Store.Path = filepath.Join(root, "convotap.db")
		}
		if c.Store.Path, err = ExpandPath(c.Store.Path); err != nil {
			return err
		}
	}

	if c.Browser.CDPURL == "" && c.Browser.UserDataDir == "" {
		c.Browser.UserDataDir = filepath.Join(root, "profile")
	}
	if c.Browser.UserDataDir, err = ExpandPath(c.Browser.UserDataDir); err != nil {
		return err
	}

	if c.Capture.TargetOrigin == "" && c.Capture.TargetEndpoint == "" {
		def := capture.DefaultConfig()
		c.Capture.TargetOrigin, c.Capture.TargetEndpoint = def.TargetOrigin, def.TargetEndpoint
	}
	switch c.Browser.Mode {
	case browser.ModeIntercept:
		c.Capture.Source = model.SourceIntercept
	default:
		c.Capture.Source = model.SourceNetwork
	}
	return nil
}

// Validate reports configuration the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return errors.New("server.listen_addr is required")
	}
	if c.Capture.TargetEndpoint == "" {
		return errors.New("capture.target_endpoint is required")
	}
	if c.Capture.AttachDelay < 0 {
		return errors.New("capture.attach_delay must not be negative")
	}
	switch c.Browser.Mode {
	case browser.ModeNetwork, browser.ModeIntercept, "":
	default:
		return fmt.Errorf("browser.mode %q is not one of network, intercept", c.Browser.Mode)
	}
	switch c.Store.Driver {
	case store.DriverSQLite, store.DriverMemory, "":
	default:
		return fmt.Errorf("store.driver %q is not one of sqlite, memory", c.Store.Driver)
	}
	return nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
