// Package config loads stselect configuration from a YAML file, environment
// variables and, for the API key, Syncthing's own config.xml.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/stselect/stselect/pkg/client"
	"github.com/stselect/stselect/pkg/ignores"
	"github.com/stselect/stselect/pkg/retry"
)

// Config holds all stselect configuration.
type Config struct {
	// Daemon
	Protocol           string        `yaml:"protocol"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	APIKey             string        `yaml:"api_key"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	RetryAttempts      int           `yaml:"retry_attempts"`

	// Directory holding Syncthing's config.xml, searched for the API key
	// when none is configured. Empty means the platform defaults.
	SyncthingHome string `yaml:"syncthing_home,omitempty"`

	// Managed block sentinels
	StartMarker  string `yaml:"start_marker"`
	FinishMarker string `yaml:"finish_marker"`

	CacheSize int `yaml:"cache_size"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Set when host and port came from the file or the environment.
	addressSet bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Protocol:      "http",
		Host:          "127.0.0.1",
		Port:          8384,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		StartMarker:   ignores.DefaultStart,
		FinishMarker:  ignores.DefaultFinish,
		CacheSize:     1024,
		LogLevel:      "warn",
		LogFormat:     "console",
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "stselect.yaml"
	}
	return filepath.Join(dir, "stselect", "config.yaml")
}

// Load reads configuration: defaults, then the YAML file at path if it
// exists, then STSELECT_* environment variables. A missing API key is
// looked up in Syncthing's config.xml.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if cfg.APIKey == "" {
		gui, err := Discover(cfg.SyncthingHome)
		switch {
		case err == nil:
			cfg.applyGUI(gui)
		case errors.Is(err, ErrNoSyncthingConfig):
		default:
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	_, host := raw["host"]
	_, port := raw["port"]
	c.addressSet = host || port
	return nil
}

func (c *Config) applyEnv() {
	if os.Getenv("STSELECT_HOST") != "" || os.Getenv("STSELECT_PORT") != "" {
		c.addressSet = true
	}
	c.Protocol = envOr("STSELECT_PROTOCOL", c.Protocol)
	c.Host = envOr("STSELECT_HOST", c.Host)
	c.Port = envInt("STSELECT_PORT", c.Port)
	c.APIKey = envOr("STSELECT_API_KEY", c.APIKey)
	c.Timeout = envDuration("STSELECT_TIMEOUT", c.Timeout)
	c.InsecureSkipVerify = envBool("STSELECT_INSECURE", c.InsecureSkipVerify)
	c.RetryAttempts = envInt("STSELECT_RETRY_ATTEMPTS", c.RetryAttempts)
	c.SyncthingHome = envOr("STSELECT_SYNCTHING_HOME", c.SyncthingHome)
	c.CacheSize = envInt("STSELECT_CACHE_SIZE", c.CacheSize)
	c.LogLevel = envOr("STSELECT_LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("STSELECT_LOG_FORMAT", c.LogFormat)
}

// applyGUI takes the key from config.xml. The GUI address is used only
// when no address was configured explicitly.
func (c *Config) applyGUI(gui *GUI) {
	c.APIKey = gui.APIKey
	if c.addressSet || gui.Host == "" {
		return
	}
	c.Host = gui.Host
	c.Port = gui.Port
	if gui.TLS {
		c.Protocol = "https"
		c.InsecureSkipVerify = true
	}
}

// Validate checks the values a client cannot work without.
func (c *Config) Validate() error {
	if c.Protocol != "http" && c.Protocol != "https" {
		return fmt.Errorf("protocol must be http or https, got %q", c.Protocol)
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.StartMarker == "" || c.FinishMarker == "" || c.StartMarker == c.FinishMarker {
		return fmt.Errorf("start and finish markers must be set and differ")
	}
	return nil
}

// Save writes the configuration as YAML, creating the directory if needed.
// The file holds the API key and is only readable by the owner.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Codec returns the managed block codec for the configured markers. Blocks
// started by pyselective are recognized as well.
func (c *Config) Codec() ignores.Codec {
	codec := ignores.Codec{Start: c.StartMarker, Finish: c.FinishMarker}
	if c.StartMarker != ignores.LegacyStart {
		codec.Aliases = []string{ignores.LegacyStart}
	}
	return codec
}

// ClientConfig builds the daemon client configuration.
func (c *Config) ClientConfig(log *zap.Logger, observer client.Observer) client.Config {
	rc := retry.DefaultConfig()
	if c.RetryAttempts > 0 {
		rc.MaxAttempts = c.RetryAttempts
	}
	return client.Config{
		Protocol:           c.Protocol,
		Host:               c.Host,
		Port:               c.Port,
		APIKey:             c.APIKey,
		Timeout:            c.Timeout,
		RetryConfig:        rc,
		InsecureSkipVerify: c.InsecureSkipVerify,
		Logger:             log,
		Observer:           observer,
	}
}

// ErrNoSyncthingConfig is returned by Discover when no config.xml is found.
var ErrNoSyncthingConfig = errors.New("syncthing config.xml not found")

// GUI is the GUI section of Syncthing's config.xml.
type GUI struct {
	TLS    bool
	Host   string
	Port   int
	APIKey string
	Path   string
}

type syncthingXML struct {
	GUI struct {
		TLS     bool   `xml:"tls,attr"`
		Address string `xml:"address"`
		APIKey  string `xml:"apikey"`
	} `xml:"gui"`
}

// SyncthingHomes lists the directories searched for config.xml, most
// specific first.
func SyncthingHomes() []string {
	var dirs []string
	if v := os.Getenv("STCONFDIR"); v != "" {
		dirs = append(dirs, v)
	}
	if v := os.Getenv("STHOMEDIR"); v != "" {
		dirs = append(dirs, v)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "state", "syncthing"))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, "syncthing"), filepath.Join(dir, "Syncthing"))
	}
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		dirs = append(dirs, filepath.Join(dir, "Syncthing"))
	}
	return dirs
}

// Discover reads the GUI settings from config.xml in home, or in the first
// of SyncthingHomes that has one when home is empty.
func Discover(home string) (*GUI, error) {
	dirs := SyncthingHomes()
	if home != "" {
		dirs = []string{home}
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, "config.xml")
		gui, err := ReadSyncthingConfig(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return gui, err
	}
	return nil, ErrNoSyncthingConfig
}

// ReadSyncthingConfig parses the GUI section of a config.xml file. Wildcard
// listen addresses map to loopback; a unix socket address leaves Host empty.
func ReadSyncthingConfig(path string) (*GUI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc syncthingXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.GUI.APIKey == "" {
		return nil, fmt.Errorf("%s has no API key", path)
	}

	gui := &GUI{TLS: doc.GUI.TLS, APIKey: doc.GUI.APIKey, Path: path}
	if host, port, err := net.SplitHostPort(doc.GUI.Address); err == nil {
		if p, err := strconv.Atoi(port); err == nil {
			gui.Host = loopback(host)
			gui.Port = p
		}
	}
	return gui, nil
}

func loopback(host string) string {
	switch host {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::":
		return "::1"
	}
	return host
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
