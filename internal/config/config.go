package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed example.yaml
var exampleConfig embed.FS

// Config represents the complete syncstr configuration
type Config struct {
	Identity Identity `yaml:"identity"`
	Relays   Relays   `yaml:"relays"`
	Fetch    Fetch    `yaml:"fetch"`
	Backup   Backup   `yaml:"backup"`
	Serve    Serve    `yaml:"serve"`
	Metrics  Metrics  `yaml:"metrics"`
	Logging  Logging  `yaml:"logging"`
}

// Identity contains the profile owner. Accepts npub, nprofile or hex.
type Identity struct {
	Pubkey string `yaml:"pubkey"`
}

// Relays contains relay configuration
type Relays struct {
	// Shared relays back the pooled transport that is tried first.
	Shared []string    `yaml:"shared"`
	Policy RelayPolicy `yaml:"policy"`
}

// RelayPolicy contains relay connection policies
type RelayPolicy struct {
	ConnectTimeoutMs int  `yaml:"connect_timeout_ms"`
	FetchTimeoutMs   int  `yaml:"fetch_timeout_ms"`
	PublishTimeoutMs int  `yaml:"publish_timeout_ms"`
	ProbeTimeoutMs   int  `yaml:"probe_timeout_ms"`
	AllowInsecure    bool `yaml:"allow_insecure"` // accept ws:// addresses
}

// Fetch contains profile aggregation settings
type Fetch struct {
	Limit int `yaml:"limit"`
	// ExtraKinds maps additional replaceable kinds to slot names,
	// e.g. 10006: blockedRelays.
	ExtraKinds map[int]string `yaml:"extra_kinds"`
}

// Backup contains snapshot file settings
type Backup struct {
	Dir      string `yaml:"dir"`
	Product  string `yaml:"product"`
	Compress bool   `yaml:"compress"`
	KeepDays int    `yaml:"keep_days"` // 0 disables cleanup
}

// Serve contains settings for serving a snapshot as a local relay
type Serve struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
}

// Metrics contains metrics export settings
type Metrics struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"` // path for the node-exporter textfile collector
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration bytes, applying defaults and environment overrides
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults for missing fields
	applyDefaults(&cfg)

	// Apply environment variable overrides
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path when set, otherwise returns defaults with env overrides
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	cfg := Default()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills in missing configuration fields with sensible defaults
func applyDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Relays.Shared == nil {
		cfg.Relays.Shared = defaults.Relays.Shared
	}
	if cfg.Relays.Policy.ConnectTimeoutMs == 0 {
		cfg.Relays.Policy.ConnectTimeoutMs = defaults.Relays.Policy.ConnectTimeoutMs
	}
	if cfg.Relays.Policy.FetchTimeoutMs == 0 {
		cfg.Relays.Policy.FetchTimeoutMs = defaults.Relays.Policy.FetchTimeoutMs
	}
	if cfg.Relays.Policy.PublishTimeoutMs == 0 {
		cfg.Relays.Policy.PublishTimeoutMs = defaults.Relays.Policy.PublishTimeoutMs
	}
	if cfg.Relays.Policy.ProbeTimeoutMs == 0 {
		cfg.Relays.Policy.ProbeTimeoutMs = defaults.Relays.Policy.ProbeTimeoutMs
	}

	if cfg.Fetch.Limit == 0 {
		cfg.Fetch.Limit = defaults.Fetch.Limit
	}

	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = defaults.Backup.Dir
	}
	if cfg.Backup.Product == "" {
		cfg.Backup.Product = defaults.Backup.Product
	}

	if cfg.Serve.Bind == "" {
		cfg.Serve.Bind = defaults.Serve.Bind
	}
	if cfg.Serve.Port == 0 {
		cfg.Serve.Port = defaults.Serve.Port
	}
	if cfg.Serve.Name == "" {
		cfg.Serve.Name = defaults.Serve.Name
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) error {
	if pubkey := os.Getenv("SYNCSTR_PUBKEY"); pubkey != "" {
		cfg.Identity.Pubkey = pubkey
	}

	if level := os.Getenv("SYNCSTR_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}

	if shared, ok := os.LookupEnv("SYNCSTR_SHARED_RELAYS"); ok {
		relays := make([]string, 0)
		for _, r := range strings.Split(shared, ",") {
			if r = strings.TrimSpace(r); r != "" {
				relays = append(relays, r)
			}
		}
		cfg.Relays.Shared = relays
	}

	return nil
}

// GetExampleConfig returns the embedded example configuration
func GetExampleConfig() ([]byte, error) {
	return exampleConfig.ReadFile("example.yaml")
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Relays: Relays{
			Shared: []string{
				"wss://relay.damus.io",
				"wss://relay.nostr.band",
				"wss://nos.lol",
			},
			Policy: RelayPolicy{
				ConnectTimeoutMs: 5000,
				FetchTimeoutMs:   15000,
				PublishTimeoutMs: 15000,
				ProbeTimeoutMs:   5000,
			},
		},
		Fetch: Fetch{
			Limit: 50,
		},
		Backup: Backup{
			Dir:     "./backups",
			Product: "syncstr",
		},
		Serve: Serve{
			Bind: "127.0.0.1",
			Port: 7447,
			Name: "syncstr snapshot",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// validLogLevels defines allowed log levels
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines allowed log formats
var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks if a configuration is valid
func Validate(cfg *Config) error {
	// Validate shared relays
	for _, relay := range cfg.Relays.Shared {
		if !strings.HasPrefix(relay, "wss://") && !strings.HasPrefix(relay, "ws://") {
			return fmt.Errorf("shared relay must start with ws:// or wss://: %s", relay)
		}
	}

	// Validate timeouts
	p := cfg.Relays.Policy
	if p.ConnectTimeoutMs < 0 || p.FetchTimeoutMs < 0 || p.PublishTimeoutMs < 0 || p.ProbeTimeoutMs < 0 {
		return fmt.Errorf("relay timeouts must not be negative")
	}

	// Validate fetch
	if cfg.Fetch.Limit < 1 || cfg.Fetch.Limit > 500 {
		return fmt.Errorf("fetch.limit must be between 1 and 500")
	}
	for kind, slot := range cfg.Fetch.ExtraKinds {
		if kind < 0 {
			return fmt.Errorf("fetch.extra_kinds: invalid kind %d", kind)
		}
		if strings.TrimSpace(slot) == "" {
			return fmt.Errorf("fetch.extra_kinds: kind %d needs a slot name", kind)
		}
	}

	// Validate backup
	if cfg.Backup.KeepDays < 0 {
		return fmt.Errorf("backup.keep_days must not be negative")
	}
	if strings.ContainsAny(cfg.Backup.Product, `/\`) {
		return fmt.Errorf("backup.product must not contain path separators")
	}

	// Validate serve port
	if cfg.Serve.Port < 1 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("serve port must be between 1 and 65535")
	}

	// Validate log settings
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", cfg.Logging.Level)
	}
	if !validLogFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be one of: text, json)", cfg.Logging.Format)
	}

	return nil
}
