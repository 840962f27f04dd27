// Package config loads logictl settings: defaults, then an optional YAML file, then
// LOGI_* environment variables, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/and161185/logistics-keeper/internal/remote"
)

// Store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds every tunable of the application.
type Config struct {
	DataDir           string        `yaml:"data_dir"`
	Store             string        `yaml:"store"`
	DSN               string        `yaml:"dsn"`
	RemoteURL         string        `yaml:"remote_url"`
	Collection        string        `yaml:"collection"`
	Debounce          time.Duration `yaml:"debounce"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	PushRetries       uint64        `yaml:"push_retries"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	SessionKey        string        `yaml:"session_key"`
	BootstrapPassword string        `yaml:"bootstrap_password"`
	Passphrase        string        `yaml:"passphrase"`
	LogLevel          string        `yaml:"log_level"`
}

// Dir returns the per-user configuration directory.
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "logistics")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "logistics")
}

// DefaultPath is the config file read when -config is not given.
func DefaultPath() string { return filepath.Join(Dir(), "config.yaml") }

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DataDir:           Dir(),
		Store:             StoreFile,
		RemoteURL:         remote.DefaultBaseURL,
		Collection:        remote.DefaultCollection,
		Debounce:          2 * time.Second,
		RequestTimeout:    30 * time.Second,
		PushRetries:       3,
		SessionTTL:        12 * time.Hour,
		BootstrapPassword: "admin",
		LogLevel:          "warn",
	}
}

type field struct {
	flag, env, usage string
	set              func(c *Config, v string) error
}

var fields = []field{
	{"data-dir", "LOGI_DATA_DIR", "directory for local state", func(c *Config, v string) error { c.DataDir = v; return nil }},
	{"store", "LOGI_STORE", "store backend: file, postgres or memory", func(c *Config, v string) error { c.Store = v; return nil }},
	{"dsn", "LOGI_DSN", "PostgreSQL DSN for the postgres store", func(c *Config, v string) error { c.DSN = v; return nil }},
	{"remote", "LOGI_REMOTE_URL", "document API base URL", func(c *Config, v string) error { c.RemoteURL = v; return nil }},
	{"collection", "LOGI_COLLECTION", "document collection path segment", func(c *Config, v string) error { c.Collection = v; return nil }},
	{"debounce", "LOGI_DEBOUNCE", "quiet period before an automatic push", durationSetter(func(c *Config) *time.Duration { return &c.Debounce })},
	{"timeout", "LOGI_REQUEST_TIMEOUT", "remote request timeout", durationSetter(func(c *Config) *time.Duration { return &c.RequestTimeout })},
	{"retries", "LOGI_PUSH_RETRIES", "retries of a push after transport errors", func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid count %q", v)
		}
		c.PushRetries = n
		return nil
	}},
	{"session-ttl", "LOGI_SESSION_TTL", "login session lifetime", durationSetter(func(c *Config) *time.Duration { return &c.SessionTTL })},
	{"session-key", "LOGI_SESSION_KEY", "session signing key (generated when empty)", func(c *Config, v string) error { c.SessionKey = v; return nil }},
	{"bootstrap-password", "LOGI_BOOTSTRAP_PASSWORD", "initial ADMIN password on an empty store", func(c *Config, v string) error { c.BootstrapPassword = v; return nil }},
	{"passphrase", "LOGI_PASSPHRASE", "passphrase sealing the remembered sync token", func(c *Config, v string) error { c.Passphrase = v; return nil }},
	{"log-level", "LOGI_LOG_LEVEL", "log level: debug, info, warn, error", func(c *Config, v string) error { c.LogLevel = v; return nil }},
}

func durationSetter(ptr func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q (use 30s, 1h, 15m)", v)
		}
		*ptr(c) = d
		return nil
	}
}

// RegisterFlags adds one flag per setting to fs. Flags left unset do not override
// file or environment values.
func RegisterFlags(fs *flag.FlagSet) {
	for _, f := range fields {
		fs.String(f.flag, "", f.usage+" (env "+f.env+")")
	}
}

// Load builds the configuration. An empty path reads DefaultPath if it exists;
// an explicit path must exist. fs may be nil.
func Load(path string, fs *flag.FlagSet) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	for _, f := range fields {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		if err := f.set(&cfg, v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", f.env, err)
		}
	}

	if fs != nil {
		var ferr error
		fs.Visit(func(fl *flag.Flag) {
			for _, f := range fields {
				if f.flag == fl.Name && ferr == nil {
					if err := f.set(&cfg, fl.Value.String()); err != nil {
						ferr = fmt.Errorf("-%s: %w", f.flag, err)
					}
				}
			}
		})
		if ferr != nil {
			return Config{}, ferr
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) readFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreMemory:
	case StorePostgres:
		if c.DSN == "" {
			return errors.New("store postgres requires dsn")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is empty")
	}
	if c.Debounce <= 0 {
		return errors.New("debounce must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be > 0")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}
