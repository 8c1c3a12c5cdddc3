// ABOUTME: Configuration loading and parsing for sealed-prefs
// ABOUTME: Supports YAML files with environment variable expansion, overrides and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEALED_PREFS_"

// Config represents the complete sealed-prefs configuration
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Security SecurityConfig `yaml:"security"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StoreConfig selects and configures the backing store
type StoreConfig struct {
	Backend     string        `yaml:"backend"`
	Path        string        `yaml:"path"`
	Driver      string        `yaml:"driver"`
	BusyTimeout time.Duration `yaml:"-"`
	RedisURL    string        `yaml:"redis_url"`
	RedisPrefix string        `yaml:"redis_prefix"`

	BusyTimeoutRaw string `yaml:"busy_timeout"`
}

// SecurityConfig holds tier selection and key storage configuration
type SecurityConfig struct {
	TopTier       string        `yaml:"top_tier"`
	TierNamespace string        `yaml:"tier_namespace"`
	KeyNamespace  string        `yaml:"key_namespace"`
	AliasNames    bool          `yaml:"alias_names"`
	Keyring       KeyringConfig `yaml:"keyring"`
}

// KeyringConfig configures the OS keyring used by the KEYSTORE tier
type KeyringConfig struct {
	Service      string   `yaml:"service"`
	Backends     []string `yaml:"backends"`
	FileDir      string   `yaml:"file_dir"`
	FilePassword string   `yaml:"file_password"`
}

// CacheConfig sizes the decrypted-name cache
type CacheConfig struct {
	NamesTTL time.Duration `yaml:"-"`
	NamesMax int           `yaml:"names_max"`

	NamesTTLRaw string `yaml:"names_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// overrides are read from SEALED_PREFS_* environment variables and win over
// the file. Empty values leave the file setting alone.
type overrides struct {
	Backend     string `env:"BACKEND"`
	Path        string `env:"PATH"`
	Driver      string `env:"DRIVER"`
	RedisURL    string `env:"REDIS_URL"`
	TopTier     string `env:"TOP_TIER"`
	AliasNames  string `env:"ALIAS_NAMES"`
	KeyringPass string `env:"KEYRING_PASSWORD"`
	LogLevel    string `env:"LOG_LEVEL"`
	LogFormat   string `env:"LOG_FORMAT"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:        BackendSQLite,
			Path:           defaultPath(),
			Driver:         "sqlite",
			BusyTimeoutRaw: "5s",
			RedisPrefix:    "sealed-prefs",
		},
		Security: SecurityConfig{
			TopTier:       "KEYSTORE",
			TierNamespace: "sealed-prefs.tiers",
			KeyNamespace:  "sealed-prefs.keys",
			Keyring: KeyringConfig{
				Service: "sealed-prefs",
			},
		},
		Cache: CacheConfig{
			NamesTTLRaw: "10m",
			NamesMax:    1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "sealed-prefs.db"
	}
	return filepath.Join(dir, "sealed-prefs", "prefs.db")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// An empty path loads the defaults. Environment variables in the format
// ${VAR_NAME} are expanded, SEALED_PREFS_* overrides are applied, and
// duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables in the raw YAML content
		expandedData := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyOverrides(cfg); err != nil {
		return nil, fmt.Errorf("reading environment overrides: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyOverrides(cfg *Config) error {
	var o overrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Store.Backend, o.Backend)
	set(&cfg.Store.Path, o.Path)
	set(&cfg.Store.Driver, o.Driver)
	set(&cfg.Store.RedisURL, o.RedisURL)
	set(&cfg.Security.TopTier, o.TopTier)
	set(&cfg.Security.Keyring.FilePassword, o.KeyringPass)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Logging.Format, o.LogFormat)

	if o.AliasNames != "" {
		v, err := strconv.ParseBool(o.AliasNames)
		if err != nil {
			return fmt.Errorf("%sALIAS_NAMES %q: %w", EnvPrefix, o.AliasNames, err)
		}
		cfg.Security.AliasNames = v
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite, BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory, sqlite, file, redis", c.Store.Backend)
	}

	if c.Store.Backend == BackendSQLite {
		switch c.Store.Driver {
		case "", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("store.driver %q is not one of sqlite, sqlite3", c.Store.Driver)
		}
	}

	switch strings.ToUpper(c.Security.TopTier) {
	case "KEYSTORE", "SYMMETRIC", "NONE":
	default:
		return fmt.Errorf("security.top_tier %q is not one of KEYSTORE, SYMMETRIC, NONE", c.Security.TopTier)
	}

	if c.Security.TierNamespace == "" {
		return fmt.Errorf("security.tier_namespace is required")
	}
	if c.Security.KeyNamespace == "" {
		return fmt.Errorf("security.key_namespace is required")
	}
	if c.Security.TierNamespace == c.Security.KeyNamespace {
		return fmt.Errorf("security.tier_namespace and security.key_namespace must differ")
	}

	if c.Cache.NamesMax < 0 {
		return fmt.Errorf("cache.names_max must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Store.BusyTimeoutRaw != "" {
		cfg.Store.BusyTimeout, err = time.ParseDuration(cfg.Store.BusyTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing busy_timeout %q: %w", cfg.Store.BusyTimeoutRaw, err)
		}
	}

	if cfg.Cache.NamesTTLRaw != "" {
		cfg.Cache.NamesTTL, err = time.ParseDuration(cfg.Cache.NamesTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing names_ttl %q: %w", cfg.Cache.NamesTTLRaw, err)
		}
	}

	return nil
}
