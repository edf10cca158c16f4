package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/guarzo/pkmprice/internal/cards"
	"github.com/guarzo/pkmprice/internal/sink"
)

// EnvPrefix prefixes every environment override, e.g. PKMPRICE_WORKERS.
const EnvPrefix = "PKMPRICE"

// APIKeyEnv is the conventional variable holding the catalog API key.
const APIKeyEnv = "POKEMON_TCG_API_KEY"

var (
	ErrAPIKeyMissing = errors.New("API key missing: set " + APIKeyEnv)
	ErrInvalid       = errors.New("invalid configuration")
)

// Config is the effective configuration after defaults, config file,
// environment and flags are merged, in increasing priority.
type Config struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	RetryWait    time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait"`
	Workers      int           `mapstructure:"workers"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	CardsToPrice string        `mapstructure:"cards_to_price"`
	OutputPath   string        `mapstructure:"path_to_dump_prices"`
	DatabaseDSN  string        `mapstructure:"database_dsn"`
	MappingsDir  string        `mapstructure:"mappings_dir"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	Schedule     string        `mapstructure:"schedule"`
	LogLevel     string        `mapstructure:"log_level"`
	Quiet        bool          `mapstructure:"quiet"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", cards.DefaultBaseURL)
	v.SetDefault("user_agent", cards.DefaultUserAgent)
	v.SetDefault("timeout", cards.DefaultTimeout)
	v.SetDefault("retries", cards.DefaultRetries)
	v.SetDefault("retry_wait", 500*time.Millisecond)
	v.SetDefault("retry_max_wait", 5*time.Second)
	v.SetDefault("workers", 1)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("path_to_dump_prices", sink.DefaultPath)
	v.SetDefault("mappings_dir", "")
	v.SetDefault("schedule", "@daily")
	v.SetDefault("log_level", "info")
	v.SetDefault("quiet", false)
	v.SetDefault("api_key", "")
	v.SetDefault("cards_to_price", "")
	v.SetDefault("database_dsn", "")
	v.SetDefault("metrics_addr", "")
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"base-url":     "base_url",
	"timeout":      "timeout",
	"retries":      "retries",
	"workers":      "workers",
	"rate-limit":   "rate_limit",
	"output":       "path_to_dump_prices",
	"db":           "database_dsn",
	"mappings-dir": "mappings_dir",
	"metrics-addr": "metrics_addr",
	"schedule":     "schedule",
	"log-level":    "log_level",
	"quiet":        "quiet",
}

// RegisterFlags adds the shared flags to fs. Defaults are left empty so an
// unset flag never hides a value from the config file or environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("base-url", "", "catalog API base URL")
	fs.Duration("timeout", 0, "per-request timeout")
	fs.Int("retries", 0, "retries for transient failures")
	fs.IntP("workers", "w", 0, "concurrent lookups")
	fs.Float64("rate-limit", 0, "maximum requests per second (0 = unlimited)")
	fs.StringP("output", "o", "", "append-only price log")
	fs.String("db", "", "MySQL DSN or sqlite://path; enables the database sink")
	fs.String("mappings-dir", "", "directory of set mapping files")
	fs.String("metrics-addr", "", "serve /metrics on this address")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.BoolP("quiet", "q", false, "no progress output")
}

// Options controls where Load looks.
type Options struct {
	ConfigFile string
	EnvFiles   []string // default ".env"
	Flags      *pflag.FlagSet
}

// Load merges defaults, an optional config file, the environment (after
// loading .env files that exist) and flags.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api_key", APIKeyEnv, EnvPrefix+"_API_KEY"); err != nil {
		return nil, err
	}

	configFile := opts.ConfigFile
	if configFile == "" && opts.Flags != nil {
		configFile, _ = opts.Flags.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values. requireKey is set by commands that call the
// catalog API.
func (c *Config) Validate(requireKey bool) error {
	if requireKey && strings.TrimSpace(c.APIKey) == "" {
		return ErrAPIKeyMissing
	}

	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if n := len(c.APIKey); n > 4 {
		c.APIKey = strings.Repeat("*", n-4) + c.APIKey[n-4:]
	} else if n > 0 {
		c.APIKey = "****"
	}
	if c.DatabaseDSN != "" {
		if at := strings.LastIndex(c.DatabaseDSN, "@"); at >= 0 {
			c.DatabaseDSN = "****" + c.DatabaseDSN[at:]
		}
	}
	return c
}

// Settings lists the configuration as key/value pairs in a fixed order.
func (c Config) Settings() [][2]string {
	return [][2]string{
		{"api_key", c.APIKey},
		{"base_url", c.BaseURL},
		{"user_agent", c.UserAgent},
		{"timeout", c.Timeout.String()},
		{"retries", fmt.Sprint(c.Retries)},
		{"retry_wait", c.RetryWait.String()},
		{"retry_max_wait", c.RetryMaxWait.String()},
		{"workers", fmt.Sprint(c.Workers)},
		{"rate_limit", fmt.Sprint(c.RateLimit)},
		{"cards_to_price", c.CardsToPrice},
		{"path_to_dump_prices", c.OutputPath},
		{"database_dsn", c.DatabaseDSN},
		{"mappings_dir", c.MappingsDir},
		{"metrics_addr", c.MetricsAddr},
		{"schedule", c.Schedule},
		{"log_level", c.LogLevel},
		{"quiet", fmt.Sprint(c.Quiet)},
	}
}
