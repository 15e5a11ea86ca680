package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile   = "config.yaml"
	DefaultEnvFile      = ".env"
	DefaultStatePath    = "~/.readdigest/state.json"
	DefaultRedisKey     = "readdigest:state"
	DefaultMaxSeen      = 2500
	DefaultSince        = 30 * time.Hour
	DefaultGrace        = 2 * time.Hour
	DefaultMaxPerSource = 5
	DefaultHNLimit      = 10
	MaxHNLimit          = 100
	DefaultExcerptLen   = 240
	DefaultFormat       = "json"
	DefaultLayout       = "timeline"
	DefaultTimeout      = 20 * time.Second
	DefaultRetainDays   = 90
	DefaultLogLevel     = "info"

	BackendFile  = "file"
	BackendRedis = "redis"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "30h".
// An explicit "0s" is kept; only an omitted value takes the default.
type Duration struct {
	time.Duration
	set bool
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	d.set = true
	return nil
}

func (d Duration) unset() bool {
	return !d.set && d.Duration == 0
}

type Config struct {
	Sources []SourceConfig `yaml:"sources"`
	State   StateConfig    `yaml:"state"`
	Window  WindowConfig   `yaml:"window"`
	Digest  DigestConfig   `yaml:"digest"`
	Fetch   FetchConfig    `yaml:"fetch"`
	Archive ArchiveConfig  `yaml:"archive"`
	Privacy PrivacyConfig  `yaml:"privacy"`
	Log     LogConfig      `yaml:"log"`
}

type SourceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Feed string `yaml:"feed"`
}

type StateConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	MaxSeen int         `yaml:"max_seen"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	AddrEnv     string `yaml:"addr_env"`
	PasswordEnv string `yaml:"password_env"`
	Key         string `yaml:"key"`
	DB          int    `yaml:"db"`

	// Resolved from env vars at load time.
	Addr     string `yaml:"-"`
	Password string `yaml:"-"`
}

type WindowConfig struct {
	Since Duration `yaml:"since"`
	Grace Duration `yaml:"grace"`
}

type DigestConfig struct {
	MaxPostsPerSource int    `yaml:"max_posts_per_source"`
	HNLimit           *int   `yaml:"hn_limit"`
	ExcerptLen        int    `yaml:"excerpt_len"`
	Format            string `yaml:"format"`
	Layout            string `yaml:"layout"`
	Title             string `yaml:"title"`
}

// HN returns the configured ranked-story count; an omitted hn_limit means
// DefaultHNLimit and an explicit 0 disables the block.
func (d DigestConfig) HN() int {
	if d.HNLimit == nil {
		return DefaultHNLimit
	}
	return *d.HNLimit
}

type FetchConfig struct {
	Timeout Duration `yaml:"timeout"`
}

type ArchiveConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

type RedactConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
// A .env file in the working directory or in dir is loaded first; variables
// already set in the environment win.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	loadEnvFiles(dir)
	resolveEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Parse decodes a config document and applies defaults without validating it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func loadEnvFiles(dir string) {
	for _, p := range []string{DefaultEnvFile, filepath.Join(dir, DefaultEnvFile)} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

func applyDefaults(cfg *Config) {
	for i := range cfg.Sources {
		if cfg.Sources[i].Name == "" {
			cfg.Sources[i].Name = cfg.Sources[i].ID
		}
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = BackendFile
	}
	if cfg.State.Path == "" {
		cfg.State.Path = DefaultStatePath
	}
	if cfg.State.MaxSeen == 0 {
		cfg.State.MaxSeen = DefaultMaxSeen
	}
	if cfg.State.Redis.Key == "" {
		cfg.State.Redis.Key = DefaultRedisKey
	}
	if cfg.Window.Since.unset() {
		cfg.Window.Since.Duration = DefaultSince
	}
	if cfg.Window.Grace.unset() {
		cfg.Window.Grace.Duration = DefaultGrace
	}
	if cfg.Digest.MaxPostsPerSource == 0 {
		cfg.Digest.MaxPostsPerSource = DefaultMaxPerSource
	}
	if cfg.Digest.ExcerptLen == 0 {
		cfg.Digest.ExcerptLen = DefaultExcerptLen
	}
	if cfg.Digest.Format == "" {
		cfg.Digest.Format = DefaultFormat
	}
	if cfg.Digest.Layout == "" {
		cfg.Digest.Layout = DefaultLayout
	}
	if cfg.Fetch.Timeout.unset() {
		cfg.Fetch.Timeout.Duration = DefaultTimeout
	}
	if cfg.Archive.RetainDays == 0 {
		cfg.Archive.RetainDays = DefaultRetainDays
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func resolveEnv(cfg *Config) {
	if cfg.State.Redis.AddrEnv != "" {
		cfg.State.Redis.Addr = os.Getenv(cfg.State.Redis.AddrEnv)
	}
	if cfg.State.Redis.PasswordEnv != "" {
		cfg.State.Redis.Password = os.Getenv(cfg.State.Redis.PasswordEnv)
	}
}

func validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return errors.New("sources: at least one source must be configured")
	}
	ids := make(map[string]bool, len(cfg.Sources))
	for i, s := range cfg.Sources {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if ids[s.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, s.ID)
		}
		ids[s.ID] = true
		if err := validateFeedURL(s.Feed); err != nil {
			return fmt.Errorf("sources[%d] %s: %w", i, s.ID, err)
		}
	}

	switch cfg.State.Backend {
	case BackendFile:
	case BackendRedis:
		if cfg.State.Redis.Addr == "" {
			return fmt.Errorf("state.redis: address is empty (set %s)", envName(cfg.State.Redis.AddrEnv))
		}
	default:
		return fmt.Errorf("state.backend: unknown backend %q (want file or redis)", cfg.State.Backend)
	}
	if cfg.State.MaxSeen < 0 {
		return fmt.Errorf("state.max_seen: must be positive, got %d", cfg.State.MaxSeen)
	}

	if cfg.Window.Since.Duration <= 0 {
		return fmt.Errorf("window.since: must be positive")
	}
	if cfg.Window.Grace.Duration < 0 {
		return fmt.Errorf("window.grace: must not be negative")
	}
	if cfg.Fetch.Timeout.Duration <= 0 {
		return fmt.Errorf("fetch.timeout: must be positive")
	}

	if cfg.Digest.MaxPostsPerSource < 0 {
		return fmt.Errorf("digest.max_posts_per_source: must not be negative")
	}
	if n := cfg.Digest.HN(); n < 0 || n > MaxHNLimit {
		return fmt.Errorf("digest.hn_limit: must be between 0 and %d, got %d", MaxHNLimit, n)
	}
	if cfg.Digest.ExcerptLen < 0 {
		return fmt.Errorf("digest.excerpt_len: must not be negative")
	}
	switch cfg.Digest.Format {
	case "json", "markdown", "terminal":
	default:
		return fmt.Errorf("digest.format: unknown format %q (want json, markdown or terminal)", cfg.Digest.Format)
	}
	switch cfg.Digest.Layout {
	case "timeline", "by-source":
	default:
		return fmt.Errorf("digest.layout: unknown layout %q (want timeline or by-source)", cfg.Digest.Layout)
	}

	if cfg.Archive.RetainDays < 0 {
		return fmt.Errorf("archive.retain_days: must not be negative")
	}

	if cfg.Privacy.Redact.Enabled {
		for _, p := range cfg.Privacy.Redact.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("privacy.redact: pattern %q: %w", p, err)
			}
		}
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}

	return nil
}

func validateFeedURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("feed url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("feed url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("feed url %q: must be an absolute http(s) url", raw)
	}
	return nil
}

func envName(name string) string {
	if name == "" {
		return "state.redis.addr_env"
	}
	return name
}
