package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestYAML(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test yaml: %v", err)
	}
	return path
}

const minimalSources = `
sources:
  - id: alpha
    name: Alpha
    feed: https://alpha.example/feed
`

// --- Load tests ---

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_REDIS_ADDR", "localhost:6379")
	t.Setenv("TEST_REDIS_PASSWORD", "hunter2")

	writeTestYAML(t, dir, DefaultConfigFile, `
sources:
  - id: paul-graham
    name: Paul Graham
    feed: http://www.aaronsw.com/2002/feeds/pgessays.rss
  - id: vitalik
    feed: https://vitalik.eth.limo/feed.xml
state:
  backend: redis
  path: /tmp/state.json
  max_seen: 100
  redis:
    addr_env: TEST_REDIS_ADDR
    password_env: TEST_REDIS_PASSWORD
    key: custom:key
    db: 2
window:
  since: 168h
  grace: 4h
digest:
  title: Weekly
  max_posts_per_source: 3
  hn_limit: 0
  excerpt_len: 300
  format: markdown
  layout: by-source
fetch:
  timeout: 5s
archive:
  path: archive.db
  retain_days: 14
privacy:
  redact:
    enabled: true
    patterns:
      - "(?i)token"
log:
  level: debug
  file: readdigest.log
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(cfg.Sources))
	}
	if cfg.Sources[1].Name != "vitalik" {
		t.Errorf("name fallback = %q, want vitalik", cfg.Sources[1].Name)
	}

	if cfg.State.Backend != BackendRedis || cfg.State.MaxSeen != 100 {
		t.Errorf("state = %+v", cfg.State)
	}
	if cfg.State.Redis.Addr != "localhost:6379" || cfg.State.Redis.Password != "hunter2" {
		t.Errorf("redis env not resolved: %+v", cfg.State.Redis)
	}
	if cfg.State.Redis.Key != "custom:key" || cfg.State.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.State.Redis)
	}

	if cfg.Window.Since.Duration != 168*time.Hour || cfg.Window.Grace.Duration != 4*time.Hour {
		t.Errorf("window = %v / %v", cfg.Window.Since.Duration, cfg.Window.Grace.Duration)
	}

	if cfg.Digest.HN() != 0 {
		t.Errorf("hn = %d, want 0 (explicitly disabled)", cfg.Digest.HN())
	}
	if cfg.Digest.MaxPostsPerSource != 3 || cfg.Digest.ExcerptLen != 300 {
		t.Errorf("digest = %+v", cfg.Digest)
	}
	if cfg.Digest.Format != "markdown" || cfg.Digest.Layout != "by-source" || cfg.Digest.Title != "Weekly" {
		t.Errorf("digest = %+v", cfg.Digest)
	}

	if cfg.Fetch.Timeout.Duration != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Fetch.Timeout.Duration)
	}
	if cfg.Archive.Path != "archive.db" || cfg.Archive.RetainDays != 14 {
		t.Errorf("archive = %+v", cfg.Archive)
	}
	if !cfg.Privacy.Redact.Enabled || len(cfg.Privacy.Redact.Patterns) != 1 {
		t.Errorf("privacy = %+v", cfg.Privacy)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "readdigest.log" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, minimalSources)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.State.Backend != BackendFile {
		t.Errorf("backend = %q, want file", cfg.State.Backend)
	}
	if cfg.State.Path != DefaultStatePath {
		t.Errorf("state.path = %q, want %q", cfg.State.Path, DefaultStatePath)
	}
	if cfg.State.MaxSeen != DefaultMaxSeen {
		t.Errorf("max_seen = %d, want %d", cfg.State.MaxSeen, DefaultMaxSeen)
	}
	if cfg.Window.Since.Duration != DefaultSince {
		t.Errorf("since = %v, want %v", cfg.Window.Since.Duration, DefaultSince)
	}
	if cfg.Window.Grace.Duration != DefaultGrace {
		t.Errorf("grace = %v, want %v", cfg.Window.Grace.Duration, DefaultGrace)
	}
	if cfg.Digest.HN() != DefaultHNLimit {
		t.Errorf("hn = %d, want %d", cfg.Digest.HN(), DefaultHNLimit)
	}
	if cfg.Digest.MaxPostsPerSource != DefaultMaxPerSource {
		t.Errorf("max_posts_per_source = %d", cfg.Digest.MaxPostsPerSource)
	}
	if cfg.Digest.ExcerptLen != DefaultExcerptLen {
		t.Errorf("excerpt_len = %d", cfg.Digest.ExcerptLen)
	}
	if cfg.Digest.Format != DefaultFormat || cfg.Digest.Layout != DefaultLayout {
		t.Errorf("format/layout = %q/%q", cfg.Digest.Format, cfg.Digest.Layout)
	}
	if cfg.Fetch.Timeout.Duration != DefaultTimeout {
		t.Errorf("timeout = %v", cfg.Fetch.Timeout.Duration)
	}
	if cfg.Archive.Path != "" || cfg.Archive.RetainDays != DefaultRetainDays {
		t.Errorf("archive = %+v", cfg.Archive)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoad_ExplicitZeroGrace(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, minimalSources+`
window:
  grace: 0s
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Window.Grace.Duration != 0 {
		t.Errorf("grace = %v, want 0", cfg.Window.Grace.Duration)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no sources", "sources: []\n", "at least one source must be configured"},
		{"missing id", "sources:\n  - feed: https://a.example/feed\n", "id is required"},
		{"duplicate id", "sources:\n  - id: a\n    feed: https://a.example/feed\n  - id: a\n    feed: https://b.example/feed\n", "duplicate id"},
		{"missing feed", "sources:\n  - id: a\n", "feed url is required"},
		{"relative feed", "sources:\n  - id: a\n    feed: /feed.xml\n", "absolute http(s)"},
		{"ftp feed", "sources:\n  - id: a\n    feed: ftp://a.example/feed\n", "absolute http(s)"},
		{"unknown backend", minimalSources + "state:\n  backend: etcd\n", "state.backend"},
		{"redis without addr", minimalSources + "state:\n  backend: redis\n  redis:\n    addr_env: READDIGEST_TEST_UNSET_ADDR\n", "READDIGEST_TEST_UNSET_ADDR"},
		{"negative max_seen", minimalSources + "state:\n  max_seen: -1\n", "state.max_seen"},
		{"negative grace", minimalSources + "window:\n  grace: -1h\n", "window.grace"},
		{"zero since", minimalSources + "window:\n  since: 0s\n", "window.since"},
		{"bad duration", minimalSources + "window:\n  since: soon\n", "parse duration"},
		{"negative hn", minimalSources + "digest:\n  hn_limit: -2\n", "digest.hn_limit"},
		{"hn over cap", minimalSources + "digest:\n  hn_limit: 101\n", "between 0 and 100"},
		{"unknown format", minimalSources + "digest:\n  format: html\n", "digest.format"},
		{"unknown layout", minimalSources + "digest:\n  layout: grid\n", "digest.layout"},
		{"bad pattern", minimalSources + "privacy:\n  redact:\n    enabled: true\n    patterns: [\"[oops\"]\n", "privacy.redact"},
		{"unknown log level", minimalSources + "log:\n  level: loud\n", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTestYAML(t, dir, DefaultConfigFile, tt.yaml)

			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_DisabledRedactSkipsPatterns(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, minimalSources+`
privacy:
  redact:
    enabled: false
    patterns: ["[oops"]
`)

	if _, err := Load(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if want := "read config"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want containing %q", err, want)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultConfigFile, "sources: [unterminated")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for invalid yaml")
	}
	if want := "parse config"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want containing %q", err, want)
	}
}

func TestLoad_EmptyDir(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	const key = "READDIGEST_TEST_DOTENV_ADDR"
	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s already set", key)
	}
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultEnvFile, key+"=redis.internal:6379\n")
	writeTestYAML(t, dir, DefaultConfigFile, minimalSources+`
state:
  backend: redis
  redis:
    addr_env: `+key+`
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.State.Redis.Addr != "redis.internal:6379" {
		t.Errorf("addr = %q, want value from .env", cfg.State.Redis.Addr)
	}
}

func TestLoad_EnvOverridesEnvFile(t *testing.T) {
	const key = "READDIGEST_TEST_DOTENV_OVERRIDE"
	t.Setenv(key, "from-env:6379")

	dir := t.TempDir()
	writeTestYAML(t, dir, DefaultEnvFile, key+"=from-file:6379\n")
	writeTestYAML(t, dir, DefaultConfigFile, minimalSources+`
state:
  backend: redis
  redis:
    addr_env: `+key+`
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.State.Redis.Addr != "from-env:6379" {
		t.Errorf("addr = %q, want environment value", cfg.State.Redis.Addr)
	}
}

// --- Preset tests ---

func TestPreset_LoadsCleanly(t *testing.T) {
	for _, name := range Presets() {
		t.Run(name, func(t *testing.T) {
			text, err := Preset(name)
			if err != nil {
				t.Fatalf("preset: %v", err)
			}
			dir := t.TempDir()
			writeTestYAML(t, dir, DefaultConfigFile, text)

			if _, err := Load(dir); err != nil {
				t.Fatalf("load %s preset: %v", name, err)
			}
		})
	}
}

func TestPreset_Values(t *testing.T) {
	tests := []struct {
		name       string
		sources    int
		since      time.Duration
		grace      time.Duration
		hn         int
		excerptLen int
		layout     string
	}{
		{PresetReading, 5, 30 * time.Hour, 2 * time.Hour, 10, 240, "timeline"},
		{PresetNewsletter, 2, 168 * time.Hour, 4 * time.Hour, 0, 300, "by-source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := Preset(tt.name)
			if err != nil {
				t.Fatalf("preset: %v", err)
			}
			cfg, err := Parse([]byte(text))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(cfg.Sources) != tt.sources {
				t.Errorf("sources = %d, want %d", len(cfg.Sources), tt.sources)
			}
			if cfg.Window.Since.Duration != tt.since || cfg.Window.Grace.Duration != tt.grace {
				t.Errorf("window = %v/%v", cfg.Window.Since.Duration, cfg.Window.Grace.Duration)
			}
			if cfg.Digest.HN() != tt.hn {
				t.Errorf("hn = %d, want %d", cfg.Digest.HN(), tt.hn)
			}
			if cfg.Digest.ExcerptLen != tt.excerptLen {
				t.Errorf("excerpt_len = %d, want %d", cfg.Digest.ExcerptLen, tt.excerptLen)
			}
			if cfg.Digest.Layout != tt.layout {
				t.Errorf("layout = %q, want %q", cfg.Digest.Layout, tt.layout)
			}
		})
	}
}

func TestPreset_Unknown(t *testing.T) {
	if _, err := Preset("podcasts"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
