// Package mirrorconfig is the ambient configuration layer: a YAML file
// loaded with gopkg.in/yaml.v3, then overridden by a fixed set of
// environment variables — the same two-step shape
// chenjiangme-jupitor/internal/config/config.go uses. CLI flags (built
// in cmd/edgar-mirror) are layered on top of this and always win,
// since command-line parsing itself is outside this package's and the
// retrieval engine's scope.
package mirrorconfig

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for an edgar-mirror run.
type Config struct {
	Upstream Upstream `yaml:"upstream"`
	Paths    Paths    `yaml:"paths"`
	Logging  Logging  `yaml:"logging"`
	Fetch    Fetch    `yaml:"fetch"`
}

// Upstream names the archive host.
type Upstream struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	UserAgent string `yaml:"user_agent"`
}

// Paths holds the local mirror roots.
type Paths struct {
	IndexDir    string `yaml:"index_dir"`
	FormDir     string `yaml:"form_dir"`
	NotesDir    string `yaml:"notes_dir"`
	TickerCache string `yaml:"ticker_cache"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// Fetch controls concurrency and politeness knobs.
type Fetch struct {
	MaxWorkers      int `yaml:"max_workers"`
	PoliteMillis    int `yaml:"polite_millis"`
	RequestTimeoutS int `yaml:"request_timeout_seconds"`
}

// Default returns the built-in defaults, matching the archive's
// public host and the teacher's own request timeout.
func Default() Config {
	return Config{
		Upstream: Upstream{
			Host:      "www.sec.gov",
			Port:      443,
			UserAgent: "edgarmirror/1.0 (contact: oss@example.com)",
		},
		Paths: Paths{
			IndexDir:    "data/index",
			FormDir:     "data/filings",
			NotesDir:    "data/notes",
			TickerCache: "data/ticker-cache.tsv",
		},
		Logging: Logging{Level: "info"},
		Fetch: Fetch{
			MaxWorkers:      4,
			PoliteMillis:    200,
			RequestTimeoutS: 30,
		},
	}
}

// Load reads the YAML configuration file at path, parses it over the
// built-in defaults, then applies environment variable overrides. A
// missing file is not an error — Load falls back to Default() and
// still applies overrides, so a bare environment-driven run works
// without a config file on disk.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides checks a fixed set of EDGAR_MIRROR_* environment
// variables and overrides the corresponding configuration fields when
// set, following chenjiangme-jupitor's applyEnvOverrides shape.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EDGAR_MIRROR_HOST"); v != "" {
		cfg.Upstream.Host = v
	}
	if v := os.Getenv("EDGAR_MIRROR_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upstream.Port = n
		}
	}
	if v := os.Getenv("EDGAR_MIRROR_USER_AGENT"); v != "" {
		cfg.Upstream.UserAgent = v
	}
	if v := os.Getenv("EDGAR_MIRROR_INDEX_DIR"); v != "" {
		cfg.Paths.IndexDir = v
	}
	if v := os.Getenv("EDGAR_MIRROR_FORM_DIR"); v != "" {
		cfg.Paths.FormDir = v
	}
	if v := os.Getenv("EDGAR_MIRROR_NOTES_DIR"); v != "" {
		cfg.Paths.NotesDir = v
	}
	if v := os.Getenv("EDGAR_MIRROR_TICKER_CACHE"); v != "" {
		cfg.Paths.TickerCache = v
	}
	if v := os.Getenv("EDGAR_MIRROR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EDGAR_MIRROR_LOG_PATH"); v != "" {
		cfg.Logging.Path = v
	}
	if v := os.Getenv("EDGAR_MIRROR_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.MaxWorkers = n
		}
	}
}
