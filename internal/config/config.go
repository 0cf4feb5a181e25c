package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"stargazer/internal/model"
)

// Config is the application's configuration model.
// It captures the tracked repositories, credentials, extraction caps, and storage.
type Config struct {
	Repos       []RepoConfig      `yaml:"repos"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Extraction  ExtractionConfig  `yaml:"extraction"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type RepoConfig struct {
	// Name is the owner/name identifier of a tracked repository.
	Name string `yaml:"name"`
	// Token is a dedicated API token for this repo. If empty, the default
	// token is used. If TokenEnv is set, the token is read from that env var.
	Token    string `yaml:"token"`
	TokenEnv string `yaml:"tokenEnv"`
}

type CredentialsConfig struct {
	// Default GitHub token. If empty, read from env GITHUB_TOKEN.
	Token string `yaml:"token"`
}

type ExtractionConfig struct {
	// PerPage is fixed at the API maximum; kept configurable for tests.
	PerPage int `yaml:"perPage"`
	// MaxPages caps pagination; the API stops serving stargazers past 400 pages.
	MaxPages int `yaml:"maxPages"`
	// MaxAttempts and BaseBackoffMs drive transient-failure retries.
	MaxAttempts   int `yaml:"maxAttempts"`
	BaseBackoffMs int `yaml:"baseBackoffMs"`
	// Workers bounds concurrent per-repo extraction jobs. 0 means one per repo.
	Workers int `yaml:"workers"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

type MetricsConfig struct {
	// Addr for the /metrics listener, e.g. ":9090". Empty disables it.
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration tracking the same
// data-tooling repos the dashboard ships with.
func Default() Config {
	return Config{
		Repos: []RepoConfig{
			{Name: "dbt-labs/dbt-core"},
			{Name: "apache/airflow"},
			{Name: "dagster-io/dagster"},
			{Name: "duckdb/duckdb"},
			{Name: "dlt-hub/dlt"},
		},
		Credentials: CredentialsConfig{Token: ""},
		Extraction: ExtractionConfig{
			PerPage:       100,
			MaxPages:      400,
			MaxAttempts:   5,
			BaseBackoffMs: 500,
			Workers:       0,
		},
		Storage: StorageConfig{DBPath: "./stargazer.db"},
		Metrics: MetricsConfig{Addr: ""},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Credentials.Token == "" {
		c.Credentials.Token = os.Getenv("GITHUB_TOKEN")
	}
	if v := os.Getenv("STARGAZER_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
	for i := range c.Repos {
		if c.Repos[i].Token == "" && c.Repos[i].TokenEnv != "" {
			c.Repos[i].Token = os.Getenv(c.Repos[i].TokenEnv)
		}
	}
}

// Validate checks repo identifiers and caps.
func (c Config) Validate() error {
	if len(c.Repos) == 0 {
		return errors.New("no tracked repos configured")
	}
	for _, r := range c.Repos {
		if _, _, err := model.SplitRepo(r.Name); err != nil {
			return fmt.Errorf("repo %q: %w", r.Name, err)
		}
	}
	if c.Extraction.PerPage <= 0 || c.Extraction.MaxPages <= 0 {
		return errors.New("extraction caps must be positive")
	}
	return nil
}

// RepoNames returns the tracked repo identifiers in config order.
func (c Config) RepoNames() []string {
	out := make([]string, 0, len(c.Repos))
	for _, r := range c.Repos {
		out = append(out, r.Name)
	}
	return out
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
