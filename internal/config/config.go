package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level statement-import.yaml configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Nordigen NordigenConfig `yaml:"nordigen"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig points at the PostgreSQL store.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// BigQueryConfig locates the import run log. An empty project disables it.
type BigQueryConfig struct {
	ProjectID string `yaml:"project_id"`
	DatasetID string `yaml:"dataset_id"`
}

// ArchiveConfig names the bucket for raw payloads. An empty bucket disables archiving.
type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
}

// NordigenConfig holds the bank account data API credentials.
type NordigenConfig struct {
	BaseURL     string  `yaml:"base_url"`
	SecretID    string  `yaml:"secret_id"`
	SecretKey   string  `yaml:"secret_key"`
	RedirectURL string  `yaml:"redirect_url"`
	Concurrency int     `yaml:"concurrency"`
	RateLimit   float64 `yaml:"rate_limit"` // requests per second
	Burst       int     `yaml:"burst"`
}

// LogConfig selects the log level and output format (console or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a config file on top of Default and applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			URL:      "postgres://localhost:5432/statement_import?sslmode=disable",
			MaxConns: 10,
		},
		BigQuery: BigQueryConfig{
			DatasetID: "statement_import",
		},
		Nordigen: NordigenConfig{
			BaseURL:     "https://bankaccountdata.gocardless.com/api/v2",
			Concurrency: 4,
			RateLimit:   4,
			Burst:       4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// applyEnv overrides file values with the deployment environment.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"PORT":                  &cfg.Server.Port,
		"DATABASE_URL":          &cfg.Database.URL,
		"BIGQUERY_PROJECT":      &cfg.BigQuery.ProjectID,
		"BIGQUERY_DATASET":      &cfg.BigQuery.DatasetID,
		"GCS_BUCKET":            &cfg.Archive.Bucket,
		"NORDIGEN_SECRET_ID":    &cfg.Nordigen.SecretID,
		"NORDIGEN_SECRET_KEY":   &cfg.Nordigen.SecretKey,
		"NORDIGEN_REDIRECT_URL": &cfg.Nordigen.RedirectURL,
		"LOG_LEVEL":             &cfg.Log.Level,
	}
	for name, field := range strs {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("NORDIGEN_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("parsing NORDIGEN_CONCURRENCY %q: must be a positive integer", v)
		}
		cfg.Nordigen.Concurrency = n
	}
	return nil
}
