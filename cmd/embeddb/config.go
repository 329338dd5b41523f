package main

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/hupe1980/embeddb/codec"
	"github.com/hupe1980/embeddb/snapshot"
)

// Config is the CLI configuration. Keys map to EMBEDDB_* environment
// variables with dots replaced by underscores, e.g. EMBEDDB_STORAGE_BACKEND.
type Config struct {
	DataDir   string          `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
}

// StorageConfig selects where snapshots are kept.
type StorageConfig struct {
	// Backend is one of local, s3, minio, badger or sqlite.
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Codec       string `mapstructure:"codec" yaml:"codec"`
	Compression string `mapstructure:"compression" yaml:"compression"`
	Retention   int    `mapstructure:"retention" yaml:"retention"`

	S3    S3Config    `mapstructure:"s3" yaml:"s3"`
	Minio MinioConfig `mapstructure:"minio" yaml:"minio"`
}

// S3Config configures the s3 backend. With a table set, the CURRENT
// pointer is committed through DynamoDB.
type S3Config struct {
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	Region   string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Table    string `mapstructure:"table" yaml:"table,omitempty"`
}

// MinioConfig configures the minio backend.
type MinioConfig struct {
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey    string `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey    string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	Secure       bool   `mapstructure:"secure" yaml:"secure"`
	CreateBucket bool   `mapstructure:"create_bucket" yaml:"create_bucket"`
}

// EmbeddingConfig selects the embedding provider used by ingest and query.
type EmbeddingConfig struct {
	// Provider is hash or openai.
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Dimension int    `mapstructure:"dimension" yaml:"dimension"`
	Model     string `mapstructure:"model" yaml:"model,omitempty"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

var (
	backends  = []string{"local", "s3", "minio", "badger", "sqlite"}
	providers = []string{"hash", "openai"}
)

// setDefaults registers the default value of every key. Keys without a
// default are invisible to AutomaticEnv during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./embeddb-data")
	v.SetDefault("log_level", "warn")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.codec", "msgpack")
	v.SetDefault("storage.compression", "zstd")
	v.SetDefault("storage.retention", 2)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "embeddb")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.table", "")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.bucket", "embeddb")
	v.SetDefault("storage.minio.prefix", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.secure", false)
	v.SetDefault("storage.minio.create_bucket", true)

	v.SetDefault("embedding.provider", "hash")
	v.SetDefault("embedding.dimension", 256)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
}

func setupEnv(v *viper.Viper) {
	v.SetEnvPrefix("EMBEDDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadConfig decodes and validates the configuration held by v.
func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate returns every problem found in c.
func (c *Config) Validate() []error {
	var errs []error

	if !slices.Contains(backends, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("storage.backend: must be one of %s, got %q", strings.Join(backends, ", "), c.Storage.Backend))
	}
	if _, ok := codec.ByName(c.Storage.Codec); !ok {
		errs = append(errs, fmt.Errorf("storage.codec: must be one of %s, got %q", strings.Join(codec.Names(), ", "), c.Storage.Codec))
	}
	if _, err := snapshot.ParseCompression(c.Storage.Compression); err != nil {
		errs = append(errs, fmt.Errorf("storage.compression: %w", err))
	}
	if c.Storage.Retention < 1 {
		errs = append(errs, fmt.Errorf("storage.retention: must be at least 1, got %d", c.Storage.Retention))
	}

	switch c.Storage.Backend {
	case "local", "badger", "sqlite":
		if c.DataDir == "" {
			errs = append(errs, errors.New("data_dir: required for the "+c.Storage.Backend+" backend"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket: required"))
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			errs = append(errs, errors.New("storage.minio: endpoint and bucket are required"))
		}
	}

	if !slices.Contains(providers, c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("embedding.provider: must be one of %s, got %q", strings.Join(providers, ", "), c.Embedding.Provider))
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension: must be positive, got %d", c.Embedding.Dimension))
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
