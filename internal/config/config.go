// Package config loads the tainit-daily configuration from defaults, an
// optional YAML file and TAINIT_* environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/withObsrvr/tainit-daily/internal/histogram"
	"github.com/withObsrvr/tainit-daily/internal/identity"
	"github.com/withObsrvr/tainit-daily/internal/logging"
	"github.com/withObsrvr/tainit-daily/internal/metrics"
	"github.com/withObsrvr/tainit-daily/internal/reader"
	"github.com/withObsrvr/tainit-daily/internal/storage"
	"github.com/withObsrvr/tainit-daily/internal/store"
)

// Config is passed explicitly to every component that needs it.
type Config struct {
	Input      InputConfig         `yaml:"input"`
	Output     OutputConfig        `yaml:"output"`
	Store      store.Config        `yaml:"store"`
	AdminStore store.Config        `yaml:"admin_store"`
	Audit      AuditConfig         `yaml:"audit"`
	Metrics    metrics.Config      `yaml:"metrics"`
	Logging    logging.Config      `yaml:"logging"`
	BandRules  []identity.BandRule `yaml:"band_rules"`
}

// InputConfig describes the counter exports.
type InputConfig struct {
	// BinPrefix names the histogram columns <prefix>_00 .. <prefix>_34.
	BinPrefix      string `yaml:"bin_prefix"`
	MinBinCoverage int    `yaml:"min_bin_coverage"`
}

// OutputConfig selects where and how artifacts are written.
type OutputConfig struct {
	storage.Config `yaml:",inline"`

	Parquet            bool   `yaml:"parquet"`
	ParquetCompression string `yaml:"parquet_compression"`
	XLSX               bool   `yaml:"xlsx"`
	Zstd               bool   `yaml:"zstd"`
	Manifest           bool   `yaml:"manifest"`
}

// AuditConfig configures the hash-chained audit trail.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	Endpoint string `yaml:"endpoint"`
	// Strict turns audit emission failures into run failures.
	Strict bool `yaml:"strict"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			BinPrefix:      histogram.DefaultPrefix,
			MinBinCoverage: reader.MinBinCoverage,
		},
		Output: OutputConfig{
			Config: storage.Config{
				Backend:  "local",
				LocalDir: "./output",
			},
			ParquetCompression: "zstd",
			Manifest:           true,
		},
		Store: store.Config{
			Driver:    "mysql",
			Table:     store.DefaultTable,
			BatchSize: store.DefaultBatchSize,
		},
		Audit: AuditConfig{
			Dir: "./audit",
		},
		Metrics: metrics.Config{
			Address: ":9090",
		},
		Logging: logging.Config{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		log.Printf("[config] loaded %s", path)
	}

	cfg.applyEnv()
	cfg.inheritAdminStore()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides fields from TAINIT_* environment variables.
func (c *Config) applyEnv() {
	c.Input.BinPrefix = getenvDefault("TAINIT_INPUT_BIN_PREFIX", c.Input.BinPrefix)

	c.Output.Backend = getenvDefault("TAINIT_OUTPUT_BACKEND", c.Output.Backend)
	c.Output.LocalDir = getenvDefault("TAINIT_OUTPUT_DIR", c.Output.LocalDir)
	c.Output.Bucket = getenvDefault("TAINIT_OUTPUT_BUCKET", c.Output.Bucket)
	c.Output.Prefix = getenvDefault("TAINIT_OUTPUT_PREFIX", c.Output.Prefix)
	c.Output.Endpoint = getenvDefault("TAINIT_OUTPUT_ENDPOINT", c.Output.Endpoint)
	c.Output.Region = getenvDefault("TAINIT_OUTPUT_REGION", c.Output.Region)
	c.Output.Parquet = getenvBool("TAINIT_OUTPUT_PARQUET", c.Output.Parquet)
	c.Output.XLSX = getenvBool("TAINIT_OUTPUT_XLSX", c.Output.XLSX)
	c.Output.Zstd = getenvBool("TAINIT_OUTPUT_ZSTD", c.Output.Zstd)
	c.Output.Manifest = getenvBool("TAINIT_OUTPUT_MANIFEST", c.Output.Manifest)

	c.Store.Driver = getenvDefault("TAINIT_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getenvDefault("TAINIT_STORE_DSN", c.Store.DSN)
	c.Store.Table = getenvDefault("TAINIT_STORE_TABLE", c.Store.Table)
	c.Store.BatchSize = getenvInt("TAINIT_STORE_BATCH_SIZE", c.Store.BatchSize)
	c.Store.CreateTable = getenvBool("TAINIT_STORE_CREATE_TABLE", c.Store.CreateTable)

	c.AdminStore.Driver = getenvDefault("TAINIT_ADMIN_STORE_DRIVER", c.AdminStore.Driver)
	c.AdminStore.DSN = getenvDefault("TAINIT_ADMIN_STORE_DSN", c.AdminStore.DSN)
	c.AdminStore.Table = getenvDefault("TAINIT_ADMIN_STORE_TABLE", c.AdminStore.Table)

	c.Audit.Enabled = getenvBool("TAINIT_AUDIT_ENABLED", c.Audit.Enabled)
	c.Audit.Dir = getenvDefault("TAINIT_AUDIT_DIR", c.Audit.Dir)
	c.Audit.Endpoint = getenvDefault("TAINIT_AUDIT_ENDPOINT", c.Audit.Endpoint)
	c.Audit.Strict = getenvBool("TAINIT_AUDIT_STRICT", c.Audit.Strict)

	c.Metrics.Enabled = getenvBool("TAINIT_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Address = getenvDefault("TAINIT_METRICS_ADDRESS", c.Metrics.Address)

	c.Logging.Format = getenvDefault("TAINIT_LOG_FORMAT", c.Logging.Format)
	c.Logging.Level = getenvDefault("TAINIT_LOG_LEVEL", c.Logging.Level)
}

// inheritAdminStore fills admin store fields that only differ by
// credentials from the regular store.
func (c *Config) inheritAdminStore() {
	if c.AdminStore.Driver == "" {
		c.AdminStore.Driver = c.Store.Driver
	}
	if c.AdminStore.Table == "" {
		c.AdminStore.Table = c.Store.Table
	}
}

// BandClassifier returns the configured band rule table.
func (c *Config) BandClassifier() (identity.BandClassifier, error) {
	if len(c.BandRules) == 0 {
		return identity.DefaultRuleTable(), nil
	}
	return identity.NewRuleTable(c.BandRules)
}

// BinColumns returns the ordered histogram column names.
func (c *Config) BinColumns() []string {
	return histogram.Columns(c.Input.BinPrefix)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] ignoring %s=%q: %v", key, v, err)
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] ignoring %s=%q: %v", key, v, err)
		return def
	}
	return parsed
}
