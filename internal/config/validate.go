package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for errors. Store credentials are
// checked when a store is opened, since test runs and purges need
// different ones.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Input.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("input: %w", err))
	}
	if err := c.Output.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if c.Store.BatchSize < 0 {
		errs = append(errs, errors.New("store: batch_size must not be negative"))
	}
	if err := c.Audit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audit: %w", err))
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics: address is required when enabled"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}
	if _, err := c.BandClassifier(); err != nil {
		errs = append(errs, fmt.Errorf("band_rules: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the input configuration.
func (c *InputConfig) Validate() error {
	var errs []error
	if c.BinPrefix == "" {
		errs = append(errs, errors.New("bin_prefix is required"))
	}
	if c.MinBinCoverage < 0 {
		errs = append(errs, errors.New("min_bin_coverage must not be negative"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the output configuration.
func (c *OutputConfig) Validate() error {
	var errs []error
	switch c.Backend {
	case "local", "":
		if c.LocalDir == "" {
			errs = append(errs, errors.New("dir is required for the local backend"))
		}
	case "gcs", "s3":
		if c.Bucket == "" {
			errs = append(errs, fmt.Errorf("bucket is required for the %s backend", c.Backend))
		}
	case "mem":
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	switch c.ParquetCompression {
	case "", "zstd", "snappy", "gzip", "lz4", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown parquet_compression %q", c.ParquetCompression))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the audit configuration.
func (c *AuditConfig) Validate() error {
	if c.Enabled && c.Dir == "" {
		return errors.New("dir is required when enabled")
	}
	return nil
}
