// Copyright © 2025 Admin Road Engineering.

package provider

import (
	"fmt"
	"time"

	"github.com/admin-road-engineering/elevation"
)

// Environments.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// SourceConfig configures one data source in the fallback chain.
type SourceConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Priority         int           `mapstructure:"priority"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`

	// HTTP API sources only.
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	DailyQuota int64  `mapstructure:"daily_quota"`
}

// RedisConfig locates the shared circuit-breaker store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Config is pure data: nothing here performs I/O. All loading happens
// in New.
type Config struct {
	AppEnv          string      `mapstructure:"app_env"`
	SpatialIndexURI string      `mapstructure:"spatial_index_uri"`
	EnableAU        bool        `mapstructure:"enable_au"`
	EnableNZ        bool        `mapstructure:"enable_nz"`
	AWSRegion       string      `mapstructure:"aws_region"`
	PublicBuckets   []string    `mapstructure:"public_buckets"`
	Redis           RedisConfig `mapstructure:"redis"`

	BatchLimit      int `mapstructure:"batch_limit"`
	Concurrency     int `mapstructure:"concurrency"`
	RasterCacheSize int `mapstructure:"raster_cache_size"`

	PrivateBucket SourceConfig `mapstructure:"private_bucket"`
	PublicBucket  SourceConfig `mapstructure:"public_bucket"`
	APIA          SourceConfig `mapstructure:"http_api_a"`
	APIB          SourceConfig `mapstructure:"http_api_b"`
}

// DefaultConfig returns the development defaults. Bucket reads get
// tight deadlines so the chain reaches the HTTP fallbacks quickly;
// the external APIs get progressively looser ones.
func DefaultConfig() Config {
	return Config{
		AppEnv:          EnvDevelopment,
		EnableAU:        true,
		EnableNZ:        true,
		AWSRegion:       "ap-southeast-2",
		BatchLimit:      500,
		Concurrency:     10,
		RasterCacheSize: 64,
		PrivateBucket: SourceConfig{
			Enabled: true, Priority: 1, Timeout: 2 * time.Second,
			FailureThreshold: 3, RecoveryTimeout: 30 * time.Second,
		},
		PublicBucket: SourceConfig{
			Enabled: true, Priority: 2, Timeout: 2 * time.Second,
			FailureThreshold: 3, RecoveryTimeout: 30 * time.Second,
		},
		APIA: SourceConfig{
			Enabled: true, Priority: 3, Timeout: 8 * time.Second,
			FailureThreshold: 5, RecoveryTimeout: 60 * time.Second,
		},
		APIB: SourceConfig{
			Enabled: true, Priority: 4, Timeout: 15 * time.Second,
			FailureThreshold: 5, RecoveryTimeout: 60 * time.Second,
		},
	}
}

// Validate rejects configurations that cannot produce a working
// provider.
func (c *Config) Validate() error {
	if c.AppEnv != EnvProduction && c.AppEnv != EnvDevelopment {
		return fmt.Errorf("provider: app_env must be %q or %q, got %q", EnvProduction, EnvDevelopment, c.AppEnv)
	}
	if c.SpatialIndexURI == "" && (c.PrivateBucket.Enabled || c.PublicBucket.Enabled) {
		return fmt.Errorf("provider: spatial_index_uri is required when bucket sources are enabled")
	}
	if c.AppEnv == EnvProduction && c.Redis.Addr == "" {
		return fmt.Errorf("provider: redis.addr is required in production (shared circuit-breaker store)")
	}
	if c.BatchLimit <= 0 {
		return fmt.Errorf("provider: batch_limit must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("provider: concurrency must be positive")
	}
	if c.APIA.Enabled && c.APIA.BaseURL == "" {
		return fmt.Errorf("provider: http_api_a.base_url is required when enabled")
	}
	if c.APIB.Enabled && c.APIB.BaseURL == "" {
		return fmt.Errorf("provider: http_api_b.base_url is required when enabled")
	}
	if !c.PrivateBucket.Enabled && !c.PublicBucket.Enabled && !c.APIA.Enabled && !c.APIB.Enabled {
		return fmt.Errorf("provider: no data sources enabled")
	}
	return nil
}

// descriptor converts a SourceConfig to the chain's static descriptor.
func descriptor(id string, kind elevation.SourceKind, sc SourceConfig) elevation.SourceDescriptor {
	return elevation.SourceDescriptor{
		ID:               id,
		Kind:             kind,
		Priority:         sc.Priority,
		Timeout:          sc.Timeout,
		FailureThreshold: sc.FailureThreshold,
		RecoveryTimeout:  sc.RecoveryTimeout,
	}
}
