// Copyright © 2025 Admin Road Engineering.

package provider

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.SpatialIndexURI = "file:///data/index.json"
	cfg.APIA.BaseURL = "https://api-a.example.com"
	cfg.APIB.BaseURL = "https://api-b.example.com"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"defaults plus required fields", func(c *Config) {}, ""},
		{
			"bad app_env",
			func(c *Config) { c.AppEnv = "staging" },
			"app_env",
		},
		{
			"production requires redis",
			func(c *Config) { c.AppEnv = EnvProduction },
			"redis.addr",
		},
		{
			"production with redis is fine",
			func(c *Config) { c.AppEnv = EnvProduction; c.Redis.Addr = "redis:6379" },
			"",
		},
		{
			"buckets need an index",
			func(c *Config) { c.SpatialIndexURI = "" },
			"spatial_index_uri",
		},
		{
			"api-only config needs no index",
			func(c *Config) {
				c.SpatialIndexURI = ""
				c.PrivateBucket.Enabled = false
				c.PublicBucket.Enabled = false
			},
			"",
		},
		{
			"enabled api needs base_url",
			func(c *Config) { c.APIA.BaseURL = "" },
			"http_api_a.base_url",
		},
		{
			"at least one source",
			func(c *Config) {
				c.SpatialIndexURI = ""
				c.PrivateBucket.Enabled = false
				c.PublicBucket.Enabled = false
				c.APIA.Enabled = false
				c.APIB.Enabled = false
			},
			"no data sources",
		},
		{
			"batch limit positive",
			func(c *Config) { c.BatchLimit = 0 },
			"batch_limit",
		},
		{
			"concurrency positive",
			func(c *Config) { c.Concurrency = -1 },
			"concurrency",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := validConfig()
			test.mutate(&cfg)
			err := cfg.Validate()
			if test.wantSub == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), test.wantSub) {
				t.Errorf("error %q does not mention %q", err, test.wantSub)
			}
		})
	}
}

func TestDefaultConfigPriorities(t *testing.T) {
	cfg := DefaultConfig()
	order := []int{
		cfg.PrivateBucket.Priority,
		cfg.PublicBucket.Priority,
		cfg.APIA.Priority,
		cfg.APIB.Priority,
	}
	for i := 1; i < len(order); i++ {
		if order[i] <= order[i-1] {
			t.Fatalf("default priorities %v are not strictly increasing", order)
		}
	}
}
