// Copyright © 2025 Admin Road Engineering.

// Package provider assembles the elevation query pipeline at startup:
// it fetches and validates the spatial index, builds the R-tree and
// handler registry, connects the circuit-breaker store, constructs the
// data sources, and exposes the resulting fallback chain to the
// request path. After startup the provider is read-only.
package provider

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/admin-road-engineering/elevation"
	"github.com/admin-road-engineering/elevation/breaker"
	"github.com/admin-road-engineering/elevation/cloud"
	"github.com/admin-road-engineering/elevation/raster"
	"github.com/admin-road-engineering/elevation/source"
)

// Source ids as they appear in responses, stats, and health reports.
const (
	SourceIDPrivate = "private_bucket"
	SourceIDPublic  = "public_bucket"
	SourceIDAPIA    = "http_api_a"
	SourceIDAPIB    = "http_api_b"
)

// Provider owns the assembled pipeline. Shared by all workers,
// read-only after New returns; Close releases the long-lived resources
// (redis client, GDAL dataset cache).
type Provider struct {
	cfg   Config
	log   *logrus.Logger
	crs   *elevation.CRS
	index *elevation.SpatialIndex
	chain *elevation.Chain
	stats *elevation.UsageStats
	store breaker.Store

	sampler    *raster.Sampler
	redisStore *breaker.RedisStore

	ready atomic.Bool
}

// New performs the startup phase. Until it returns, requests must not
// be served. Any error leaves no resources behind.
func New(ctx context.Context, cfg Config, log *logrus.Logger) (p *Provider, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p = &Provider{cfg: cfg, log: log, crs: elevation.NewCRS()}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	collections, err := p.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	p.index, err = elevation.NewSpatialIndex(collections)
	if err != nil {
		return nil, err
	}
	registry := elevation.NewHandlerRegistry(p.index)
	log.WithField("collections", p.index.Len()).Info("spatial index loaded")

	if err := p.connectBreakerStore(ctx); err != nil {
		return nil, err
	}

	entries, err := p.buildSources(ctx, registry)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Descriptor.ID
	}
	p.stats = elevation.NewUsageStats(ids)
	p.chain = elevation.NewChain(entries, p.stats, log)

	p.ready.Store(true)
	log.WithField("sources", ids).Info("elevation provider ready")
	return p, nil
}

// loadIndex fetches the index document, retrying transient failures
// with exponential backoff, and parses it.
func (p *Provider) loadIndex(ctx context.Context) ([]*elevation.Collection, error) {
	if !p.cfg.PrivateBucket.Enabled && !p.cfg.PublicBucket.Enabled {
		return nil, nil
	}
	var data []byte
	op := func() error {
		var err error
		data, err = cloud.ReadAll(ctx, p.cfg.SpatialIndexURI)
		if err != nil {
			p.log.WithError(err).Warn("fetching spatial index failed, retrying")
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("provider: fetching spatial index %s: %w", p.cfg.SpatialIndexURI, err)
	}
	return elevation.ParseIndexDocument(data, elevation.IndexOptions{
		EnableCountry: map[string]bool{
			elevation.CountryAU: p.cfg.EnableAU,
			elevation.CountryNZ: p.cfg.EnableNZ,
		},
	})
}

// connectBreakerStore selects the breaker store. Production requires
// the shared redis store and fails fast when it is unreachable;
// development falls back to the in-memory store.
func (p *Provider) connectBreakerStore(ctx context.Context) error {
	if p.cfg.Redis.Addr != "" {
		rs, err := breaker.NewRedisStore(ctx, p.cfg.Redis.Addr, p.cfg.Redis.Password, p.cfg.Redis.DB)
		if err == nil {
			p.redisStore = rs
			p.store = rs
			return nil
		}
		if p.cfg.AppEnv == EnvProduction {
			return fmt.Errorf("provider: shared breaker store required in production: %w", err)
		}
		p.log.WithError(err).Warn("redis unreachable, using in-memory breaker store (development only)")
	}
	p.store = breaker.NewMemoryStore()
	return nil
}

func (p *Provider) buildSources(ctx context.Context, registry *elevation.HandlerRegistry) ([]elevation.ChainEntry, error) {
	var entries []elevation.ChainEntry
	add := func(desc elevation.SourceDescriptor, src elevation.DataSource) {
		entries = append(entries, elevation.ChainEntry{
			Descriptor: desc,
			Source:     src,
			Breaker:    breaker.New(desc.ID, desc.FailureThreshold, desc.RecoveryTimeout, p.store),
		})
	}

	if p.cfg.PrivateBucket.Enabled || p.cfg.PublicBucket.Enabled {
		var err error
		p.sampler, err = raster.NewSampler(ctx, raster.Config{
			Region:        p.cfg.AWSRegion,
			PublicBuckets: p.cfg.PublicBuckets,
			CacheSize:     p.cfg.RasterCacheSize,
		})
		if err != nil {
			return nil, err
		}
	}
	if p.cfg.PrivateBucket.Enabled {
		add(descriptor(SourceIDPrivate, elevation.KindPrivateBucket, p.cfg.PrivateBucket),
			source.NewBucketSource(SourceIDPrivate, source.PrivateBuckets, p.cfg.PublicBuckets, p.index, registry, p.sampler))
	}
	if p.cfg.PublicBucket.Enabled {
		add(descriptor(SourceIDPublic, elevation.KindPublicBucket, p.cfg.PublicBucket),
			source.NewBucketSource(SourceIDPublic, source.PublicBuckets, p.cfg.PublicBuckets, p.index, registry, p.sampler))
	}
	if p.cfg.APIA.Enabled {
		add(descriptor(SourceIDAPIA, elevation.KindHTTPAPIA, p.cfg.APIA),
			source.NewGlobalAPISource(SourceIDAPIA, source.APIConfig{
				BaseURL:    p.cfg.APIA.BaseURL,
				APIKey:     p.cfg.APIA.APIKey,
				DailyQuota: p.cfg.APIA.DailyQuota,
				Timeout:    p.cfg.APIA.Timeout,
			}))
	}
	if p.cfg.APIB.Enabled {
		add(descriptor(SourceIDAPIB, elevation.KindHTTPAPIB, p.cfg.APIB),
			source.NewLookupAPISource(SourceIDAPIB, source.APIConfig{
				BaseURL: p.cfg.APIB.BaseURL,
				Timeout: p.cfg.APIB.Timeout,
			}))
	}
	return entries, nil
}

// Ready reports whether startup has completed.
func (p *Provider) Ready() bool { return p.ready.Load() }

// Close releases long-lived resources. Safe on a partially constructed
// provider.
func (p *Provider) Close() error {
	p.ready.Store(false)
	if p.sampler != nil {
		p.sampler.Close()
		p.sampler = nil
	}
	if p.redisStore != nil {
		err := p.redisStore.Close()
		p.redisStore = nil
		return err
	}
	return nil
}

// GetElevation evaluates one WGS84 point through the fallback chain.
func (p *Provider) GetElevation(ctx context.Context, pt elevation.Point) elevation.Outcome {
	if !p.ready.Load() {
		return elevation.Failure(elevation.KindInternal, "", "provider not ready")
	}
	qp := elevation.NewQueryPoint(pt, p.crs)
	return p.chain.GetElevation(ctx, qp)
}

// Collections lists all campaigns.
func (p *Provider) Collections() []*elevation.Collection {
	return p.index.Collections()
}

// Collection returns one campaign by id, or nil.
func (p *Provider) Collection(id string) *elevation.Collection {
	return p.index.Collection(id)
}

// CollectionCount returns the number of indexed campaigns.
func (p *Provider) CollectionCount() int { return p.index.Len() }

// StoreKind names the breaker store backing the chain.
func (p *Provider) StoreKind() string { return p.store.Kind() }

// SourceStates reports each source's circuit state.
func (p *Provider) SourceStates(ctx context.Context) []elevation.SourceState {
	return p.chain.Health(ctx)
}

// UsageSnapshot copies the per-source usage counters.
func (p *Provider) UsageSnapshot() map[string]elevation.SourceStatsSnapshot {
	return p.stats.Snapshot()
}

// ResetBreakers force-closes every circuit.
func (p *Provider) ResetBreakers(ctx context.Context) error {
	return p.chain.ResetBreakers(ctx)
}

// BatchLimit returns the configured multi-point request ceiling.
func (p *Provider) BatchLimit() int { return p.cfg.BatchLimit }

// Concurrency returns the configured fan-out bound.
func (p *Provider) Concurrency() int { return p.cfg.Concurrency }
