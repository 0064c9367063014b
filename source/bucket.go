// Copyright © 2025 Admin Road Engineering.

// Package source implements the concrete elevation data sources: the
// private and public campaign buckets (spatial index + raster
// sampling) and the two external HTTP elevation APIs.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/admin-road-engineering/elevation"
	"github.com/admin-road-engineering/elevation/raster"
)

// BucketClass selects which tiles a bucket source may read.
type BucketClass int

// Bucket classes.
const (
	PrivateBuckets BucketClass = iota
	PublicBuckets
)

// BucketSource resolves a point through the spatial index and samples
// the winning tile from object storage. Two instances share the index
// and sampler: one restricted to the private archive, one to the
// public unsigned buckets.
type BucketSource struct {
	id            string
	class         BucketClass
	publicBuckets map[string]bool
	index         *elevation.SpatialIndex
	registry      *elevation.HandlerRegistry
	sampler       *raster.Sampler
	coverage      elevation.Coverage
}

// NewBucketSource builds a bucket-backed source.
func NewBucketSource(id string, class BucketClass, publicBuckets []string,
	index *elevation.SpatialIndex, registry *elevation.HandlerRegistry, sampler *raster.Sampler) *BucketSource {
	pub := make(map[string]bool, len(publicBuckets))
	for _, b := range publicBuckets {
		pub[b] = true
	}
	desc := "private survey campaign archive (AU/NZ)"
	if class == PublicBuckets {
		desc = "public unsigned survey campaign buckets (AU/NZ)"
	}
	return &BucketSource{
		id:            id,
		class:         class,
		publicBuckets: pub,
		index:         index,
		registry:      registry,
		sampler:       sampler,
		coverage:      elevation.Coverage{Description: desc},
	}
}

// ID implements elevation.DataSource.
func (s *BucketSource) ID() string { return s.id }

// Coverage implements elevation.DataSource.
func (s *BucketSource) Coverage() elevation.Coverage { return s.coverage }

// Health implements elevation.DataSource.
func (s *BucketSource) Health(context.Context) elevation.SourceHealth {
	if s.index.Len() == 0 {
		return elevation.SourceHealth{OK: false, Detail: "spatial index is empty"}
	}
	return elevation.SourceHealth{OK: true, Detail: fmt.Sprintf("%d collections indexed", s.index.Len())}
}

// wants reports whether a tile URI belongs to this source's bucket
// class.
func (s *BucketSource) wants(uri string) bool {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return false
	}
	bucket, _, _ := strings.Cut(rest, "/")
	if s.class == PublicBuckets {
		return s.publicBuckets[bucket]
	}
	return !s.publicBuckets[bucket]
}

// GetElevation implements elevation.DataSource: candidate campaigns in
// country/recency/resolution priority order, tiles within each, first
// sampled value wins.
func (s *BucketSource) GetElevation(ctx context.Context, qp *elevation.QueryPoint) elevation.Outcome {
	cands := s.registry.Prioritise(s.index.Candidates(qp))
	if len(cands) == 0 {
		return elevation.NotCovered()
	}

	sawNoData := false
	var firstErr *elevation.Outcome
	for _, c := range cands {
		files, err := s.registry.Files(c, qp)
		if err != nil {
			// CRS trouble resolving this campaign; remember it and
			// keep trying others.
			kind := elevation.KindInternal
			var unknown *elevation.CRSUnknownError
			if errors.As(err, &unknown) {
				kind = elevation.KindCRSUnknown
			}
			o := elevation.Failure(kind, s.id, err.Error())
			if firstErr == nil {
				firstErr = &o
			}
			continue
		}
		for _, f := range files {
			if !s.wants(f.URI) {
				continue
			}
			pp, err := qp.Projected(f.Bounds.EPSG)
			if err != nil {
				continue
			}
			out := s.sampler.Sample(ctx, f, pp)
			switch out.Status {
			case elevation.StatusFound:
				out.SourceID = s.id
				out.DataType = c.DataType
				if out.ResolutionM == 0 {
					out.ResolutionM = c.ResolutionM
				}
				out.Message = fmt.Sprintf("campaign %s", c.Name)
				return out
			case elevation.StatusNoData:
				sawNoData = true
			case elevation.StatusError:
				out.SourceID = s.id
				if firstErr == nil {
					firstErr = &out
				}
			}
			// NotCovered from the sampler means the tile's raster
			// extent disagrees slightly with its indexed bounds; try
			// the next tile.
		}
	}

	if firstErr != nil {
		return *firstErr
	}
	if sawNoData {
		return elevation.NoData(s.id)
	}
	return elevation.NotCovered()
}
