// Copyright © 2025 Admin Road Engineering.

package raster

import (
	"context"
	"math"
	"regexp"
	"strconv"

	"github.com/admin-road-engineering/elevation"
)

// Config holds sampler construction parameters.
type Config struct {
	// Region is the AWS region of the tile buckets.
	Region string
	// PublicBuckets lists buckets readable without credentials.
	PublicBuckets []string
	// CacheSize bounds the number of open dataset handles.
	CacheSize int
	// BlockSize and CachedBlocks tune the osio range-read adapters.
	BlockSize    string
	CachedBlocks int
}

func (c *Config) defaults() {
	if c.Region == "" {
		c.Region = "ap-southeast-2"
	}
	if c.CacheSize == 0 {
		c.CacheSize = 64
	}
	if c.BlockSize == "" {
		c.BlockSize = "512kb"
	}
	if c.CachedBlocks == 0 {
		c.CachedBlocks = 128
	}
}

// Sampler reads single pixels from remote GeoTIFF tiles. Safe for
// concurrent use; it blocks on network I/O and should be called under
// a per-source deadline.
type Sampler struct {
	cache         *datasetCache
	publicBuckets map[string]bool
}

// NewSampler installs the GDAL VSI handlers and prepares the dataset
// cache.
func NewSampler(ctx context.Context, cfg Config) (*Sampler, error) {
	cfg.defaults()
	if err := registerHandlers(ctx, cfg.Region, cfg.BlockSize, cfg.CachedBlocks); err != nil {
		return nil, err
	}
	pub := make(map[string]bool, len(cfg.PublicBuckets))
	for _, b := range cfg.PublicBuckets {
		pub[b] = true
	}
	return &Sampler{
		cache:         newDatasetCache(cfg.CacheSize),
		publicBuckets: pub,
	}, nil
}

// Close releases all cached dataset handles.
func (s *Sampler) Close() {
	s.cache.Close()
}

// Sample reads the one pixel covering pp from the tile at f.URI. The
// sampler does not retry; retry policy belongs to the fallback chain.
func (s *Sampler) Sample(ctx context.Context, f elevation.FileRef, pp elevation.ProjectedPoint) elevation.Outcome {
	uri := rewriteURI(f.URI, s.publicBuckets)
	d, err := s.cache.acquire(ctx, uri)
	if err != nil {
		if ctx.Err() != nil {
			return elevation.Failure(elevation.KindTimeout, "", ctx.Err().Error())
		}
		return elevation.Failure(elevation.KindUpstream, "", err.Error())
	}
	defer s.cache.release(d)

	if d.epsg != 0 && d.epsg != f.Bounds.EPSG {
		return elevation.Failuref(elevation.KindCRSMismatch, "",
			"raster %s is EPSG:%d but index declares EPSG:%d", f.Filename, d.epsg, f.Bounds.EPSG)
	}

	col, row := pixelAt(d.gt, pp.X, pp.Y)
	if col < 0 || row < 0 || col >= d.sizeX || row >= d.sizeY {
		return elevation.NotCovered()
	}

	d.mu.Lock()
	buf := make([]float64, 1)
	err = d.band.Read(col, row, buf, 1, 1)
	d.mu.Unlock()
	if err != nil {
		if ctx.Err() != nil {
			return elevation.Failure(elevation.KindTimeout, "", ctx.Err().Error())
		}
		return elevation.Failuref(elevation.KindUpstream, "", "reading pixel (%d, %d) of %s: %v", col, row, f.Filename, err)
	}

	value := buf[0]
	if d.hasNodata && isNoData(value, d.nodata) {
		return elevation.NoData("")
	}
	return elevation.Outcome{
		Status:      elevation.StatusFound,
		ElevationM:  value,
		ResolutionM: math.Abs(d.gt[1]),
	}
}

// pixelAt maps projected coordinates to pixel indices using the GDAL
// geotransform (north-up convention: gt[5] is negative).
func pixelAt(gt [6]float64, x, y float64) (col, row int) {
	col = int(math.Floor((x - gt[0]) / gt[1]))
	row = int(math.Floor((y - gt[3]) / gt[5]))
	return col, row
}

// isNoData compares a pixel against the declared nodata sentinel.
// Float rasters routinely declare very large sentinels (±3.4e38) that
// round through band buffers, so compare with a relative tolerance.
func isNoData(v, nodata float64) bool {
	if v == nodata {
		return true
	}
	if nodata != 0 && math.Abs(v-nodata) <= math.Abs(nodata)*1e-6 {
		return true
	}
	return false
}

var epsgAuthorityRe = regexp.MustCompile(`AUTHORITY\["EPSG","(\d+)"\]`)

// epsgFromWKT extracts the outermost EPSG authority code from a WKT
// projection string, if one is declared.
func epsgFromWKT(wkt string) (int, bool) {
	matches := epsgAuthorityRe.FindAllStringSubmatch(wkt, -1)
	if len(matches) == 0 {
		return 0, false
	}
	// The last AUTHORITY entry names the whole CRS.
	code, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, false
	}
	return code, true
}
