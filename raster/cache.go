// Copyright © 2025 Admin Road Engineering.

package raster

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
	"golang.org/x/sync/singleflight"
)

// dataset is one open GDAL raster with the metadata the sampler needs.
// Reads on a single GDAL dataset handle must be serialized; the
// per-dataset mutex allows parallel reads across different tiles.
type dataset struct {
	uri       string
	ds        *godal.Dataset
	band      godal.Band
	gt        [6]float64
	sizeX     int
	sizeY     int
	nodata    float64
	hasNodata bool
	epsg      int // 0 when the raster's WKT carries no EPSG authority

	mu      sync.Mutex
	refs    int
	evicted bool
}

func (d *dataset) close() {
	if d.ds != nil {
		d.ds.Close()
		d.ds = nil
	}
}

// datasetCache is a bounded LRU of open dataset handles keyed by URI.
// Entries are reference-counted so that eviction never invalidates an
// in-flight read: an evicted entry is closed when its last reference is
// released. Concurrent opens of the same URI are collapsed by
// singleflight.
type datasetCache struct {
	max int

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used; values are *dataset
	sf      singleflight.Group
	closed  bool
}

func newDatasetCache(max int) *datasetCache {
	if max < 1 {
		max = 1
	}
	return &datasetCache{
		max:     max,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// acquire returns an open dataset for the URI with one reference held.
// Callers must release it.
func (c *datasetCache) acquire(ctx context.Context, uri string) (*dataset, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, fmt.Errorf("raster: dataset cache is closed")
		}
		if elem, ok := c.entries[uri]; ok {
			d := elem.Value.(*dataset)
			c.lru.MoveToFront(elem)
			d.mu.Lock()
			d.refs++
			d.mu.Unlock()
			c.mu.Unlock()
			return d, nil
		}
		c.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err, _ := c.sf.Do(uri, func() (interface{}, error) {
			d, err := openDataset(uri)
			if err != nil {
				return nil, err
			}
			c.insert(d)
			return d, nil
		})
		if err != nil {
			return nil, err
		}
		// Loop to take a reference under the lock; the entry can have
		// been evicted between the singleflight return and here.
	}
}

func (c *datasetCache) insert(d *dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		d.close()
		return
	}
	if _, ok := c.entries[d.uri]; ok {
		// Lost a race; keep the existing entry.
		d.close()
		return
	}
	c.entries[d.uri] = c.lru.PushFront(d)
	for c.lru.Len() > c.max {
		c.evictOldest()
	}
}

// evictOldest removes the LRU entry. Caller holds c.mu.
func (c *datasetCache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	d := c.lru.Remove(elem).(*dataset)
	delete(c.entries, d.uri)
	d.mu.Lock()
	if d.refs == 0 {
		d.close()
	} else {
		d.evicted = true
	}
	d.mu.Unlock()
}

// release drops one reference; the last release of an evicted entry
// closes the underlying handle.
func (c *datasetCache) release(d *dataset) {
	d.mu.Lock()
	d.refs--
	if d.refs == 0 && d.evicted {
		d.close()
	}
	d.mu.Unlock()
}

// Close evicts everything. In-flight reads finish against their own
// references.
func (c *datasetCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for c.lru.Len() > 0 {
		c.evictOldest()
	}
}

func openDataset(uri string) (*dataset, error) {
	ds, err := godal.Open(uri, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("raster: opening %s: %w", uri, err)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("raster: geotransform of %s: %w", uri, err)
	}
	bands := ds.Bands()
	if len(bands) == 0 {
		ds.Close()
		return nil, fmt.Errorf("raster: %s has no bands", uri)
	}
	structure := ds.Structure()
	d := &dataset{
		uri:   uri,
		ds:    ds,
		band:  bands[0],
		gt:    gt,
		sizeX: structure.SizeX,
		sizeY: structure.SizeY,
	}
	d.nodata, d.hasNodata = bands[0].NoData()
	if code, ok := epsgFromWKT(ds.Projection()); ok {
		d.epsg = code
	}
	return d, nil
}
