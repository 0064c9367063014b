// Copyright © 2025 Admin Road Engineering.

package elevation

import (
	"fmt"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
)

// indexEntry adapts a collection for R-tree insertion.
type indexEntry struct {
	c *Collection
}

func (e *indexEntry) Bounds() *geom.Bounds {
	return e.c.BoundsWGS84.GeomBounds()
}

// The remaining geom.Geom methods delegate to the bounds rectangle so
// the adapter satisfies the R-tree's element interface.
func (e *indexEntry) Len() int                  { return e.Bounds().Len() }
func (e *indexEntry) Points() func() geom.Point { return e.Bounds().Points() }
func (e *indexEntry) Similar(g geom.Geom, tolerance float64) bool {
	return e.Bounds().Similar(g, tolerance)
}
func (e *indexEntry) Transform(t proj.Transformer) (geom.Geom, error) {
	return e.Bounds().Transform(t)
}

// SpatialIndex answers "which campaigns cover this point?" in
// sub-millisecond time using an R-tree over the collections' WGS84
// bounds, and "which tiles within a campaign?" with a linear scan over
// the campaign's files. Immutable after construction; unsynchronised
// concurrent reads are safe.
type SpatialIndex struct {
	collections []*Collection
	byID        map[string]*Collection
	tree        *rtree.Rtree
}

// NewSpatialIndex builds the two-tier index over the given collections.
func NewSpatialIndex(collections []*Collection) (*SpatialIndex, error) {
	si := &SpatialIndex{
		collections: collections,
		byID:        make(map[string]*Collection, len(collections)),
		tree:        rtree.NewTree(25, 50),
	}
	for _, c := range collections {
		if _, dup := si.byID[c.ID]; dup {
			return nil, fmt.Errorf("elevation: duplicate collection id %q", c.ID)
		}
		si.byID[c.ID] = c
		si.tree.Insert(&indexEntry{c: c})
	}
	return si, nil
}

// Candidates returns every collection whose WGS84 bounds contain the
// point, in no particular order. Ordering is the country handlers' job.
func (si *SpatialIndex) Candidates(qp *QueryPoint) []*Collection {
	pt := geom.Point{X: qp.Lon, Y: qp.Lat}
	var out []*Collection
	for _, hit := range si.tree.SearchIntersect(pt.Bounds()) {
		c := hit.(*indexEntry).c
		// The R-tree is a coarse filter; re-check exactly with closed
		// interval semantics.
		if c.BoundsWGS84.Contains(qp.Lon, qp.Lat) {
			out = append(out, c)
		}
	}
	return out
}

// FilesFor returns every file in the collection whose declared bounds
// contain the point, transforming the point to each file's CRS as
// needed. The per-request projection cache on QueryPoint makes the
// repeated transforms free after the first.
func (si *SpatialIndex) FilesFor(c *Collection, qp *QueryPoint) ([]FileRef, error) {
	// Cheap pre-filter on the collection's native bounds when present.
	if c.BoundsNative != nil {
		pp, err := qp.Projected(c.NativeEPSG)
		if err != nil {
			return nil, err
		}
		if ok, err := c.BoundsNative.ContainsProjected(pp); err != nil {
			return nil, err
		} else if !ok {
			return nil, nil
		}
	}
	var out []FileRef
	for _, f := range c.Files {
		pp, err := qp.Projected(f.Bounds.EPSG)
		if err != nil {
			return nil, err
		}
		ok, err := f.Bounds.ContainsProjected(pp)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Collections returns all indexed collections sorted by id.
func (si *SpatialIndex) Collections() []*Collection {
	out := make([]*Collection, len(si.collections))
	copy(out, si.collections)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Collection looks up a campaign by id; nil if absent.
func (si *SpatialIndex) Collection(id string) *Collection {
	return si.byID[id]
}

// Len returns the number of indexed collections.
func (si *SpatialIndex) Len() int { return len(si.collections) }
