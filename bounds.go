// Copyright © 2025 Admin Road Engineering.

package elevation

import (
	"fmt"

	"github.com/ctessum/geom"
)

// BoundingBox is an axis-aligned rectangle in a declared CRS. A box is
// meaningful only in its declared CRS; containment tests against a point
// in a different CRS are a contract violation and return an error.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
	EPSG int     `json:"epsg"`
}

// Validate checks the min ≤ max invariant.
func (b BoundingBox) Validate() error {
	if b.MinX > b.MaxX || b.MinY > b.MaxY {
		return fmt.Errorf("elevation: invalid bounding box [%g,%g,%g,%g]", b.MinX, b.MinY, b.MaxX, b.MaxY)
	}
	return nil
}

// Contains reports whether (x, y) lies within the box. Edges are
// closed intervals: a point exactly on an edge is contained.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// ContainsProjected is Contains with a CRS agreement check.
func (b BoundingBox) ContainsProjected(pp ProjectedPoint) (bool, error) {
	if pp.EPSG != b.EPSG {
		return false, fmt.Errorf("elevation: CRS mismatch: point is EPSG:%d, box is EPSG:%d", pp.EPSG, b.EPSG)
	}
	return b.Contains(pp.X, pp.Y), nil
}

// GeomBounds returns the box as a geom.Bounds for R-tree insertion.
func (b BoundingBox) GeomBounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.MinX, Y: b.MinY},
		Max: geom.Point{X: b.MaxX, Y: b.MaxY},
	}
}
