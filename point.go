// Copyright © 2025 Admin Road Engineering.

package elevation

import "fmt"

// Point is a WGS84 coordinate. Immutable; created at request ingress.
type Point struct {
	Lat float64
	Lon float64
}

// Validate checks the WGS84 numeric ranges.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("elevation: latitude %g out of range [-90, 90]", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("elevation: longitude %g out of range [-180, 180]", p.Lon)
	}
	return nil
}

// ProjectedPoint is a Point expressed in a projected CRS.
type ProjectedPoint struct {
	X    float64
	Y    float64
	EPSG int
}

// A PointTransformer converts WGS84 points into a target CRS.
// Implemented by *CRS.
type PointTransformer interface {
	Transform(p Point, epsg int) (ProjectedPoint, error)
}

// QueryPoint pairs a WGS84 point with a per-request cache of its
// projections so that each (point, EPSG) transform happens at most once
// per request, no matter how many bounds checks consult it.
//
// A QueryPoint belongs to the task evaluating the point and is not safe
// for concurrent use.
type QueryPoint struct {
	Point

	tr        PointTransformer
	projected map[int]ProjectedPoint
}

// NewQueryPoint wraps p for querying. tr supplies CRS transforms.
func NewQueryPoint(p Point, tr PointTransformer) *QueryPoint {
	return &QueryPoint{Point: p, tr: tr}
}

// Projected returns the point in the requested CRS, transforming on
// first use and serving repeats from the per-request cache.
func (qp *QueryPoint) Projected(epsg int) (ProjectedPoint, error) {
	if epsg == EPSGWGS84 {
		return ProjectedPoint{X: qp.Lon, Y: qp.Lat, EPSG: EPSGWGS84}, nil
	}
	if pp, ok := qp.projected[epsg]; ok {
		return pp, nil
	}
	pp, err := qp.tr.Transform(qp.Point, epsg)
	if err != nil {
		return ProjectedPoint{}, err
	}
	if qp.projected == nil {
		qp.projected = make(map[int]ProjectedPoint)
	}
	qp.projected[epsg] = pp
	return pp, nil
}
