// Copyright © 2025 Admin Road Engineering.

package serve

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/admin-road-engineering/elevation"
)

// evaluate fans the points out to the fallback chain with bounded
// concurrency. Sub-point evaluations are unordered; the response slice
// is indexed so the original input order is preserved. Per-point
// failures stay per-point: one bad point never fails the batch.
func (s *Server) evaluate(ctx context.Context, pts []elevation.Point) []pointResponse {
	out := make([]pointResponse, len(pts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.backend.Concurrency())
	for i, p := range pts {
		g.Go(func() error {
			out[i] = toPointResponse(p, s.backend.GetElevation(ctx, p))
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors
	return out
}

// linePoints produces n points spaced linearly in (lat, lon) from
// start to end inclusive. Spacing is deliberately linear rather than
// great-circle: engineering segments are short enough that the
// difference is far below DEM resolution.
func linePoints(start, end elevation.Point, n int) []elevation.Point {
	pts := make([]elevation.Point, n)
	for i := range pts {
		t := float64(i) / float64(n-1)
		pts[i] = elevation.Point{
			Lat: start.Lat + t*(end.Lat-start.Lat),
			Lon: start.Lon + t*(end.Lon-start.Lon),
		}
	}
	// Guard against floating point drift on the final point.
	pts[n-1] = end
	return pts
}
