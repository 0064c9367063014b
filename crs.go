// Copyright © 2025 Admin Road Engineering.

package elevation

import (
	"fmt"
	"sync"

	"github.com/ctessum/geom/proj"
)

// EPSG codes supported by the service: WGS84, NZTM, and the Australian
// MGA/UTM zones the campaign archive uses.
const (
	EPSGWGS84 = 4326
	EPSGNZTM  = 2193
	EPSGMGA54 = 28354
	EPSGMGA55 = 28355
	EPSGMGA56 = 28356
)

// proj4 definitions for the supported codes. GDA94 and NZGD2000 are
// both realised on GRS80 with null WGS84 shifts, which keeps round-trip
// error well under the 1 mm contract.
var projDefs = map[int]string{
	EPSGWGS84: "+proj=longlat +datum=WGS84 +no_defs",
	EPSGNZTM:  "+proj=tmerc +lat_0=0 +lon_0=173 +k=0.9996 +x_0=1600000 +y_0=10000000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	EPSGMGA54: "+proj=utm +zone=54 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	EPSGMGA55: "+proj=utm +zone=55 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	EPSGMGA56: "+proj=utm +zone=56 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
}

// CRSUnknownError reports a transform request for an unregistered EPSG
// code.
type CRSUnknownError struct {
	EPSG int
}

func (e *CRSUnknownError) Error() string {
	return fmt.Sprintf("elevation: unknown CRS EPSG:%d", e.EPSG)
}

// CRS transforms points between WGS84 and the supported projected
// systems. Parsed spatial references and constructed transformers are
// cached: proj initialisation is much more expensive than applying a
// transform. Safe for concurrent use.
type CRS struct {
	mu         sync.Mutex
	srs        map[int]*proj.SR
	transforms map[[2]int]proj.Transformer
}

// NewCRS returns an empty transformer cache.
func NewCRS() *CRS {
	return &CRS{
		srs:        make(map[int]*proj.SR),
		transforms: make(map[[2]int]proj.Transformer),
	}
}

// Transform converts a WGS84 point to the target CRS.
func (c *CRS) Transform(p Point, epsg int) (ProjectedPoint, error) {
	t, err := c.transformer(EPSGWGS84, epsg)
	if err != nil {
		return ProjectedPoint{}, err
	}
	x, y, err := t(p.Lon, p.Lat)
	if err != nil {
		return ProjectedPoint{}, fmt.Errorf("elevation: transforming (%g, %g) to EPSG:%d: %w", p.Lat, p.Lon, epsg, err)
	}
	return ProjectedPoint{X: x, Y: y, EPSG: epsg}, nil
}

// Inverse converts a projected point back to WGS84.
func (c *CRS) Inverse(pp ProjectedPoint) (Point, error) {
	t, err := c.transformer(pp.EPSG, EPSGWGS84)
	if err != nil {
		return Point{}, err
	}
	lon, lat, err := t(pp.X, pp.Y)
	if err != nil {
		return Point{}, fmt.Errorf("elevation: inverse transform from EPSG:%d: %w", pp.EPSG, err)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

func (c *CRS) sr(epsg int) (*proj.SR, error) {
	if sr, ok := c.srs[epsg]; ok {
		return sr, nil
	}
	def, ok := projDefs[epsg]
	if !ok {
		return nil, &CRSUnknownError{EPSG: epsg}
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("elevation: parsing projection for EPSG:%d: %w", epsg, err)
	}
	c.srs[epsg] = sr
	return sr, nil
}

func (c *CRS) transformer(from, to int) (proj.Transformer, error) {
	key := [2]int{from, to}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.transforms[key]; ok {
		return t, nil
	}
	src, err := c.sr(from)
	if err != nil {
		return nil, err
	}
	dst, err := c.sr(to)
	if err != nil {
		return nil, err
	}
	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("elevation: building transform EPSG:%d -> EPSG:%d: %w", from, to, err)
	}
	c.transforms[key] = t
	return t, nil
}

// KnownEPSG reports whether the code is in the supported set.
func KnownEPSG(epsg int) bool {
	_, ok := projDefs[epsg]
	return ok
}
