// Copyright © 2025 Admin Road Engineering.

package serve

import (
	"fmt"

	"github.com/admin-road-engineering/elevation"
)

// coordBody accepts the coordinate key aliases the public API allows:
// lat/latitude and lon/lng/longitude.
type coordBody struct {
	Lat       *float64 `json:"lat"`
	Latitude  *float64 `json:"latitude"`
	Lon       *float64 `json:"lon"`
	Lng       *float64 `json:"lng"`
	Longitude *float64 `json:"longitude"`
}

func (b coordBody) point() (elevation.Point, error) {
	var p elevation.Point
	switch {
	case b.Lat != nil:
		p.Lat = *b.Lat
	case b.Latitude != nil:
		p.Lat = *b.Latitude
	default:
		return p, fmt.Errorf("missing latitude (accepted keys: lat, latitude)")
	}
	switch {
	case b.Lon != nil:
		p.Lon = *b.Lon
	case b.Lng != nil:
		p.Lon = *b.Lng
	case b.Longitude != nil:
		p.Lon = *b.Longitude
	default:
		return p, fmt.Errorf("missing longitude (accepted keys: lon, lng, longitude)")
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

type pointsRequest struct {
	Points []coordBody `json:"points"`
}

type lineRequest struct {
	StartPoint *coordBody `json:"start_point"`
	EndPoint   *coordBody `json:"end_point"`
	NumPoints  int        `json:"num_points"`
}

type pathRequest struct {
	Points []coordBody `json:"points"`
}

// pointResponse is the per-point response shape shared by all
// elevation endpoints. A null elevation_m means no source could answer
// for the point; it is never an error status.
type pointResponse struct {
	ElevationM    *float64 `json:"elevation_m"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	DEMSourceUsed *string  `json:"dem_source_used"`
	ResolutionM   *float64 `json:"resolution_m"`
	DataType      *string  `json:"data_type"`
	Message       *string  `json:"message"`
}

type pointsResponse struct {
	Points      []pointResponse `json:"points"`
	TotalPoints int             `json:"total_points"`
	Message     *string         `json:"message,omitempty"`
}

func toPointResponse(p elevation.Point, out elevation.Outcome) pointResponse {
	resp := pointResponse{Latitude: p.Lat, Longitude: p.Lon}
	switch out.Status {
	case elevation.StatusFound:
		e := out.ElevationM
		resp.ElevationM = &e
		src := out.SourceID
		resp.DEMSourceUsed = &src
		if out.ResolutionM > 0 {
			r := out.ResolutionM
			resp.ResolutionM = &r
		}
		if out.DataType != "" {
			dt := string(out.DataType)
			resp.DataType = &dt
		}
		if out.Message != "" {
			m := out.Message
			resp.Message = &m
		}
	case elevation.StatusError:
		// Diagnostic without internals.
		m := fmt.Sprintf("elevation query failed (%s)", out.Kind)
		resp.Message = &m
	default:
		m := out.Message
		if m == "" {
			m = "no elevation data available for this location"
		}
		resp.Message = &m
	}
	return resp
}
