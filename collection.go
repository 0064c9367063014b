// Copyright © 2025 Admin Road Engineering.

package elevation

import "fmt"

// FileRef identifies one raster tile in object storage.
type FileRef struct {
	// URI is a scheme-tagged locator, e.g. s3://bucket/key.
	URI string `json:"uri"`
	// Bounds is the tile's extent in its own declared CRS. For most
	// campaigns this equals the collection's native CRS, but NZ files
	// occasionally declare WGS84 bounds; containment always uses the
	// file's declared CRS.
	Bounds    BoundingBox `json:"bounds"`
	SizeBytes int64       `json:"size_bytes"`
	Filename  string      `json:"filename"`
}

// Collection is one survey campaign: a contiguous set of raster tiles
// sharing acquisition year, resolution, and CRS. Collections are built
// once at startup from the spatial index document and never mutated.
type Collection struct {
	ID          string       `json:"id"`
	Country     string       `json:"country"`
	Name        string       `json:"name"`
	SurveyYear  *int         `json:"survey_year"`
	ResolutionM float64      `json:"resolution_m"`
	NativeEPSG  int          `json:"native_crs"`
	BoundsWGS84 BoundingBox  `json:"bounds_wgs84"`
	BoundsNative *BoundingBox `json:"bounds_native,omitempty"`
	DataType    DataType     `json:"data_type"`
	Files       []FileRef    `json:"files,omitempty"`
}

// FileCount returns the number of tiles in the campaign.
func (c *Collection) FileCount() int { return len(c.Files) }

// Validate checks the per-collection invariants: WGS84 bounds always
// present and valid, native bounds present iff the native CRS is
// projected, and the native CRS drawn from the country's allowed set.
func (c *Collection) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("elevation: collection with empty id")
	}
	if c.ResolutionM <= 0 {
		return fmt.Errorf("elevation: collection %s: resolution %g must be positive", c.ID, c.ResolutionM)
	}
	if c.DataType != DEM && c.DataType != DSM {
		return fmt.Errorf("elevation: collection %s: data type %q is not DEM or DSM", c.ID, c.DataType)
	}
	if c.BoundsWGS84.EPSG != EPSGWGS84 {
		return fmt.Errorf("elevation: collection %s: bounds_wgs84 declares EPSG:%d", c.ID, c.BoundsWGS84.EPSG)
	}
	if err := c.BoundsWGS84.Validate(); err != nil {
		return fmt.Errorf("collection %s: %w", c.ID, err)
	}
	if c.NativeEPSG != EPSGWGS84 {
		if c.BoundsNative == nil {
			return fmt.Errorf("elevation: collection %s: projected native CRS EPSG:%d without native bounds", c.ID, c.NativeEPSG)
		}
		if c.BoundsNative.EPSG != c.NativeEPSG {
			return fmt.Errorf("elevation: collection %s: native bounds EPSG:%d != native CRS EPSG:%d",
				c.ID, c.BoundsNative.EPSG, c.NativeEPSG)
		}
		if err := c.BoundsNative.Validate(); err != nil {
			return fmt.Errorf("collection %s: %w", c.ID, err)
		}
	} else if c.BoundsNative != nil {
		return fmt.Errorf("elevation: collection %s: WGS84-native collection must not carry native bounds", c.ID)
	}
	switch c.Country {
	case CountryAU:
		switch c.NativeEPSG {
		case EPSGMGA54, EPSGMGA55, EPSGMGA56:
		default:
			return fmt.Errorf("elevation: collection %s: EPSG:%d is not an AU MGA zone", c.ID, c.NativeEPSG)
		}
	case CountryNZ:
		if c.NativeEPSG != EPSGNZTM && c.NativeEPSG != EPSGWGS84 {
			return fmt.Errorf("elevation: collection %s: EPSG:%d is not valid for NZ", c.ID, c.NativeEPSG)
		}
	default:
		return fmt.Errorf("elevation: collection %s: unknown country %q", c.ID, c.Country)
	}
	for i, f := range c.Files {
		if f.URI == "" {
			return fmt.Errorf("elevation: collection %s: file %d has empty URI", c.ID, i)
		}
		if !KnownEPSG(f.Bounds.EPSG) {
			return fmt.Errorf("elevation: collection %s: file %s declares unknown EPSG:%d", c.ID, f.Filename, f.Bounds.EPSG)
		}
		if err := f.Bounds.Validate(); err != nil {
			return fmt.Errorf("collection %s file %s: %w", c.ID, f.Filename, err)
		}
	}
	return nil
}
