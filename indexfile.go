// Copyright © 2025 Admin Road Engineering.

package elevation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Schema versions of the spatial index document this build understands.
var supportedSchemaVersions = map[string]bool{
	"1.0.0": true,
	"1.1.0": true,
}

// On-disk shapes for the spatial index document. Boxes in the document
// carry no CRS tag of their own except where a file overrides it; the
// collection-level tags come from bounds_crs and native_crs.
type indexDocument struct {
	SchemaVersion   string            `json:"schema_version"`
	BoundsCRS       map[string]string `json:"bounds_crs"`
	DataCollections []indexCollection `json:"data_collections"`
}

type indexBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
	CRS  string  `json:"crs,omitempty"`
}

type indexCollection struct {
	ID           string      `json:"id"`
	Country      string      `json:"country"`
	Name         string      `json:"name"`
	SurveyYear   *int        `json:"survey_year"`
	ResolutionM  float64     `json:"resolution_m"`
	NativeCRS    string      `json:"native_crs"`
	BoundsWGS84  *indexBox   `json:"bounds_wgs84"`
	BoundsNative *indexBox   `json:"bounds_native"`
	DataType     string      `json:"data_type"`
	FileCount    int         `json:"file_count"`
	Files        []indexFile `json:"files"`
}

type indexFile struct {
	URI       string    `json:"uri"`
	Bounds    *indexBox `json:"bounds_native"`
	SizeBytes int64     `json:"size_bytes"`
	Filename  string    `json:"filename"`
}

// parseEPSG parses an "EPSG:nnnn" tag.
func parseEPSG(s string) (int, error) {
	rest, ok := strings.CutPrefix(s, "EPSG:")
	if !ok {
		return 0, fmt.Errorf("elevation: CRS tag %q is not of the form EPSG:nnnn", s)
	}
	code, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("elevation: CRS tag %q: %w", s, err)
	}
	return code, nil
}

// IndexOptions control which parts of the index document are loaded.
type IndexOptions struct {
	// EnableCountry includes a country's collections; countries absent
	// from the map are excluded.
	EnableCountry map[string]bool
}

// ParseIndexDocument parses and validates a spatial index document,
// returning the enabled collections. Any schema, CRS-tag, or invariant
// violation is an error; callers fail startup on it.
func ParseIndexDocument(data []byte, opts IndexOptions) ([]*Collection, error) {
	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("elevation: parsing spatial index: %w", err)
	}
	if !supportedSchemaVersions[doc.SchemaVersion] {
		return nil, fmt.Errorf("elevation: unsupported spatial index schema version %q", doc.SchemaVersion)
	}
	if len(doc.BoundsCRS) == 0 {
		return nil, fmt.Errorf("elevation: spatial index is missing bounds_crs tags")
	}
	boundsCRS := make(map[string]int, len(doc.BoundsCRS))
	for country, tag := range doc.BoundsCRS {
		code, err := parseEPSG(tag)
		if err != nil {
			return nil, fmt.Errorf("bounds_crs[%s]: %w", country, err)
		}
		if code != EPSGWGS84 {
			return nil, fmt.Errorf("elevation: bounds_crs[%s] is EPSG:%d; collection-level bounds must be WGS84", country, code)
		}
		boundsCRS[country] = code
	}

	var out []*Collection
	for _, ic := range doc.DataCollections {
		if _, ok := boundsCRS[ic.Country]; !ok {
			return nil, fmt.Errorf("elevation: collection %s: country %q has no bounds_crs tag", ic.ID, ic.Country)
		}
		if opts.EnableCountry != nil && !opts.EnableCountry[ic.Country] {
			continue
		}
		c, err := ic.toCollection()
		if err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (ic indexCollection) toCollection() (*Collection, error) {
	nativeEPSG, err := parseEPSG(ic.NativeCRS)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", ic.ID, err)
	}
	if ic.BoundsWGS84 == nil {
		return nil, fmt.Errorf("elevation: collection %s: missing bounds_wgs84", ic.ID)
	}
	c := &Collection{
		ID:          ic.ID,
		Country:     ic.Country,
		Name:        ic.Name,
		SurveyYear:  ic.SurveyYear,
		ResolutionM: ic.ResolutionM,
		NativeEPSG:  nativeEPSG,
		BoundsWGS84: ic.BoundsWGS84.toBoundingBox(EPSGWGS84),
		DataType:    DataType(ic.DataType),
	}
	if ic.BoundsNative != nil {
		bb := ic.BoundsNative.toBoundingBox(nativeEPSG)
		c.BoundsNative = &bb
	}
	if ic.FileCount != 0 && ic.FileCount != len(ic.Files) {
		return nil, fmt.Errorf("elevation: collection %s: file_count %d but %d files listed", ic.ID, ic.FileCount, len(ic.Files))
	}
	c.Files = make([]FileRef, 0, len(ic.Files))
	for _, f := range ic.Files {
		if f.Bounds == nil {
			return nil, fmt.Errorf("elevation: collection %s: file %s has no bounds", ic.ID, f.Filename)
		}
		// A file may override the collection CRS (some NZ campaigns
		// store per-file WGS84 bounds).
		fileEPSG := nativeEPSG
		if f.Bounds.CRS != "" {
			if fileEPSG, err = parseEPSG(f.Bounds.CRS); err != nil {
				return nil, fmt.Errorf("collection %s file %s: %w", ic.ID, f.Filename, err)
			}
		}
		c.Files = append(c.Files, FileRef{
			URI:       f.URI,
			Bounds:    f.Bounds.toBoundingBox(fileEPSG),
			SizeBytes: f.SizeBytes,
			Filename:  f.Filename,
		})
	}
	return c, nil
}

func (b indexBox) toBoundingBox(epsg int) BoundingBox {
	return BoundingBox{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY, EPSG: epsg}
}
