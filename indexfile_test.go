// Copyright © 2025 Admin Road Engineering.

package elevation

import (
	"strings"
	"testing"
)

const sampleIndex = `{
  "schema_version": "1.1.0",
  "bounds_crs": {"AU": "EPSG:4326", "NZ": "EPSG:4326"},
  "data_collections": [
    {
      "id": "act2015",
      "country": "AU",
      "name": "ACT 2015",
      "survey_year": 2015,
      "resolution_m": 1,
      "native_crs": "EPSG:28355",
      "bounds_wgs84": {"min_x": 148.7, "min_y": -35.9, "max_x": 149.4, "max_y": -35.1},
      "bounds_native": {"min_x": 650000, "min_y": 6020000, "max_x": 720000, "max_y": 6110000},
      "data_type": "DEM",
      "file_count": 1,
      "files": [
        {
          "uri": "s3://au-dem/act2015/tile_001.tif",
          "filename": "tile_001.tif",
          "size_bytes": 104857600,
          "bounds_native": {"min_x": 650000, "min_y": 6020000, "max_x": 660000, "max_y": 6030000}
        }
      ]
    },
    {
      "id": "auckland2016",
      "country": "NZ",
      "name": "Auckland 2016",
      "survey_year": 2016,
      "resolution_m": 1,
      "native_crs": "EPSG:2193",
      "bounds_wgs84": {"min_x": 174.4, "min_y": -37.1, "max_x": 175.3, "max_y": -36.5},
      "bounds_native": {"min_x": 1730000, "min_y": 5880000, "max_x": 1810000, "max_y": 5950000},
      "data_type": "DEM",
      "files": [
        {
          "uri": "s3://nz-elevation/auckland2016/tile_aa.tif",
          "filename": "tile_aa.tif",
          "size_bytes": 52428800,
          "bounds_native": {"min_x": 174.4, "min_y": -37.1, "max_x": 174.9, "max_y": -36.8, "crs": "EPSG:4326"}
        }
      ]
    }
  ]
}`

func allCountries() IndexOptions {
	return IndexOptions{EnableCountry: map[string]bool{CountryAU: true, CountryNZ: true}}
}

func TestParseIndexDocument(t *testing.T) {
	cs, err := ParseIndexDocument([]byte(sampleIndex), allCountries())
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 {
		t.Fatalf("parsed %d collections, want 2", len(cs))
	}

	au := cs[0]
	if au.ID != "act2015" || au.NativeEPSG != EPSGMGA55 {
		t.Errorf("AU collection = %q EPSG:%d", au.ID, au.NativeEPSG)
	}
	if au.SurveyYear == nil || *au.SurveyYear != 2015 {
		t.Errorf("survey year %v != 2015", au.SurveyYear)
	}
	if au.BoundsNative == nil || au.BoundsNative.EPSG != EPSGMGA55 {
		t.Errorf("native bounds %v should carry the collection CRS", au.BoundsNative)
	}
	if au.Files[0].Bounds.EPSG != EPSGMGA55 {
		t.Errorf("file without crs tag inherits the collection CRS, got EPSG:%d", au.Files[0].Bounds.EPSG)
	}

	nz := cs[1]
	// The NZ file overrides the collection CRS with its own tag.
	if nz.Files[0].Bounds.EPSG != EPSGWGS84 {
		t.Errorf("file crs override ignored, got EPSG:%d", nz.Files[0].Bounds.EPSG)
	}
}

func TestParseIndexDocumentCountryFilter(t *testing.T) {
	cs, err := ParseIndexDocument([]byte(sampleIndex),
		IndexOptions{EnableCountry: map[string]bool{CountryNZ: true}})
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 1 || cs[0].Country != CountryNZ {
		t.Errorf("expected only the NZ collection, got %v", cs)
	}
}

func TestParseIndexDocumentRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantSub string
	}{
		{
			name:    "unsupported schema version",
			mutate:  func(s string) string { return strings.Replace(s, `"1.1.0"`, `"9.0.0"`, 1) },
			wantSub: "schema version",
		},
		{
			name:    "missing bounds_crs",
			mutate:  func(s string) string { return strings.Replace(s, `"bounds_crs": {"AU": "EPSG:4326", "NZ": "EPSG:4326"},`, `"bounds_crs": {},`, 1) },
			wantSub: "bounds_crs",
		},
		{
			name:    "non-wgs84 bounds_crs",
			mutate:  func(s string) string { return strings.Replace(s, `"AU": "EPSG:4326"`, `"AU": "EPSG:28355"`, 1) },
			wantSub: "must be WGS84",
		},
		{
			name:    "nz crs on au collection",
			mutate:  func(s string) string { return strings.Replace(s, `"EPSG:28355"`, `"EPSG:2193"`, 1) },
			wantSub: "not an AU MGA zone",
		},
		{
			name:    "file_count mismatch",
			mutate:  func(s string) string { return strings.Replace(s, `"file_count": 1,`, `"file_count": 7,`, 1) },
			wantSub: "file_count",
		},
		{
			name:    "malformed crs tag",
			mutate:  func(s string) string { return strings.Replace(s, `"EPSG:28355"`, `"28355"`, 1) },
			wantSub: "EPSG:nnnn",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseIndexDocument([]byte(test.mutate(sampleIndex)), allCountries())
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !strings.Contains(err.Error(), test.wantSub) {
				t.Errorf("error %q does not mention %q", err, test.wantSub)
			}
		})
	}
}
