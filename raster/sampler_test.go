// Copyright © 2025 Admin Road Engineering.

package raster

import (
	"testing"
)

func TestPixelAt(t *testing.T) {
	// 1 m north-up raster: origin (1700000, 5450000), 1000x1000 pixels.
	gt := [6]float64{1700000, 1, 0, 5450000, 0, -1}
	tests := []struct {
		name     string
		x, y     float64
		col, row int
	}{
		{"origin corner", 1700000, 5450000, 0, 0},
		{"pixel centre", 1700000.5, 5449999.5, 0, 0},
		{"one pixel east-south", 1700001.5, 5449998.5, 1, 1},
		{"far corner", 1700999.9, 5449000.1, 999, 999},
		{"west of raster", 1699999.9, 5449999, -1, 0},
		{"north of raster", 1700001, 5450000.1, 1, -1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			col, row := pixelAt(gt, test.x, test.y)
			if col != test.col || row != test.row {
				t.Errorf("(%d, %d) != (%d, %d)", col, row, test.col, test.row)
			}
		})
	}
}

func TestPixelAtCoarseResolution(t *testing.T) {
	// 30 m SRTM-style tile in degrees: gt[1] ~ 0.000277.
	gt := [6]float64{152, 0.0002777778, 0, -27, 0, -0.0002777778}
	col, row := pixelAt(gt, 152.5, -27.5)
	if col != 1799 || row != 1799 {
		t.Errorf("(%d, %d) != (1799, 1799)", col, row)
	}
}

func TestIsNoData(t *testing.T) {
	tests := []struct {
		name      string
		v, nodata float64
		want      bool
	}{
		{"exact match", -9999, -9999, true},
		{"valid value", 123.4, -9999, false},
		{"float32 max sentinel", -3.4028234663852886e38, -3.4028235e38, true},
		{"near-sentinel rounding", -9999.0000001, -9999, true},
		{"zero sentinel needs exact match", 0.0000001, 0, false},
		{"zero matches zero", 0, 0, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := isNoData(test.v, test.nodata); got != test.want {
				t.Errorf("isNoData(%g, %g) = %v, want %v", test.v, test.nodata, got, test.want)
			}
		})
	}
}

func TestEPSGFromWKT(t *testing.T) {
	nztm := `PROJCS["NZGD2000 / New Zealand Transverse Mercator 2000",
    GEOGCS["NZGD2000",DATUM["New_Zealand_Geodetic_Datum_2000",
        SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],
        AUTHORITY["EPSG","6167"]],
        PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],
        AUTHORITY["EPSG","4167"]],
    PROJECTION["Transverse_Mercator"],
    UNIT["metre",1,AUTHORITY["EPSG","9001"]],
    AUTHORITY["EPSG","2193"]]`

	tests := []struct {
		name string
		wkt  string
		code int
		ok   bool
	}{
		{"nztm outermost authority", nztm, 2193, true},
		{"simple", `PROJCS["x",AUTHORITY["EPSG","28356"]]`, 28356, true},
		{"no authority", `PROJCS["local grid"]`, 0, false},
		{"empty", "", 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code, ok := epsgFromWKT(test.wkt)
			if code != test.code || ok != test.ok {
				t.Errorf("(%d, %v) != (%d, %v)", code, ok, test.code, test.ok)
			}
		})
	}
}

func TestRewriteURI(t *testing.T) {
	public := map[string]bool{"nz-elevation": true, "road-engineering-elevation-data": true}
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"public bucket", "s3://nz-elevation/auckland/tile.tif", "s3pub://nz-elevation/auckland/tile.tif"},
		{"private bucket", "s3://private-dem/act/tile.tif", "s3://private-dem/act/tile.tif"},
		{"non-s3 untouched", "file:///data/tile.tif", "file:///data/tile.tif"},
		{"bucket name is a prefix of a public one", "s3://nz-elevation-other/x.tif", "s3://nz-elevation-other/x.tif"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := rewriteURI(test.uri, public); got != test.want {
				t.Errorf("%q != %q", got, test.want)
			}
		})
	}
}
