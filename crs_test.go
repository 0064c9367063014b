// Copyright © 2025 Admin Road Engineering.

package elevation

import (
	"errors"
	"math"
	"testing"
)

func TestCRSRoundTrip(t *testing.T) {
	c := NewCRS()
	tests := []struct {
		name string
		p    Point
		epsg int
	}{
		{"auckland NZTM", Point{Lat: -36.8485, Lon: 174.7633}, EPSGNZTM},
		{"queenstown NZTM", Point{Lat: -45.0312, Lon: 168.6626}, EPSGNZTM},
		{"adelaide MGA54", Point{Lat: -34.9285, Lon: 138.6007}, EPSGMGA54},
		{"melbourne MGA55", Point{Lat: -37.8136, Lon: 144.9631}, EPSGMGA55},
		{"brisbane MGA56", Point{Lat: -27.4698, Lon: 153.0251}, EPSGMGA56},
	}
	// 1 mm expressed in degrees of latitude.
	const tol = 0.001 / 111320.0
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pp, err := c.Transform(test.p, test.epsg)
			if err != nil {
				t.Fatal(err)
			}
			if pp.EPSG != test.epsg {
				t.Errorf("EPSG %d != %d", pp.EPSG, test.epsg)
			}
			back, err := c.Inverse(pp)
			if err != nil {
				t.Fatal(err)
			}
			if d := math.Abs(back.Lat - test.p.Lat); d > tol {
				t.Errorf("latitude drift %g exceeds %g", d, tol)
			}
			if d := math.Abs(back.Lon - test.p.Lon); d > tol {
				t.Errorf("longitude drift %g exceeds %g", d, tol)
			}
		})
	}
}

func TestCRSProjectedRange(t *testing.T) {
	c := NewCRS()
	// Brisbane sits mid-zone in MGA56: easting near the 500 km central
	// meridian, northing large and positive from the 10,000 km false
	// northing.
	pp, err := c.Transform(Point{Lat: -27.4698, Lon: 153.0251}, EPSGMGA56)
	if err != nil {
		t.Fatal(err)
	}
	if pp.X < 140000 || pp.X > 860000 {
		t.Errorf("easting %g outside UTM zone range", pp.X)
	}
	if pp.Y < 6000000 || pp.Y > 8500000 {
		t.Errorf("northing %g outside expected AU range", pp.Y)
	}

	// Wellington in NZTM: false origin puts all of NZ in positive metres.
	pp, err = c.Transform(Point{Lat: -41.2866, Lon: 174.7756}, EPSGNZTM)
	if err != nil {
		t.Fatal(err)
	}
	if pp.X < 1000000 || pp.X > 2200000 {
		t.Errorf("NZTM easting %g outside expected range", pp.X)
	}
	if pp.Y < 4700000 || pp.Y > 6300000 {
		t.Errorf("NZTM northing %g outside expected range", pp.Y)
	}
}

func TestCRSUnknown(t *testing.T) {
	c := NewCRS()
	_, err := c.Transform(Point{Lat: -27, Lon: 153}, 32756)
	if err == nil {
		t.Fatal("expected error for unregistered EPSG code")
	}
	var unknown *CRSUnknownError
	if !errors.As(err, &unknown) {
		t.Fatalf("error %v is not a CRSUnknownError", err)
	}
	if unknown.EPSG != 32756 {
		t.Errorf("%d != 32756", unknown.EPSG)
	}
}

func TestKnownEPSG(t *testing.T) {
	for _, code := range []int{EPSGWGS84, EPSGNZTM, EPSGMGA54, EPSGMGA55, EPSGMGA56} {
		if !KnownEPSG(code) {
			t.Errorf("EPSG:%d should be known", code)
		}
	}
	if KnownEPSG(3857) {
		t.Error("EPSG:3857 should not be known")
	}
}
