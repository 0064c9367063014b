// Copyright © 2025 Admin Road Engineering.

package elevation

import (
	"testing"
)

// countingTransformer records how many transforms each EPSG code costs.
type countingTransformer struct {
	calls map[int]int
}

func (c *countingTransformer) Transform(p Point, epsg int) (ProjectedPoint, error) {
	if c.calls == nil {
		c.calls = make(map[int]int)
	}
	c.calls[epsg]++
	return ProjectedPoint{X: p.Lon * 1000, Y: p.Lat * 1000, EPSG: epsg}, nil
}

func TestQueryPointTransformsOnce(t *testing.T) {
	tr := &countingTransformer{}
	qp := NewQueryPoint(Point{Lat: -36.85, Lon: 174.76}, tr)

	for i := 0; i < 5; i++ {
		if _, err := qp.Projected(EPSGNZTM); err != nil {
			t.Fatal(err)
		}
		if _, err := qp.Projected(EPSGMGA56); err != nil {
			t.Fatal(err)
		}
	}
	if tr.calls[EPSGNZTM] != 1 {
		t.Errorf("%d != 1", tr.calls[EPSGNZTM])
	}
	if tr.calls[EPSGMGA56] != 1 {
		t.Errorf("%d != 1", tr.calls[EPSGMGA56])
	}
}

func TestQueryPointWGS84Passthrough(t *testing.T) {
	tr := &countingTransformer{}
	qp := NewQueryPoint(Point{Lat: -41.29, Lon: 174.78}, tr)
	pp, err := qp.Projected(EPSGWGS84)
	if err != nil {
		t.Fatal(err)
	}
	want := ProjectedPoint{X: 174.78, Y: -41.29, EPSG: EPSGWGS84}
	if pp != want {
		t.Errorf("%v != %v", pp, want)
	}
	if len(tr.calls) != 0 {
		t.Errorf("WGS84 passthrough consulted the transformer: %v", tr.calls)
	}
}

func TestPointValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		ok   bool
	}{
		{"valid", Point{Lat: -36.85, Lon: 174.76}, true},
		{"lat edge", Point{Lat: -90, Lon: 0}, true},
		{"lon edge", Point{Lat: 0, Lon: 180}, true},
		{"lat too small", Point{Lat: -90.1, Lon: 0}, false},
		{"lat too big", Point{Lat: 91, Lon: 0}, false},
		{"lon too small", Point{Lat: 0, Lon: -180.5}, false},
		{"lon too big", Point{Lat: 0, Lon: 181}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.p.Validate()
			if (err == nil) != test.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, test.ok)
			}
		})
	}
}
