// Copyright © 2025 Admin Road Engineering.

package elevation

import (
	"fmt"
	"sort"
)

// A CountryHandler holds the per-country campaign policy: how to rank
// competing campaigns and how to resolve a point to tiles. Handlers do
// not open rasters.
type CountryHandler interface {
	Country() string
	// Prioritise stable-sorts candidates highest priority first.
	Prioritise(cands []*Collection) []*Collection
	// Files resolves the point to the campaign's covering tiles,
	// transforming CRS as the campaign requires.
	Files(c *Collection, qp *QueryPoint) ([]FileRef, error)
}

// collectionLess ranks two campaigns of the same country. Road
// engineers want bare earth from the most recent high-resolution
// survey: DEM beats DSM, then newer survey years (campaigns without a
// year sort last), then finer resolution, then id for determinism.
func collectionLess(a, b *Collection) bool {
	if a.DataType != b.DataType {
		return a.DataType == DEM
	}
	ay, by := a.SurveyYear, b.SurveyYear
	switch {
	case ay != nil && by == nil:
		return true
	case ay == nil && by != nil:
		return false
	case ay != nil && by != nil && *ay != *by:
		return *ay > *by
	}
	if a.ResolutionM != b.ResolutionM {
		return a.ResolutionM < b.ResolutionM
	}
	return a.ID < b.ID
}

// countryHandler implements the shared AU/NZ policy. The countries
// differ only in which CRSs their campaigns use, which the data model
// already captures, and in chain-level precedence, which the registry
// applies.
type countryHandler struct {
	country string
	index   *SpatialIndex
}

func (h *countryHandler) Country() string { return h.country }

func (h *countryHandler) Prioritise(cands []*Collection) []*Collection {
	out := make([]*Collection, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool { return collectionLess(out[i], out[j]) })
	return out
}

func (h *countryHandler) Files(c *Collection, qp *QueryPoint) ([]FileRef, error) {
	return h.index.FilesFor(c, qp)
}

// NewAUHandler returns the Australian campaign policy.
func NewAUHandler(index *SpatialIndex) CountryHandler {
	return &countryHandler{country: CountryAU, index: index}
}

// NewNZHandler returns the New Zealand campaign policy.
func NewNZHandler(index *SpatialIndex) CountryHandler {
	return &countryHandler{country: CountryNZ, index: index}
}

// HandlerRegistry dispatches campaign policy by country tag. Adding a
// country is a registration, not an orchestration change: register a
// handler and state where it sits in the precedence order.
type HandlerRegistry struct {
	handlers map[string]CountryHandler
	// precedence lists countries highest priority first. A NZ point
	// must never fall through to AU campaigns that incidentally
	// intersect, so NZ precedes AU.
	precedence []string
}

// NewHandlerRegistry builds the default registry: NZ before AU.
func NewHandlerRegistry(index *SpatialIndex) *HandlerRegistry {
	r := &HandlerRegistry{handlers: make(map[string]CountryHandler)}
	r.Register(NewNZHandler(index))
	r.Register(NewAUHandler(index))
	return r
}

// Register appends a handler at the end of the precedence order.
func (r *HandlerRegistry) Register(h CountryHandler) {
	if _, ok := r.handlers[h.Country()]; !ok {
		r.precedence = append(r.precedence, h.Country())
	}
	r.handlers[h.Country()] = h
}

// Prioritise orders mixed-country candidates: collections are grouped
// by country, each group is ranked by its own handler, and the groups
// are concatenated in precedence order. Candidates whose country has no
// registered handler are dropped.
func (r *HandlerRegistry) Prioritise(cands []*Collection) []*Collection {
	byCountry := make(map[string][]*Collection)
	for _, c := range cands {
		byCountry[c.Country] = append(byCountry[c.Country], c)
	}
	var out []*Collection
	for _, country := range r.precedence {
		group := byCountry[country]
		if len(group) == 0 {
			continue
		}
		out = append(out, r.handlers[country].Prioritise(group)...)
	}
	return out
}

// Files dispatches tile resolution to the campaign's country handler.
func (r *HandlerRegistry) Files(c *Collection, qp *QueryPoint) ([]FileRef, error) {
	h, ok := r.handlers[c.Country]
	if !ok {
		return nil, fmt.Errorf("elevation: no handler registered for country %q", c.Country)
	}
	return h.Files(c, qp)
}
