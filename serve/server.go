// Copyright © 2025 Admin Road Engineering.

// Package serve exposes the elevation pipeline over HTTP: single and
// multi-point queries, campaign metadata, and health.
package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/admin-road-engineering/elevation"
)

// Backend is the provider surface the HTTP layer needs. Implemented by
// *provider.Provider; tests substitute fakes.
type Backend interface {
	Ready() bool
	GetElevation(ctx context.Context, p elevation.Point) elevation.Outcome
	Collections() []*elevation.Collection
	Collection(id string) *elevation.Collection
	CollectionCount() int
	StoreKind() string
	SourceStates(ctx context.Context) []elevation.SourceState
	UsageSnapshot() map[string]elevation.SourceStatsSnapshot
	ResetBreakers(ctx context.Context) error
	BatchLimit() int
	Concurrency() int
}

// Server handles the /api/v1 surface.
type Server struct {
	backend Backend
	log     *logrus.Logger
	mux     *http.ServeMux
}

// NewServer wires the routes.
func NewServer(backend Backend, log *logrus.Logger) *Server {
	s := &Server{backend: backend, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /api/v1/elevation", s.handleSinglePoint)
	s.mux.HandleFunc("POST /api/v1/elevation/points", s.handlePoints)
	s.mux.HandleFunc("POST /api/v1/elevation/line", s.handleLine)
	s.mux.HandleFunc("POST /api/v1/elevation/path", s.handlePath)
	s.mux.HandleFunc("GET /api/v1/elevation/campaigns", s.handleCampaigns)
	s.mux.HandleFunc("GET /api/v1/elevation/campaigns/{id}", s.handleCampaign)
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/admin/circuit-breakers/reset", s.handleBreakerReset)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.WithFields(logrus.Fields{
		"method":  r.Method,
		"path":    r.URL.Path,
		"elapsed": time.Since(start),
	}).Debug("request served")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("encoding response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// requireReady gates query endpoints until startup completes.
func (s *Server) requireReady(w http.ResponseWriter) bool {
	if s.backend.Ready() {
		return true
	}
	s.writeError(w, http.StatusServiceUnavailable, "service is starting up")
	return false
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "reading request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unparseable request body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleSinglePoint(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err1 != nil || err2 != nil {
		s.writeError(w, http.StatusBadRequest, "lat and lon query parameters are required numbers")
		return
	}
	p := elevation.Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out := s.backend.GetElevation(r.Context(), p)
	s.writeJSON(w, http.StatusOK, toPointResponse(p, out))
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}
	var req pointsRequest
	if !s.decode(w, r, &req) {
		return
	}
	pts, ok := s.parsePoints(w, req.Points)
	if !ok {
		return
	}
	results := s.evaluate(r.Context(), pts)
	s.writeJSON(w, http.StatusOK, pointsResponse{Points: results, TotalPoints: len(results)})
}

func (s *Server) handleLine(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}
	var req lineRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.StartPoint == nil || req.EndPoint == nil {
		s.writeError(w, http.StatusBadRequest, "start_point and end_point are required")
		return
	}
	start, err := req.StartPoint.point()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("start_point: %v", err))
		return
	}
	end, err := req.EndPoint.point()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("end_point: %v", err))
		return
	}
	if req.NumPoints < 2 {
		s.writeError(w, http.StatusBadRequest, "num_points must be at least 2")
		return
	}
	if req.NumPoints > s.backend.BatchLimit() {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("num_points %d exceeds the limit of %d", req.NumPoints, s.backend.BatchLimit()))
		return
	}
	results := s.evaluate(r.Context(), linePoints(start, end, req.NumPoints))
	s.writeJSON(w, http.StatusOK, pointsResponse{Points: results, TotalPoints: len(results)})
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}
	var req pathRequest
	if !s.decode(w, r, &req) {
		return
	}
	pts, ok := s.parsePoints(w, req.Points)
	if !ok {
		return
	}
	results := s.evaluate(r.Context(), pts)
	s.writeJSON(w, http.StatusOK, pointsResponse{Points: results, TotalPoints: len(results)})
}

// parsePoints validates a multi-point body against the batch limit.
// Exceeding the limit fails the whole request.
func (s *Server) parsePoints(w http.ResponseWriter, bodies []coordBody) ([]elevation.Point, bool) {
	if len(bodies) == 0 {
		s.writeError(w, http.StatusBadRequest, "points must not be empty")
		return nil, false
	}
	if limit := s.backend.BatchLimit(); len(bodies) > limit {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("%d points exceeds the limit of %d", len(bodies), limit))
		return nil, false
	}
	pts := make([]elevation.Point, len(bodies))
	for i, b := range bodies {
		p, err := b.point()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("points[%d]: %v", i, err))
			return nil, false
		}
		pts[i] = p
	}
	return pts, true
}

// Campaign metadata endpoints.

type campaignResponse struct {
	ID          string                `json:"id"`
	Country     string                `json:"country"`
	Name        string                `json:"name"`
	SurveyYear  *int                  `json:"survey_year"`
	ResolutionM float64               `json:"resolution_m"`
	NativeCRS   string                `json:"native_crs"`
	BoundsWGS84 elevation.BoundingBox `json:"bounds_wgs84"`
	DataType    string                `json:"data_type"`
	FileCount   int                   `json:"file_count"`
}

type campaignDetailResponse struct {
	campaignResponse
	Files      []elevation.FileRef `json:"files"`
	FilePage   int                 `json:"file_page"`
	FileLimit  int                 `json:"file_limit"`
	TotalFiles int                 `json:"total_files"`
}

func toCampaignResponse(c *elevation.Collection) campaignResponse {
	return campaignResponse{
		ID:          c.ID,
		Country:     c.Country,
		Name:        c.Name,
		SurveyYear:  c.SurveyYear,
		ResolutionM: c.ResolutionM,
		NativeCRS:   fmt.Sprintf("EPSG:%d", c.NativeEPSG),
		BoundsWGS84: c.BoundsWGS84,
		DataType:    string(c.DataType),
		FileCount:   c.FileCount(),
	}
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}
	cols := s.backend.Collections()
	out := make([]campaignResponse, len(cols))
	for i, c := range cols {
		out[i] = toCampaignResponse(c)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": out,
		"total":     len(out),
	})
}

func (s *Server) handleCampaign(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}
	c := s.backend.Collection(r.PathValue("id"))
	if c == nil {
		s.writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	page := queryInt(r, "file_page", 1)
	limit := queryInt(r, "file_limit", 100)
	if page < 1 || limit < 1 || limit > 1000 {
		s.writeError(w, http.StatusBadRequest, "file_page must be >= 1 and file_limit in [1, 1000]")
		return
	}
	total := c.FileCount()
	lo := (page - 1) * limit
	if lo > total {
		lo = total
	}
	hi := lo + limit
	if hi > total {
		hi = total
	}
	s.writeJSON(w, http.StatusOK, campaignDetailResponse{
		campaignResponse: toCampaignResponse(c),
		Files:            c.Files[lo:hi],
		FilePage:         page,
		FileLimit:        limit,
		TotalFiles:       total,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// Health and admin.

type healthResponse struct {
	Status          string                                   `json:"status"`
	CollectionCount int                                      `json:"collection_count"`
	ProviderType    string                                   `json:"provider_type"`
	Sources         []elevation.SourceState                  `json:"sources"`
	Usage           map[string]elevation.SourceStatsSnapshot `json:"usage"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.backend.Ready() {
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "initializing"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:          "healthy",
		CollectionCount: s.backend.CollectionCount(),
		ProviderType:    s.backend.StoreKind(),
		Sources:         s.backend.SourceStates(r.Context()),
		Usage:           s.backend.UsageSnapshot(),
	})
}

func (s *Server) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	if !s.requireReady(w) {
		return
	}
	if err := s.backend.ResetBreakers(r.Context()); err != nil {
		s.log.WithError(err).Error("resetting circuit breakers")
		s.writeError(w, http.StatusInternalServerError, "resetting circuit breakers failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
