// Copyright © 2025 Admin Road Engineering.

package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/admin-road-engineering/elevation"
)

// dailyQuota tracks free-tier usage of an external API. The window
// resets at UTC midnight; state is per-process (workers each hold
// their own slice of the quota).
type dailyQuota struct {
	limit int64

	mu    sync.Mutex
	day   string
	count int64
}

func newDailyQuota(limit int64) *dailyQuota {
	return &dailyQuota{limit: limit}
}

// take consumes one request from today's quota, reporting false when
// exhausted. A zero limit means unlimited.
func (q *dailyQuota) take(now time.Time) bool {
	if q.limit <= 0 {
		return true
	}
	day := now.UTC().Format("2006-01-02")
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.day != day {
		q.day = day
		q.count = 0
	}
	if q.count >= q.limit {
		return false
	}
	q.count++
	return true
}

// APIConfig configures one external HTTP elevation API.
type APIConfig struct {
	BaseURL    string
	APIKey     string
	DailyQuota int64
	// Timeout is the client-level ceiling; the chain applies the
	// per-source deadline via context.
	Timeout time.Duration
}

// GlobalAPISource is the primary external fallback (http_api_a): a
// keyed single-point API with global DEM coverage and a free-tier
// daily quota.
type GlobalAPISource struct {
	id     string
	cfg    APIConfig
	client *http.Client
	quota  *dailyQuota
}

// NewGlobalAPISource builds the http_api_a client.
func NewGlobalAPISource(id string, cfg APIConfig) *GlobalAPISource {
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &GlobalAPISource{
		id:     id,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		quota:  newDailyQuota(cfg.DailyQuota),
	}
}

// ID implements elevation.DataSource.
func (s *GlobalAPISource) ID() string { return s.id }

// Coverage implements elevation.DataSource.
func (s *GlobalAPISource) Coverage() elevation.Coverage {
	return elevation.Coverage{Description: "global DEM via external API"}
}

// Health implements elevation.DataSource.
func (s *GlobalAPISource) Health(context.Context) elevation.SourceHealth {
	if s.cfg.APIKey == "" {
		return elevation.SourceHealth{OK: false, Detail: "no API key configured"}
	}
	return elevation.SourceHealth{OK: true, Detail: "configured"}
}

type globalAPIResponse struct {
	Result *struct {
		Elevation  *float64 `json:"elevation"`
		DataSource string   `json:"data_source"`
		Resolution float64  `json:"resolution"`
	} `json:"result"`
}

// GetElevation implements elevation.DataSource.
func (s *GlobalAPISource) GetElevation(ctx context.Context, qp *elevation.QueryPoint) elevation.Outcome {
	if !s.quota.take(time.Now()) {
		return elevation.Failure(elevation.KindRateLimited, s.id, "daily request quota exhausted")
	}

	u := fmt.Sprintf("%s/v1/elevation/point?lat=%s&lon=%s",
		s.cfg.BaseURL,
		strconv.FormatFloat(qp.Lat, 'f', -1, 64),
		strconv.FormatFloat(qp.Lon, 'f', -1, 64))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return elevation.Failure(elevation.KindInternal, s.id, err.Error())
	}
	req.Header.Set("x-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return httpErrorOutcome(s.id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		out := elevation.Failure(elevation.KindRateLimited, s.id, "upstream rate limit")
		out.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return out
	case resp.StatusCode != http.StatusOK:
		return elevation.Failuref(elevation.KindUpstream, s.id, "unexpected status %d", resp.StatusCode)
	}

	var body globalAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return elevation.Failuref(elevation.KindUpstream, s.id, "decoding response: %v", err)
	}
	if body.Result == nil || body.Result.Elevation == nil {
		return elevation.NotCovered()
	}
	out := elevation.Found(*body.Result.Elevation, s.id, body.Result.Resolution, elevation.DEM)
	if body.Result.DataSource != "" {
		out.Message = fmt.Sprintf("upstream dataset %s", body.Result.DataSource)
	}
	return out
}

// LookupAPISource is the final fallback (http_api_b): an unkeyed
// lookup-style API.
type LookupAPISource struct {
	id     string
	cfg    APIConfig
	client *http.Client
}

// NewLookupAPISource builds the http_api_b client.
func NewLookupAPISource(id string, cfg APIConfig) *LookupAPISource {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &LookupAPISource{
		id:     id,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// ID implements elevation.DataSource.
func (s *LookupAPISource) ID() string { return s.id }

// Coverage implements elevation.DataSource.
func (s *LookupAPISource) Coverage() elevation.Coverage {
	return elevation.Coverage{Description: "global elevation lookup API (final fallback)"}
}

// Health implements elevation.DataSource.
func (s *LookupAPISource) Health(context.Context) elevation.SourceHealth {
	return elevation.SourceHealth{OK: true, Detail: "configured"}
}

type lookupAPIResponse struct {
	Results []struct {
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// GetElevation implements elevation.DataSource.
func (s *LookupAPISource) GetElevation(ctx context.Context, qp *elevation.QueryPoint) elevation.Outcome {
	u := fmt.Sprintf("%s/api/v1/lookup?locations=%s", s.cfg.BaseURL,
		url.QueryEscape(fmt.Sprintf("%g,%g", qp.Lat, qp.Lon)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return elevation.Failure(elevation.KindInternal, s.id, err.Error())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return httpErrorOutcome(s.id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		out := elevation.Failure(elevation.KindRateLimited, s.id, "upstream rate limit")
		out.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return out
	case resp.StatusCode != http.StatusOK:
		return elevation.Failuref(elevation.KindUpstream, s.id, "unexpected status %d", resp.StatusCode)
	}

	var body lookupAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return elevation.Failuref(elevation.KindUpstream, s.id, "decoding response: %v", err)
	}
	if len(body.Results) == 0 || body.Results[0].Elevation == nil {
		return elevation.NotCovered()
	}
	return elevation.Found(*body.Results[0].Elevation, s.id, 0, elevation.DEM)
}

// httpErrorOutcome distinguishes deadline expiry from other transport
// failures.
func httpErrorOutcome(id string, err error) elevation.Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return elevation.Failure(elevation.KindTimeout, id, err.Error())
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return elevation.Failure(elevation.KindTimeout, id, err.Error())
	}
	return elevation.Failure(elevation.KindUpstream, id, err.Error())
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
