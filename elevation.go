// Copyright © 2025 Admin Road Engineering.

// Package elevation implements the query pipeline that turns a geographic
// point into a ground elevation: a spatial index over survey campaigns,
// country-aware candidate prioritisation, remote raster sampling, and a
// fallback chain over several data sources.
package elevation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Country tags for survey campaigns.
const (
	CountryAU = "AU"
	CountryNZ = "NZ"
)

// DataType distinguishes bare-earth models from surface models.
type DataType string

// Supported raster data types.
const (
	DEM DataType = "DEM"
	DSM DataType = "DSM"
)

// ErrorKind classifies source failures. NotCovered and NoData are not
// error kinds: they are ordinary outcomes.
type ErrorKind string

// Error kinds returned inside Outcome.
const (
	KindCRSUnknown  ErrorKind = "crs_unknown"
	KindCRSMismatch ErrorKind = "crs_mismatch"
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindCircuitOpen ErrorKind = "circuit_open"
	KindUpstream    ErrorKind = "upstream"
	KindInternal    ErrorKind = "internal"
)

// OutcomeStatus is the discriminant of Outcome.
type OutcomeStatus string

// Outcome statuses.
const (
	StatusFound      OutcomeStatus = "found"
	StatusNotCovered OutcomeStatus = "not_covered"
	StatusNoData     OutcomeStatus = "no_data"
	StatusError      OutcomeStatus = "error"
)

// Outcome is the result of asking a data source for an elevation.
// Expected conditions (no coverage, nodata pixels, upstream failures)
// travel through Outcome rather than through Go errors so that the
// orchestrator can distinguish coverage gaps from source failures.
type Outcome struct {
	Status      OutcomeStatus
	ElevationM  float64
	SourceID    string
	ResolutionM float64
	DataType    DataType
	Message     string

	// Set when Status is StatusError.
	Kind   ErrorKind
	Detail string
	// RetryAfter carries an upstream Retry-After hint for rate limit
	// errors; zero otherwise.
	RetryAfter time.Duration
}

// Found constructs a successful outcome.
func Found(elevationM float64, sourceID string, resolutionM float64, dt DataType) Outcome {
	return Outcome{
		Status:      StatusFound,
		ElevationM:  elevationM,
		SourceID:    sourceID,
		ResolutionM: resolutionM,
		DataType:    dt,
	}
}

// NotCovered reports that the source has no data for the point.
func NotCovered() Outcome {
	return Outcome{Status: StatusNotCovered}
}

// NoData reports that the covering raster holds the nodata sentinel at
// the point.
func NoData(sourceID string) Outcome {
	return Outcome{Status: StatusNoData, SourceID: sourceID}
}

// Failure constructs an error outcome.
func Failure(kind ErrorKind, sourceID, detail string) Outcome {
	return Outcome{Status: StatusError, Kind: kind, SourceID: sourceID, Detail: detail}
}

// Failuref is Failure with formatting.
func Failuref(kind ErrorKind, sourceID, format string, args ...interface{}) Outcome {
	return Failure(kind, sourceID, fmt.Sprintf(format, args...))
}

// Exhausted is the orchestrator's outcome when every source has been
// tried without success. tried lists the source ids consulted.
func Exhausted(tried []string) Outcome {
	return Outcome{
		Status:  StatusNotCovered,
		Message: fmt.Sprintf("no elevation data available (sources tried: %s)", strings.Join(tried, ", ")),
	}
}

// IsFailure reports whether the outcome should count against the
// source's circuit breaker. Coverage gaps never do.
func (o Outcome) IsFailure() bool {
	return o.Status == StatusError && o.Kind != KindCircuitOpen
}

// SourceHealth is a point-in-time health report from a data source.
type SourceHealth struct {
	OK     bool
	Detail string
}

// Coverage describes the geographic extent a source can answer for.
type Coverage struct {
	Description string
	BBox        *BoundingBox
}

// A DataSource answers single-point elevation queries. Implementations
// must be safe for concurrent use and must not return Go errors for
// expected conditions; those are encoded in the Outcome.
type DataSource interface {
	ID() string
	GetElevation(ctx context.Context, qp *QueryPoint) Outcome
	Health(ctx context.Context) SourceHealth
	Coverage() Coverage
}

// SourceKind enumerates the concrete data source flavours.
type SourceKind string

// Source kinds, in ascending default priority order.
const (
	KindPrivateBucket SourceKind = "private_bucket"
	KindPublicBucket  SourceKind = "public_bucket"
	KindHTTPAPIA      SourceKind = "http_api_a"
	KindHTTPAPIB      SourceKind = "http_api_b"
)

// SourceDescriptor is the static configuration of one chain entry.
// Priority orders the fallback chain at construction time; lower values
// are consulted first.
type SourceDescriptor struct {
	ID               string
	Kind             SourceKind
	Priority         int
	Timeout          time.Duration
	FailureThreshold int
	RecoveryTimeout  time.Duration
}
