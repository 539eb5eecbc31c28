package model

import (
	"math"
	"time"
)

// DateLayout is the ISO calendar date format used by the historical endpoints.
const DateLayout = "2006-01-02"

// User is the identity record returned by the identity lookup endpoint.
type User struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// Token is the login endpoint response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// DetectionPoint is a single active heat detection from the live feed.
type DetectionPoint struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Brightness     float64   `json:"brightness"`
	RadiativePower float64   `json:"frp"`
	Confidence     string    `json:"confidence"`
	Satellite      string    `json:"satellite"`
	AcquiredAt     time.Time `json:"acquired_at"`
}

// DetectionFeed is one snapshot of the live-detection feed.
type DetectionFeed struct {
	Days   int              `json:"days"`
	Total  int              `json:"total"`
	Points []DetectionPoint `json:"points"`
}

// DateRange is an optional [Start, End] calendar window. Zero values mean
// "server default".
type DateRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

func (r DateRange) StartParam() string {
	if r.Start.IsZero() {
		return ""
	}
	return r.Start.Format(DateLayout)
}

func (r DateRange) EndParam() string {
	if r.End.IsZero() {
		return ""
	}
	return r.End.Format(DateLayout)
}

type HistoricalSummary struct {
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	TotalDaysAnalyzed int    `json:"total_days_analyzed"`
	DaysWithEvents    int    `json:"days_with_fires"`
	TotalUnits        int    `json:"total_fire_pixels"`
	PeakDate          string `json:"peak_fire_date"`
	PeakValue         int    `json:"max_pixels_in_a_day"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"fire_pixel_count"`
}

// HistoricalSeries holds the historical fire-pixel aggregates, ordered by date.
type HistoricalSeries struct {
	Summary     HistoricalSummary `json:"summary"`
	DailyPoints []DailyCount      `json:"daily_data"`
}

type VegetationPoint struct {
	Date      string  `json:"date"`
	MeanIndex float64 `json:"mean_ndvi"`
}

// VegetationSeries is the NDVI series, ordered by date.
type VegetationSeries []VegetationPoint

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type Alert struct {
	ID          int       `json:"id"`
	Severity    Severity  `json:"severity"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	CreatedAt   time.Time `json:"created_at"`
}

type AlertList []Alert

// Coordinate is a WGS84 point picked on the map.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite and inside the WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// ReportInput is the report-creation request body. Nil pointers are omitted.
type ReportInput struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description *string `json:"description,omitempty"`
	Department  *string `json:"department,omitempty"`
	Paraje      *string `json:"paraje,omitempty"`
}

// Report is a persisted incident report.
type Report struct {
	ID          int       `json:"id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Place is the administrative location resolved for a coordinate.
type Place struct {
	Department string `json:"department,omitempty"`
	Locality   string `json:"locality,omitempty"`
}
