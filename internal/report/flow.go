// Package report drives the map-based incident report draft from point
// selection through submission.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/guardian-ibera/firewatch/internal/gateway"
	"github.com/guardian-ibera/firewatch/internal/model"
)

type Status int

const (
	NoCoordinate Status = iota
	CoordinateSelected
	Submitting
	Submitted
	Failed
)

func (s Status) String() string {
	switch s {
	case CoordinateSelected:
		return "coordinate_selected"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	case Failed:
		return "failed"
	}
	return "no_coordinate"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrSubmitDisabled    = errors.New("select a point on the map before submitting")
	ErrInvalidCoordinate = errors.New("coordinate is outside the valid range")
	ErrSubmitting        = errors.New("a submission is already in progress")
)

// State is a value copy of the flow. ReportID is set only in Submitted and
// Reason only in Failed.
type State struct {
	Status      Status            `json:"status"`
	Coordinate  *model.Coordinate `json:"coordinate,omitempty"`
	Description string            `json:"description"`
	ReportID    int               `json:"report_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

type Creator interface {
	CreateReport(ctx context.Context, in model.ReportInput) (model.Report, error)
}

type Geocoder interface {
	Locate(ctx context.Context, c model.Coordinate) (model.Place, error)
}

type Option func(*Flow)

func WithListener(fn func(State)) Option {
	return func(f *Flow) { f.listener = fn }
}

// WithGeocoder enables department and locality lookup for submitted reports.
func WithGeocoder(g Geocoder) Option {
	return func(f *Flow) { f.geocoder = g }
}

func WithUnauthorizedHandler(fn func(error)) Option {
	return func(f *Flow) { f.onUnauthorized = fn }
}

type Flow struct {
	creator        Creator
	geocoder       Geocoder
	listener       func(State)
	onUnauthorized func(error)

	mu    sync.Mutex
	state State
}

func New(creator Creator, opts ...Option) *Flow {
	f := &Flow{creator: creator}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

// snapshot must be called with mu held.
func (f *Flow) snapshot() State {
	s := f.state
	if s.Coordinate != nil {
		c := *s.Coordinate
		s.Coordinate = &c
	}
	return s
}

// SelectPoint stores the picked point and clears any previous failure.
// The point is kept even when out of range so the user can correct it.
func (f *Flow) SelectPoint(lat, lon float64) error {
	f.mu.Lock()
	if f.state.Status == Submitting {
		f.mu.Unlock()
		return ErrSubmitting
	}
	if f.state.Status == Submitted {
		f.state = State{}
	}
	f.state.Coordinate = &model.Coordinate{Lat: lat, Lon: lon}
	f.state.Status = CoordinateSelected
	f.state.Reason = ""
	f.state.ReportID = 0
	snap := f.snapshot()
	f.mu.Unlock()

	f.notify(snap)
	return nil
}

func (f *Flow) SetDescription(desc string) error {
	f.mu.Lock()
	if f.state.Status == Submitting {
		f.mu.Unlock()
		return ErrSubmitting
	}
	f.state.Description = desc
	snap := f.snapshot()
	f.mu.Unlock()

	f.notify(snap)
	return nil
}

// CanSubmit reports whether the draft holds a valid coordinate and no
// submission is in flight.
func (f *Flow) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmit()
}

func (f *Flow) canSubmit() bool {
	switch f.state.Status {
	case CoordinateSelected, Failed:
		return f.state.Coordinate != nil && f.state.Coordinate.Valid()
	}
	return false
}

// Submit sends the draft. On success the draft is cleared and the returned
// report carries the server-assigned id. On failure the draft is kept.
func (f *Flow) Submit(ctx context.Context) (model.Report, error) {
	f.mu.Lock()
	switch {
	case f.state.Status == Submitting:
		f.mu.Unlock()
		return model.Report{}, ErrSubmitting
	case f.state.Coordinate == nil || f.state.Status == Submitted || f.state.Status == NoCoordinate:
		f.mu.Unlock()
		return model.Report{}, ErrSubmitDisabled
	case !f.state.Coordinate.Valid():
		c := *f.state.Coordinate
		f.state.Status = Failed
		f.state.Reason = fmt.Sprintf("latitude must be between -90 and 90 and longitude between -180 and 180 (got %g, %g)", c.Lat, c.Lon)
		snap := f.snapshot()
		f.mu.Unlock()
		f.notify(snap)
		return model.Report{}, fmt.Errorf("%w: %g, %g", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	coord := *f.state.Coordinate
	desc := f.state.Description
	f.state.Status = Submitting
	f.state.Reason = ""
	snap := f.snapshot()
	f.mu.Unlock()
	f.notify(snap)

	in := model.ReportInput{Latitude: coord.Lat, Longitude: coord.Lon}
	if d := strings.TrimSpace(desc); d != "" {
		in.Description = &d
	}
	f.enrich(ctx, coord, &in)

	rep, err := f.creator.CreateReport(ctx, in)

	f.mu.Lock()
	if err != nil {
		f.state.Status = Failed
		f.state.Reason = gateway.Describe(err)
	} else {
		f.state = State{Status: Submitted, ReportID: rep.ID}
	}
	snap = f.snapshot()
	f.mu.Unlock()
	f.notify(snap)

	if err != nil {
		slog.Error("report submission failed", "lat", coord.Lat, "lon", coord.Lon, "error", err)
		if errors.Is(err, gateway.ErrUnauthorized) && f.onUnauthorized != nil {
			f.onUnauthorized(err)
		}
		return model.Report{}, err
	}
	return rep, nil
}

func (f *Flow) enrich(ctx context.Context, c model.Coordinate, in *model.ReportInput) {
	if f.geocoder == nil {
		return
	}
	place, err := f.geocoder.Locate(ctx, c)
	if err != nil {
		slog.Warn("place lookup failed, submitting without it", "lat", c.Lat, "lon", c.Lon, "error", err)
		return
	}
	if place.Department != "" {
		in.Department = &place.Department
	}
	if place.Locality != "" {
		in.Paraje = &place.Locality
	}
}

// Reset discards the draft. It is a no-op while a submission is in flight.
func (f *Flow) Reset() {
	f.mu.Lock()
	if f.state.Status == Submitting {
		f.mu.Unlock()
		return
	}
	f.state = State{}
	snap := f.snapshot()
	f.mu.Unlock()
	f.notify(snap)
}

func (f *Flow) notify(s State) {
	if f.listener != nil {
		f.listener(s)
	}
}
