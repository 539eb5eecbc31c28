package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/guardian-ibera/firewatch/internal/model"
)

var ErrInvalidRange = errors.New("invalid date range")

// ParseRange parses ISO calendar dates; an empty string leaves that end open.
func ParseRange(start, end string) (model.DateRange, error) {
	var r model.DateRange
	var err error
	if start != "" {
		if r.Start, err = time.Parse(model.DateLayout, start); err != nil {
			return model.DateRange{}, fmt.Errorf("%w: start date %q is not YYYY-MM-DD", ErrInvalidRange, start)
		}
	}
	if end != "" {
		if r.End, err = time.Parse(model.DateLayout, end); err != nil {
			return model.DateRange{}, fmt.Errorf("%w: end date %q is not YYYY-MM-DD", ErrInvalidRange, end)
		}
	}
	return r, nil
}

// ValidateRange enforces start <= end <= today, comparing calendar days.
func ValidateRange(r model.DateRange, now time.Time) error {
	today := civil(now)
	if !r.Start.IsZero() && !r.End.IsZero() && civil(r.Start).After(civil(r.End)) {
		return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidRange, r.StartParam(), r.EndParam())
	}
	if !r.End.IsZero() && civil(r.End).After(today) {
		return fmt.Errorf("%w: end date %s is in the future", ErrInvalidRange, r.EndParam())
	}
	if !r.Start.IsZero() && civil(r.Start).After(today) {
		return fmt.Errorf("%w: start date %s is in the future", ErrInvalidRange, r.StartParam())
	}
	return nil
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RangePanel is a panel parameterised by a date range that is re-fetched
// wholesale whenever the range is submitted.
type RangePanel[T any] struct {
	*Panel[T]
	what  string
	fetch func(context.Context, model.DateRange) (T, error)

	paramMu sync.Mutex
	rng     model.DateRange
}

func newRangePanel[T any](name, what string, o options, fetch func(context.Context, model.DateRange) (T, error)) *RangePanel[T] {
	return &RangePanel[T]{Panel: newPanel[T](name, o), what: what, fetch: fetch}
}

func (p *RangePanel[T]) Range() model.DateRange {
	p.paramMu.Lock()
	defer p.paramMu.Unlock()
	return p.rng
}

// Submit validates r before any network call, then fetches it.
func (p *RangePanel[T]) Submit(ctx context.Context, r model.DateRange) error {
	if err := ValidateRange(r, p.opts.now()); err != nil {
		return err
	}
	p.paramMu.Lock()
	p.rng = r
	p.paramMu.Unlock()
	return p.load(ctx, r)
}

// Load fetches the current range.
func (p *RangePanel[T]) Load(ctx context.Context) error {
	return p.load(ctx, p.Range())
}

func (p *RangePanel[T]) load(ctx context.Context, r model.DateRange) error {
	return p.run(ctx, "could not load "+p.what, func(ctx context.Context) (T, error) {
		return p.fetch(ctx, r)
	})
}

type HistoricalSource interface {
	HistoricalFires(ctx context.Context, r model.DateRange) (model.HistoricalSeries, error)
}

type VegetationSource interface {
	VegetationIndex(ctx context.Context, r model.DateRange) (model.VegetationSeries, error)
}

type (
	Historical = RangePanel[model.HistoricalSeries]
	Vegetation = RangePanel[model.VegetationSeries]
)

func NewHistorical(src HistoricalSource, opts ...Option) *Historical {
	return newRangePanel("historical", "historical fire statistics", buildOptions(opts), src.HistoricalFires)
}

func NewVegetation(src VegetationSource, opts ...Option) *Vegetation {
	return newRangePanel("vegetation", "vegetation index", buildOptions(opts), src.VegetationIndex)
}
