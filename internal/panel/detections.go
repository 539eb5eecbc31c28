package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/guardian-ibera/firewatch/internal/model"
)

const (
	MinDays = 1
	MaxDays = 7
)

var ErrDaysOutOfRange = errors.New("day window must be between 1 and 7")

type FiresSource interface {
	ActiveFires(ctx context.Context, days int) (model.DetectionFeed, error)
}

// Detections shows the live heat detections for a bounded day window.
type Detections struct {
	*Panel[model.DetectionFeed]
	src FiresSource

	paramMu sync.Mutex
	days    int
}

func NewDetections(src FiresSource, opts ...Option) *Detections {
	return &Detections{
		Panel: newPanel[model.DetectionFeed]("fires", buildOptions(opts)),
		src:   src,
		days:  MinDays,
	}
}

func (d *Detections) Days() int {
	d.paramMu.Lock()
	defer d.paramMu.Unlock()
	return d.days
}

// SetDays changes the window and fetches immediately. Values outside
// [MinDays, MaxDays] are rejected and the last valid window is kept.
func (d *Detections) SetDays(ctx context.Context, days int) error {
	if days < MinDays || days > MaxDays {
		return fmt.Errorf("%w: got %d", ErrDaysOutOfRange, days)
	}
	d.paramMu.Lock()
	d.days = days
	d.paramMu.Unlock()
	return d.fetch(ctx, days)
}

// Load fetches with the current window.
func (d *Detections) Load(ctx context.Context) error {
	return d.fetch(ctx, d.Days())
}

func (d *Detections) fetch(ctx context.Context, days int) error {
	return d.run(ctx, fmt.Sprintf("could not load active fires for %d day(s)", days),
		func(ctx context.Context) (model.DetectionFeed, error) {
			return d.src.ActiveFires(ctx, days)
		})
}
