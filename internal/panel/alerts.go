package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/guardian-ibera/firewatch/internal/model"
)

var ErrNegativeLookback = errors.New("lookback hours cannot be negative")

type AlertsSource interface {
	ActiveAlerts(ctx context.Context, hours int) (model.AlertList, error)
}

// Alerts lists system alerts. A zero lookback leaves the window to the server.
type Alerts struct {
	*Panel[model.AlertList]
	src AlertsSource

	paramMu sync.Mutex
	hours   int
}

func NewAlerts(src AlertsSource, opts ...Option) *Alerts {
	return &Alerts{
		Panel: newPanel[model.AlertList]("alerts", buildOptions(opts)),
		src:   src,
	}
}

func (a *Alerts) Hours() int {
	a.paramMu.Lock()
	defer a.paramMu.Unlock()
	return a.hours
}

func (a *Alerts) SetHours(ctx context.Context, hours int) error {
	if hours < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeLookback, hours)
	}
	a.paramMu.Lock()
	a.hours = hours
	a.paramMu.Unlock()
	return a.fetch(ctx, hours)
}

func (a *Alerts) Load(ctx context.Context) error {
	return a.fetch(ctx, a.Hours())
}

func (a *Alerts) fetch(ctx context.Context, hours int) error {
	return a.run(ctx, "could not load alerts", func(ctx context.Context) (model.AlertList, error) {
		return a.src.ActiveAlerts(ctx, hours)
	})
}
