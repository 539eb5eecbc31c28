// Package dashboard groups the data panels shown once a user is signed in.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/guardian-ibera/firewatch/internal/model"
	"github.com/guardian-ibera/firewatch/internal/panel"
)

// Source is everything the dashboard fetches from. *gateway.Client satisfies it.
type Source interface {
	panel.FiresSource
	panel.AlertsSource
	panel.HistoricalSource
	panel.VegetationSource
}

// Dashboard owns one instance of each panel. The panels are independent:
// one failing never affects the others.
type Dashboard struct {
	Fires      *panel.Detections
	Alerts     *panel.Alerts
	Historical *panel.Historical
	Vegetation *panel.Vegetation
}

func New(src Source, opts ...panel.Option) *Dashboard {
	return &Dashboard{
		Fires:      panel.NewDetections(src, opts...),
		Alerts:     panel.NewAlerts(src, opts...),
		Historical: panel.NewHistorical(src, opts...),
		Vegetation: panel.NewVegetation(src, opts...),
	}
}

// Mount loads every panel concurrently with its current parameters. It waits
// for all of them and returns the joined per-panel failures, if any.
func (d *Dashboard) Mount(ctx context.Context) error {
	slog.Info("dashboard mount starting")

	var firesErr, alertsErr, histErr, vegErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		firesErr = d.Fires.Load(gctx)
		return nil // don't fail the group
	})
	g.Go(func() error {
		alertsErr = d.Alerts.Load(gctx)
		return nil
	})
	g.Go(func() error {
		histErr = d.Historical.Load(gctx)
		return nil
	})
	g.Go(func() error {
		vegErr = d.Vegetation.Load(gctx)
		return nil
	})
	_ = g.Wait()

	var errs []error
	for _, r := range []struct {
		name string
		err  error
	}{
		{d.Fires.Name(), firesErr},
		{d.Alerts.Name(), alertsErr},
		{d.Historical.Name(), histErr},
		{d.Vegetation.Name(), vegErr},
	} {
		if r.err == nil || errors.Is(r.err, panel.ErrSuperseded) {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
	}

	slog.Info("dashboard mount complete", "failed", len(errs))
	return errors.Join(errs...)
}

// Mounted reports whether any panel has left Idle since the last reset.
func (d *Dashboard) Mounted() bool {
	return d.Fires.State().Status != panel.Idle ||
		d.Alerts.State().Status != panel.Idle ||
		d.Historical.State().Status != panel.Idle ||
		d.Vegetation.State().Status != panel.Idle
}

// Reset returns every panel to Idle, discarding in-flight responses.
func (d *Dashboard) Reset() {
	d.Fires.Reset()
	d.Alerts.Reset()
	d.Historical.Reset()
	d.Vegetation.Reset()
}

type Snapshot struct {
	Days       int                                 `json:"days"`
	Hours      int                                 `json:"hours"`
	Fires      panel.State[model.DetectionFeed]    `json:"fires"`
	Alerts     panel.State[model.AlertList]        `json:"alerts"`
	Historical panel.State[model.HistoricalSeries] `json:"historical"`
	Vegetation panel.State[model.VegetationSeries] `json:"vegetation"`
}

func (d *Dashboard) Snapshot() Snapshot {
	return Snapshot{
		Days:       d.Fires.Days(),
		Hours:      d.Alerts.Hours(),
		Fires:      d.Fires.State(),
		Alerts:     d.Alerts.State(),
		Historical: d.Historical.State(),
		Vegetation: d.Vegetation.State(),
	}
}
