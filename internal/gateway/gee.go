package gateway

import (
	"context"
	"log/slog"
	"net/url"
	"sort"

	"github.com/guardian-ibera/firewatch/internal/model"
)

func rangeQuery(r model.DateRange) url.Values {
	q := url.Values{}
	if s := r.StartParam(); s != "" {
		q.Set("start_date", s)
	}
	if e := r.EndParam(); e != "" {
		q.Set("end_date", e)
	}
	return q
}

// HistoricalFires fetches the daily fire-pixel counts and their summary.
func (c *Client) HistoricalFires(ctx context.Context, r model.DateRange) (model.HistoricalSeries, error) {
	slog.Info("fetching historical fires", "start", r.StartParam(), "end", r.EndParam())

	var wire struct {
		Summary     *model.HistoricalSummary `json:"summary"`
		DailyPoints []model.DailyCount       `json:"daily_data"`
	}
	if err := c.get(ctx, "historical fires", "/gee/historical-fires", rangeQuery(r), &wire); err != nil {
		return model.HistoricalSeries{}, err
	}
	if wire.Summary == nil {
		return model.HistoricalSeries{}, shapeError("historical fires", "summary")
	}

	daily := wire.DailyPoints
	if daily == nil {
		daily = []model.DailyCount{}
	}
	// ISO dates sort chronologically as strings.
	sort.SliceStable(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	return model.HistoricalSeries{Summary: *wire.Summary, DailyPoints: daily}, nil
}

// VegetationIndex fetches the regional mean NDVI series.
func (c *Client) VegetationIndex(ctx context.Context, r model.DateRange) (model.VegetationSeries, error) {
	slog.Info("fetching vegetation index", "start", r.StartParam(), "end", r.EndParam())

	var series model.VegetationSeries
	if err := c.get(ctx, "vegetation index", "/gee/ndvi-stats", rangeQuery(r), &series); err != nil {
		return nil, err
	}
	if series == nil {
		series = model.VegetationSeries{}
	}
	for _, p := range series {
		if p.Date == "" {
			return nil, shapeError("vegetation index", "date")
		}
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series, nil
}
