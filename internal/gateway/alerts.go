package gateway

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/guardian-ibera/firewatch/internal/model"
)

// ActiveAlerts fetches alerts raised within the last hours hours. Zero leaves
// the lookback to the server.
func (c *Client) ActiveAlerts(ctx context.Context, hours int) (model.AlertList, error) {
	slog.Info("fetching active alerts", "hours", hours)

	q := url.Values{}
	if hours > 0 {
		q.Set("hours", strconv.Itoa(hours))
	}

	var alerts model.AlertList
	if err := c.get(ctx, "active alerts", "/alerts", q, &alerts); err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = model.AlertList{}
	}
	for _, a := range alerts {
		if !a.Severity.Valid() {
			return nil, shapeError("active alerts", "valid severity for alert "+strconv.Itoa(a.ID))
		}
	}
	return alerts, nil
}
