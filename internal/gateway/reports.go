package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/guardian-ibera/firewatch/internal/model"
)

// CreateReport submits a geolocated incident report. It needs an attached
// credential; without one the server answers Unauthorized.
func (c *Client) CreateReport(ctx context.Context, in model.ReportInput) (model.Report, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return model.Report{}, &Error{Kind: KindUnknown, Op: "create report", Err: err}
	}

	var rep model.Report
	err = c.do(ctx, request{
		op:          "create report",
		method:      http.MethodPost,
		path:        "/reports",
		body:        bytes.NewReader(payload),
		contentType: "application/json",
	}, &rep)
	if err != nil {
		return model.Report{}, err
	}
	if rep.ID == 0 {
		return model.Report{}, shapeError("create report", "id")
	}

	slog.Info("report created", "id", rep.ID, "status", rep.Status)
	return rep, nil
}
