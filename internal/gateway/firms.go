package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/guardian-ibera/firewatch/internal/model"
)

// wireFire is one detection as the feed serves it. Brightness arrives as
// bright_ti4 (VIIRS) or brightness (MODIS); confidence as a letter or a
// percentage.
type wireFire struct {
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`
	BrightTI4   *float64        `json:"bright_ti4"`
	Brightness  *float64        `json:"brightness"`
	FRP         *float64        `json:"frp"`
	Confidence  json.RawMessage `json:"confidence"`
	Satellite   string          `json:"satellite"`
	AcqDatetime string          `json:"acq_datetime"`
	AcqDate     string          `json:"acq_date"`
	AcqTime     string          `json:"acq_time"`
}

type wireFeed struct {
	Summary *struct {
		TotalFires *int `json:"total_fires"`
	} `json:"summary"`
	Fires []wireFire `json:"fires"`
}

// ActiveFires fetches the live-detection feed for the last days days.
func (c *Client) ActiveFires(ctx context.Context, days int) (model.DetectionFeed, error) {
	slog.Info("fetching active fires", "days", days)

	q := url.Values{}
	q.Set("days", strconv.Itoa(days))

	var raw json.RawMessage
	if err := c.get(ctx, "active fires", "/firms", q, &raw); err != nil {
		return model.DetectionFeed{}, err
	}

	// The feed is served either as a bare list or wrapped with a summary.
	var feed wireFeed
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &feed.Fires); err != nil {
			return model.DetectionFeed{}, &Error{Kind: KindUnknown, Op: "active fires", Err: fmt.Errorf("decode list: %w", err)}
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		if err := json.Unmarshal(trimmed, &feed); err != nil {
			return model.DetectionFeed{}, &Error{Kind: KindUnknown, Op: "active fires", Err: fmt.Errorf("decode object: %w", err)}
		}
	default:
		return model.DetectionFeed{}, shapeError("active fires", "fires")
	}

	points := make([]model.DetectionPoint, 0, len(feed.Fires))
	for i, f := range feed.Fires {
		if f.Latitude == nil || f.Longitude == nil {
			return model.DetectionFeed{}, shapeError("active fires", fmt.Sprintf("coordinates of fire %d", i))
		}
		p := model.DetectionPoint{
			Latitude:   *f.Latitude,
			Longitude:  *f.Longitude,
			Confidence: confidenceString(f.Confidence),
			Satellite:  f.Satellite,
			AcquiredAt: acquiredAt(f),
		}
		switch {
		case f.BrightTI4 != nil:
			p.Brightness = *f.BrightTI4
		case f.Brightness != nil:
			p.Brightness = *f.Brightness
		}
		if f.FRP != nil {
			p.RadiativePower = *f.FRP
		}
		points = append(points, p)
	}

	total := len(points)
	if feed.Summary != nil && feed.Summary.TotalFires != nil {
		total = *feed.Summary.TotalFires
	}

	slog.Info("active fires result", "days", days, "total", total)
	return model.DetectionFeed{Days: days, Total: total, Points: points}, nil
}

func confidenceString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// acquiredAt parses the acquisition time; an unparsable timestamp is left
// zero rather than failing the whole feed.
func acquiredAt(f wireFire) time.Time {
	if f.AcqDatetime != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, f.AcqDatetime); err == nil {
				return t
			}
		}
	}
	if f.AcqDate != "" {
		hhmm := strings.TrimSpace(f.AcqTime)
		for len(hhmm) < 4 {
			hhmm = "0" + hhmm
		}
		if t, err := time.Parse("2006-01-02 1504", f.AcqDate+" "+hhmm); err == nil {
			return t
		}
		if t, err := time.Parse(model.DateLayout, f.AcqDate); err == nil {
			return t
		}
	}
	return time.Time{}
}
