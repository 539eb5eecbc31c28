package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/guardian-ibera/firewatch/internal/config"
	"github.com/guardian-ibera/firewatch/internal/credential"
)

const maxBodyBytes = 8 << 20

// Client is the sole component that talks to the remote monitoring API.
// Every operation is a single request/response exchange; retries are the
// caller's business.
type Client struct {
	client  *http.Client
	baseURL string
	cred    *credential.Credential
}

func New(cfg *config.Config, cred *credential.Credential) *Client {
	return &Client{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: cfg.APIBaseURL,
		cred:    cred,
	}
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, request{op: op, method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return &Error{Kind: KindUnknown, Op: r.op, Err: fmt.Errorf("build request: %w", err)}
	}

	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	// Read the credential now, not when the client was built, so a request
	// issued after logout never carries the old token.
	token, gen := c.cred.Current()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		slog.Warn("request failed", "op", r.op, "request_id", reqID, "error", err)
		return &Error{Kind: KindNetwork, Op: r.op, Generation: gen, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		slog.Warn("read body failed", "op", r.op, "request_id", reqID, "error", err)
		return &Error{Kind: KindNetwork, Op: r.op, Status: resp.StatusCode, Generation: gen, Err: err}
	}

	slog.Debug("request complete", "op", r.op, "request_id", reqID,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := classify(r.op, resp.StatusCode, body)
		e.Generation = gen
		if e.Kind == KindUnknown {
			slog.Error("unexpected status", "op", r.op, "request_id", reqID, "status", resp.StatusCode)
		}
		return e
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		slog.Error("unexpected response shape", "op", r.op, "request_id", reqID, "error", err)
		return &Error{Kind: KindUnknown, Op: r.op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// shapeError reports a 2xx body that decoded but lacks required fields.
func shapeError(op, what string) *Error {
	slog.Error("unexpected response shape", "op", op, "missing", what)
	return &Error{Kind: KindUnknown, Op: op, Err: fmt.Errorf("response missing %s", what)}
}
