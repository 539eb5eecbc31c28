package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guardian-ibera/firewatch/internal/config"
	"github.com/guardian-ibera/firewatch/internal/credential"
	"github.com/guardian-ibera/firewatch/internal/dashboard"
	"github.com/guardian-ibera/firewatch/internal/gateway"
	"github.com/guardian-ibera/firewatch/internal/model"
	"github.com/guardian-ibera/firewatch/internal/report"
	"github.com/guardian-ibera/firewatch/internal/session"
	"github.com/guardian-ibera/firewatch/internal/store"
)

// fakeAPI stands in for the remote service behind every component.
type fakeAPI struct {
	mu         sync.Mutex
	fetches    int
	reports    []model.ReportInput
	registered []model.Registration
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (model.Token, error) {
	if password != "secret" {
		return model.Token{}, &gateway.Error{Kind: gateway.KindUnauthorized, Status: 401}
	}
	return model.Token{AccessToken: "tok", TokenType: "bearer"}, nil
}

func (f *fakeAPI) CurrentUser(context.Context) (model.User, error) {
	return model.User{ID: 1, Email: "ana@example.org", Role: "citizen", IsActive: true}, nil
}

func (f *fakeAPI) Register(_ context.Context, reg model.Registration) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, reg)
	return model.User{ID: 2, Email: reg.Email, FullName: reg.FullName, Role: "citizen", IsActive: true}, nil
}

func (f *fakeAPI) fetched() {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeAPI) ActiveFires(_ context.Context, days int) (model.DetectionFeed, error) {
	f.fetched()
	return model.DetectionFeed{Days: days, Total: 3}, nil
}

func (f *fakeAPI) ActiveAlerts(context.Context, int) (model.AlertList, error) {
	f.fetched()
	return model.AlertList{}, nil
}

func (f *fakeAPI) HistoricalFires(context.Context, model.DateRange) (model.HistoricalSeries, error) {
	f.fetched()
	return model.HistoricalSeries{}, nil
}

func (f *fakeAPI) VegetationIndex(context.Context, model.DateRange) (model.VegetationSeries, error) {
	f.fetched()
	return model.VegetationSeries{}, nil
}

func (f *fakeAPI) CreateReport(_ context.Context, in model.ReportInput) (model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, in)
	return model.Report{ID: 100 + len(f.reports), Latitude: in.Latitude, Longitude: in.Longitude, Status: "pending"}, nil
}

type fixture struct {
	api  *fakeAPI
	sess *session.Store
	hub  *Hub
	ts   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:5173"}}
	api := &fakeAPI{}
	sess := session.New(api, store.NewMemory(""), credential.New())
	dash := dashboard.New(api)
	flow := report.New(api)
	hub := NewHub(cfg.AllowedOrigins, func() any { return sess.Snapshot() })

	ts := httptest.NewServer(New(cfg, sess, api, dash, flow, hub).Router())
	t.Cleanup(ts.Close)
	return &fixture{api: api, sess: sess, hub: hub, ts: ts}
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.send(t, req)
}

func (f *fixture) send(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := noRedirect().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	if err := f.sess.Verify(context.Background()); err != nil {
		t.Fatal(err)
	}
	resp := f.do(t, http.MethodPost, "/login", loginRequest{Email: "ana@example.org", Password: "secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
}

func TestProtectedWaitsWhileInitializing(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/dashboard", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if f.api.fetchCount() != 0 {
		t.Errorf("panels fetched before session resolved")
	}
}

func TestProtectedRedirectsWhenSignedOut(t *testing.T) {
	f := newFixture(t)
	f.sess.Verify(context.Background())

	for _, path := range []string{"/dashboard", "/report"} {
		resp := f.do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != LoginPath {
			t.Errorf("%s: status = %d location = %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newFixture(t)
	f.sess.Verify(context.Background())
	resp := f.do(t, http.MethodPost, "/login", loginRequest{Email: "ana@example.org", Password: "nope"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if f.sess.Snapshot().State != session.Unauthenticated {
		t.Errorf("state = %v", f.sess.Snapshot().State)
	}
}

func TestDashboardAfterLogin(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	resp := f.do(t, http.MethodGet, "/dashboard", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var snap struct {
		Days  int `json:"days"`
		Fires struct {
			Status string              `json:"status"`
			Data   model.DetectionFeed `json:"data"`
		} `json:"fires"`
	}
	decode(t, resp, &snap)
	if snap.Fires.Status != "success" || snap.Fires.Data.Total != 3 {
		t.Errorf("fires = %+v", snap.Fires)
	}
	if f.api.fetchCount() != 4 {
		t.Errorf("fetches = %d, want 4", f.api.fetchCount())
	}

	// A second visit reuses the mounted panels.
	f.do(t, http.MethodGet, "/dashboard", nil)
	if f.api.fetchCount() != 4 {
		t.Errorf("fetches after revisit = %d", f.api.fetchCount())
	}
}

func TestPanelParameterValidation(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	tests := []struct {
		path string
		body any
		want int
	}{
		{"/dashboard/fires", map[string]int{"days": 8}, http.StatusBadRequest},
		{"/dashboard/fires", map[string]int{"days": 7}, http.StatusOK},
		{"/dashboard/alerts", map[string]int{"hours": -2}, http.StatusBadRequest},
		{"/dashboard/historical", rangeRequest{StartDate: "2024-05-10", EndDate: "2024-05-01"}, http.StatusBadRequest},
		{"/dashboard/vegetation", rangeRequest{StartDate: "2024-05-01", EndDate: "2024-05-10"}, http.StatusOK},
		{"/dashboard/vegetation", rangeRequest{StartDate: "01/05/2024"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp := f.do(t, http.MethodPost, tt.path, tt.body)
		if resp.StatusCode != tt.want {
			t.Errorf("POST %s %v: status = %d, want %d", tt.path, tt.body, resp.StatusCode, tt.want)
		}
	}
}

func TestReportRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.do(t, http.MethodPost, "/report/point", model.Coordinate{Lat: -27.4, Lon: -58.8})
	f.do(t, http.MethodPost, "/report/description", map[string]string{"description": "smoke visible"})
	resp := f.do(t, http.MethodPost, "/report/submit", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st report.State
	decode(t, resp, &st)
	if st.ReportID != 101 || st.Coordinate != nil || st.Description != "" {
		t.Errorf("state = %+v", st)
	}
	if len(f.api.reports) != 1 || *f.api.reports[0].Description != "smoke visible" {
		t.Errorf("sent %+v", f.api.reports)
	}
}

func TestReportOutOfRange(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.do(t, http.MethodPost, "/report/point", model.Coordinate{Lat: 95, Lon: -58.8})
	resp := f.do(t, http.MethodPost, "/report/submit", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st report.State
	decode(t, resp, &st)
	if st.Coordinate == nil || st.Coordinate.Lat != 95 {
		t.Errorf("coordinate not preserved: %+v", st)
	}
	if len(f.api.reports) != 0 {
		t.Errorf("report sent")
	}
}

func TestLogoutLocksProtectedRoutes(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	resp := f.do(t, http.MethodPost, "/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodGet, "/report", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status after logout = %d", resp.StatusCode)
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/register", model.Registration{Email: "new@example.org", Password: "pw", FullName: "Nuevo"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var u model.User
	decode(t, resp, &u)
	if u.Email != "new@example.org" || len(f.api.registered) != 1 {
		t.Errorf("user = %+v", u)
	}

	resp = f.do(t, http.MethodPost, "/register", model.Registration{Email: "x@example.org"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing password status = %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest(http.MethodOptions, f.ts.URL+"/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("allow methods = %q", resp.Header.Get("Access-Control-Allow-Methods"))
	}
}

func TestWebSocketReceivesUpdates(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var welcome Message
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != "welcome" {
		t.Errorf("first message = %+v", welcome)
	}

	f.hub.Publish("panel", "fires", map[string]string{"status": "loading"})
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if msg.Type != "panel" || msg.Name != "fires" {
		t.Errorf("update = %+v", msg)
	}
}

func TestWebSocketRequiresSession(t *testing.T) {
	f := newFixture(t)
	f.sess.Verify(context.Background())

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded without a session")
	}
	if resp == nil || resp.StatusCode != http.StatusSeeOther {
		t.Errorf("handshake response = %v", resp)
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://firewatch.example.org"}
	tests := []struct {
		origin string
		want   bool
	}{
		{"https://firewatch.example.org", true},
		{"http://localhost:5173", true},
		{"http://localhost", true},
		{"http://127.0.0.1:8080", true},
		{"http://localhost.evil.example", false},
		{"http://localhost.evil.example:5173", false},
		{"http://127.0.0.1.evil.example", false},
		{"https://localhost:5173", false},
		{"http://evil@localhost:5173", false},
		{"https://evil.example", false},
		{"null", false},
	}
	for _, tt := range tests {
		if got := originAllowed(allowed, tt.origin); got != tt.want {
			t.Errorf("originAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestForeignOriginCannotMutate(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.do(t, http.MethodPost, "/report/point", model.Coordinate{Lat: -27.4, Lon: -58.8})

	for _, origin := range []string{"https://evil.example", "http://localhost.evil.example"} {
		req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/report/submit", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", origin)
		resp := f.send(t, req)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("origin %s: status = %d", origin, resp.StatusCode)
		}
		if resp.Header.Get("Access-Control-Allow-Origin") != "" || resp.Header.Get("Access-Control-Allow-Credentials") != "" {
			t.Errorf("origin %s granted CORS headers", origin)
		}
	}
	if len(f.api.reports) != 0 {
		t.Errorf("reports sent = %d", len(f.api.reports))
	}
}

func TestMutationRequiresJSON(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.do(t, http.MethodPost, "/report/point", model.Coordinate{Lat: -27.4, Lon: -58.8})

	for _, ct := range []string{"text/plain", "application/x-www-form-urlencoded", ""} {
		req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/report/submit", strings.NewReader("{}"))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		resp := f.send(t, req)
		if resp.StatusCode != http.StatusUnsupportedMediaType {
			t.Errorf("Content-Type %q: status = %d", ct, resp.StatusCode)
		}
	}
	if len(f.api.reports) != 0 {
		t.Errorf("reports sent = %d", len(f.api.reports))
	}

	req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/report/submit", nil)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Origin", "http://localhost:5173")
	if resp := f.send(t, req); resp.StatusCode != http.StatusCreated {
		t.Errorf("allowed origin with JSON: status = %d", resp.StatusCode)
	}
}

func TestPreflightLookalikeOrigin(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest(http.MethodOptions, f.ts.URL+"/report/submit", nil)
	req.Header.Set("Origin", "http://localhost.evil.example")
	resp := f.send(t, req)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("allow credentials = %q", got)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://localhost.evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("dial from a foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake response = %v", resp)
	}
	if f.hub.Clients() != 0 {
		t.Errorf("clients = %d", f.hub.Clients())
	}
}
