package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/snowrecorder/internal/geo"
	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/internal/storage"
	"github.com/chrissnell/snowrecorder/internal/types"
	"github.com/chrissnell/snowrecorder/pkg/config"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

type fakeSessions struct {
	sessions map[string]*session.Session
	slopes   *slope.Index
}

func (f *fakeSessions) List() []session.Snapshot {
	var out []session.Snapshot
	for _, s := range f.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

func (f *fakeSessions) Get(id string) (*session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("unknown session")
	}
	return s, nil
}

func (f *fakeSessions) Slopes() *slope.Index { return f.slopes }

type fakeHistory struct {
	runs  map[string][]types.Run
	route []types.RoutePoint
}

func (f *fakeHistory) Runs(_ context.Context, id string) ([]types.Run, error) {
	return f.runs[id], nil
}

func (f *fakeHistory) RoutePoints(context.Context, string, int) ([]types.RoutePoint, error) {
	return f.route, nil
}

func (f *fakeHistory) Summary(_ context.Context, id string) (types.SessionSummary, error) {
	if _, ok := f.runs[id]; !ok {
		return types.SessionSummary{}, errors.New("not recorded")
	}
	return types.SessionSummary{SessionID: id, RunCount: len(f.runs[id])}, nil
}

type fakeHealth []storage.RecorderHealth

func (f fakeHealth) GetAllHealth() []storage.RecorderHealth { return f }

var t0 = time.Date(2025, 1, 18, 9, 0, 0, 0, time.UTC)

func newTestController(t *testing.T, health HealthSource) *Controller {
	t.Helper()
	live := session.New("live", session.DefaultParams(), nil, nil)
	if err := live.Start(t0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { live.Stop(t0.Add(time.Minute)) })

	top := geo.Point(37.58, 128.56)
	idx := slope.NewIndex([]slope.Slope{{
		Name:       "APOLLO",
		Difficulty: slope.DifficultyAdvanced,
		Boundary:   orb.Ring{geo.Point(37.58, 128.56), geo.Point(37.58, 128.57), geo.Point(37.57, 128.57), geo.Point(37.57, 128.56), geo.Point(37.58, 128.56)},
		Top:        &top,
	}})

	history := &fakeHistory{
		runs: map[string][]types.Run{
			"archived": {{Number: 1, Slope: "APOLLO", Start: t0, End: t0.Add(2 * time.Minute), Duration: 2 * time.Minute}},
		},
		route: []types.RoutePoint{{Lat: 37.58, Lon: 128.56, Timestamp: t0, State: types.Riding}},
	}

	var wg sync.WaitGroup
	c, err := NewController(context.Background(), &wg, config.RESTServerData{},
		&fakeSessions{sessions: map[string]*session.Session{"live": live}, slopes: idx},
		history, health, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func get(t *testing.T, c *Controller, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	c := newTestController(t, nil)

	tests := []struct {
		url    string
		status int
	}{
		{"/api/sessions", http.StatusOK},
		{"/api/sessions/live", http.StatusOK},
		{"/api/sessions/live/runs", http.StatusOK},
		{"/api/sessions/live/runs/1", http.StatusNotFound},
		{"/api/sessions/live/summary", http.StatusOK},
		{"/api/sessions/live/route", http.StatusOK},
		{"/api/sessions/archived", http.StatusNotFound},
		{"/api/sessions/archived/runs", http.StatusOK},
		{"/api/sessions/archived/runs/1", http.StatusOK},
		{"/api/sessions/archived/runs/2", http.StatusNotFound},
		{"/api/sessions/archived/summary", http.StatusOK},
		{"/api/sessions/nobody/runs", http.StatusNotFound},
		{"/api/sessions/nobody/summary", http.StatusNotFound},
		{"/api/slopes", http.StatusOK},
		{"/api/slopes.geojson", http.StatusOK},
		{"/api/health", http.StatusOK},
		{"/api/sessions/live/runs/x", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if rec := get(t, c, tt.url); rec.Code != tt.status {
				t.Errorf("GET %s = %d, want %d (%s)", tt.url, rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestSessionSnapshotCollapsesPending(t *testing.T) {
	c := newTestController(t, nil)
	rec := get(t, c, "/api/sessions/live")

	var snap map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap["state"] != "resting" || snap["accuracy_hint"] != "coarse" {
		t.Errorf("snapshot = %v", snap)
	}
	if snap["session_id"] != "live" || snap["started"] != true {
		t.Errorf("snapshot = %v", snap)
	}
}

func TestArchivedRunDetail(t *testing.T) {
	c := newTestController(t, nil)
	rec := get(t, c, "/api/sessions/archived/runs/1")

	var got RunDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Run.Slope != "APOLLO" || len(got.Route) != 1 {
		t.Errorf("run detail = %+v", got)
	}
}

func TestSlopesListing(t *testing.T) {
	c := newTestController(t, nil)
	rec := get(t, c, "/api/slopes")

	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0]["name"] != "APOLLO" || got[0]["difficulty"] != "advanced" {
		t.Errorf("slopes = %v", got)
	}
	if rec := get(t, c, "/api/slopes?format=msgpack"); rec.Header().Get("Content-Type") != "application/x-msgpack" {
		t.Errorf("msgpack not honoured: %q", rec.Header().Get("Content-Type"))
	}
}

func TestHealthReportsUnhealthyRecorder(t *testing.T) {
	health := fakeHealth{
		{Recorder: "sqlite", HealthData: storage.HealthData{Status: storage.StatusHealthy}},
		{Recorder: "timescaledb", HealthData: storage.HealthData{Status: storage.StatusUnhealthy, Error: "connection refused"}},
	}
	c := newTestController(t, health)
	rec := get(t, c, "/api/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var got HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Healthy {
		t.Error("expected unhealthy")
	}
	names := []string{got.Recorders[0].Recorder, got.Recorders[1].Recorder}
	if diff := cmp.Diff([]string{"sqlite", "timescaledb"}, names); diff != "" {
		t.Errorf("recorders (-want +got):\n%s", diff)
	}
}

func TestRouteWithin(t *testing.T) {
	run := types.Run{Start: t0.Add(10 * time.Second), End: t0.Add(20 * time.Second)}
	route := []types.RoutePoint{
		{Timestamp: t0},
		{Timestamp: t0.Add(10 * time.Second)},
		{Timestamp: t0.Add(15 * time.Second)},
		{Timestamp: t0.Add(20 * time.Second)},
		{Timestamp: t0.Add(25 * time.Second)},
	}
	if got := routeWithin(route, run); len(got) != 3 {
		t.Errorf("routeWithin kept %d points, want 3", len(got))
	}
}
