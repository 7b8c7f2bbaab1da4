package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/onurdenizs/sub-net/internal/db"
)

type fakeRepo struct {
	run      *db.Run
	segments []db.SegmentRow
	stations []db.StationRow
	nodes    []db.EntryNodeRow
	err      error

	lastLine int
}

func (f *fakeRepo) LatestRun(ctx context.Context) (*db.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.run == nil {
		return nil, db.ErrNotFound
	}
	return f.run, nil
}

func (f *fakeRepo) Segments(ctx context.Context, runID string, lineID int) ([]db.SegmentRow, error) {
	f.lastLine = lineID
	var out []db.SegmentRow
	for _, s := range f.segments {
		if lineID == 0 || s.LineID == lineID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) Stations(ctx context.Context, runID string) ([]db.StationRow, error) {
	return f.stations, nil
}

func (f *fakeRepo) Station(ctx context.Context, runID, code string) (*db.StationRow, error) {
	for _, st := range f.stations {
		if st.Code == code {
			return &st, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeRepo) EntryNodes(ctx context.Context, runID string) ([]db.EntryNodeRow, error) {
	return f.nodes, nil
}

func (f *fakeRepo) Ping(ctx context.Context) error {
	return f.err
}

func newTestRouter(repo *fakeRepo) http.Handler {
	r := chi.NewRouter()
	NewNetworkHandler(repo).Register(r)
	r.Get("/health", NewHealthHandler(repo).GetHealth)
	return r
}

func seededRepo() *fakeRepo {
	return &fakeRepo{
		run: &db.Run{RunID: "run-1", SegmentsOut: 2},
		segments: []db.SegmentRow{
			{LineID: 450, Seq: 0, StartStation: "ZUE", EndStation: "ZOER", Length: 1000, Geometry: json.RawMessage(`{"type":"LineString","coordinates":[]}`)},
			{LineID: 720, Seq: 0, StartStation: "ZOER", EndStation: "WS", Length: 100, Geometry: json.RawMessage(`{"type":"LineString","coordinates":[]}`)},
		},
		stations: []db.StationRow{
			{Code: "WS", Type: "isolated", West: []string{}, East: []string{}},
			{Code: "ZOER", Type: "single-direction", West: []string{"ZUE"}, East: []string{}},
			{Code: "ZUE", Type: "single-direction", West: []string{}, East: []string{"ZOER"}},
		},
		nodes: []db.EntryNodeRow{{Station: "ZUE", Direction: "East", X: 300, Y: 0}},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestGetSegments(t *testing.T) {
	repo := seededRepo()
	h := newTestRouter(repo)

	rec := get(t, h, "/api/segments")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	resp := decode[SegmentsResponse](t, rec)
	if resp.RunID != "run-1" || resp.Count != 2 {
		t.Errorf("response = %+v", resp)
	}

	rec = get(t, h, "/api/segments?line=720")
	resp = decode[SegmentsResponse](t, rec)
	if repo.lastLine != 720 || resp.Count != 1 || resp.Segments[0].EndStation != "WS" {
		t.Errorf("filtered response = %+v", resp)
	}

	rec = get(t, h, "/api/segments?line=abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status for bad line = %d, want 400", rec.Code)
	}
}

func TestGetStations(t *testing.T) {
	h := newTestRouter(seededRepo())

	resp := decode[StationsResponse](t, get(t, h, "/api/stations"))
	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}

	resp = decode[StationsResponse](t, get(t, h, "/api/stations?type=single-direction"))
	var codes []string
	for _, st := range resp.Stations {
		codes = append(codes, st.Code)
	}
	if diff := cmp.Diff([]string{"ZOER", "ZUE"}, codes); diff != "" {
		t.Errorf("filtered stations mismatch (-want +got):\n%s", diff)
	}
}

func TestGetStation(t *testing.T) {
	h := newTestRouter(seededRepo())

	rec := get(t, h, "/api/stations/ZUE")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	st := decode[db.StationRow](t, rec)
	if diff := cmp.Diff([]string{"ZOER"}, st.East); diff != "" {
		t.Errorf("east connections mismatch (-want +got):\n%s", diff)
	}

	rec = get(t, h, "/api/stations/NOPE")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	errResp := decode[ErrorResponse](t, rec)
	if errResp.Details["code"] != "NOPE" {
		t.Errorf("error details = %+v", errResp.Details)
	}
}

func TestGetEntryNodes(t *testing.T) {
	h := newTestRouter(seededRepo())

	resp := decode[EntryNodesResponse](t, get(t, h, "/api/entry-nodes"))
	want := []db.EntryNodeRow{{Station: "ZUE", Direction: "East", X: 300, Y: 0}}
	if diff := cmp.Diff(want, resp.EntryNodes); diff != "" {
		t.Errorf("entry nodes mismatch (-want +got):\n%s", diff)
	}
}

func TestNoRunStored(t *testing.T) {
	h := newTestRouter(&fakeRepo{})

	for _, path := range []string{"/api/runs/latest", "/api/segments", "/api/stations", "/api/stations/ZUE", "/api/entry-nodes"} {
		t.Run(path, func(t *testing.T) {
			if rec := get(t, h, path); rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
		})
	}
}

func TestRepositoryFailure(t *testing.T) {
	h := newTestRouter(&fakeRepo{err: errors.New("disk I/O error")})

	rec := get(t, h, "/api/runs/latest")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Details["internal"] != "disk I/O error" {
		t.Errorf("details = %+v", resp.Details)
	}

	if rec := get(t, h, "/health"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestRouter(seededRepo()), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]interface{}](t, rec)
	if body["database"] != "connected" {
		t.Errorf("body = %+v", body)
	}
}
