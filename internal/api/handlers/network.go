package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onurdenizs/sub-net/internal/db"
)

// NetworkRepository defines the read operations over stored runs
type NetworkRepository interface {
	LatestRun(ctx context.Context) (*db.Run, error)
	Segments(ctx context.Context, runID string, lineID int) ([]db.SegmentRow, error)
	Stations(ctx context.Context, runID string) ([]db.StationRow, error)
	Station(ctx context.Context, runID, code string) (*db.StationRow, error)
	EntryNodes(ctx context.Context, runID string) ([]db.EntryNodeRow, error)
}

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NetworkHandler serves the latest stitched sub-network
type NetworkHandler struct {
	repo NetworkRepository
}

// NewNetworkHandler creates a new handler with the given repository
func NewNetworkHandler(repo NetworkRepository) *NetworkHandler {
	return &NetworkHandler{repo: repo}
}

// Register mounts the network routes on r
func (h *NetworkHandler) Register(r chi.Router) {
	r.Get("/api/runs/latest", h.GetLatestRun)
	r.Get("/api/segments", h.GetSegments)
	r.Get("/api/stations", h.GetStations)
	r.Get("/api/stations/{code}", h.GetStation)
	r.Get("/api/entry-nodes", h.GetEntryNodes)
}

// SegmentsResponse is the JSON response for GET /api/segments
type SegmentsResponse struct {
	RunID    string          `json:"runId"`
	Segments []db.SegmentRow `json:"segments"`
	Count    int             `json:"count"`
}

// StationsResponse is the JSON response for GET /api/stations
type StationsResponse struct {
	RunID    string          `json:"runId"`
	Stations []db.StationRow `json:"stations"`
	Count    int             `json:"count"`
}

// EntryNodesResponse is the JSON response for GET /api/entry-nodes
type EntryNodesResponse struct {
	RunID      string            `json:"runId"`
	EntryNodes []db.EntryNodeRow `json:"entryNodes"`
	Count      int               `json:"count"`
}

// GetLatestRun handles GET /api/runs/latest
func (h *NetworkHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latestRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetSegments handles GET /api/segments
// Optional query parameter line restricts the result to one line id.
func (h *NetworkHandler) GetSegments(w http.ResponseWriter, r *http.Request) {
	lineID := 0
	if raw := r.URL.Query().Get("line"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "line must be a positive integer",
				Details: map[string]interface{}{"line": raw},
			})
			return
		}
		lineID = id
	}

	run, ok := h.latestRun(w, r)
	if !ok {
		return
	}

	segs, err := h.repo.Segments(r.Context(), run.RunID, lineID)
	if err != nil {
		internalError(w, "Failed to retrieve segments", err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, SegmentsResponse{RunID: run.RunID, Segments: segs, Count: len(segs)})
}

// GetStations handles GET /api/stations
// Optional query parameter type filters by station type.
func (h *NetworkHandler) GetStations(w http.ResponseWriter, r *http.Request) {
	stationType := r.URL.Query().Get("type")

	run, ok := h.latestRun(w, r)
	if !ok {
		return
	}

	stations, err := h.repo.Stations(r.Context(), run.RunID)
	if err != nil {
		internalError(w, "Failed to retrieve stations", err)
		return
	}

	if stationType != "" {
		filtered := make([]db.StationRow, 0, len(stations))
		for _, st := range stations {
			if st.Type == stationType {
				filtered = append(filtered, st)
			}
		}
		stations = filtered
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, StationsResponse{RunID: run.RunID, Stations: stations, Count: len(stations)})
}

// GetStation handles GET /api/stations/{code}
func (h *NetworkHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "code parameter is required"})
		return
	}

	run, ok := h.latestRun(w, r)
	if !ok {
		return
	}

	st, err := h.repo.Station(r.Context(), run.RunID, code)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Station not found",
			Details: map[string]interface{}{"code": code, "runId": run.RunID},
		})
		return
	}
	if err != nil {
		internalError(w, "Failed to retrieve station", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetEntryNodes handles GET /api/entry-nodes
func (h *NetworkHandler) GetEntryNodes(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latestRun(w, r)
	if !ok {
		return
	}

	nodes, err := h.repo.EntryNodes(r.Context(), run.RunID)
	if err != nil {
		internalError(w, "Failed to retrieve entry nodes", err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, EntryNodesResponse{RunID: run.RunID, EntryNodes: nodes, Count: len(nodes)})
}

// latestRun resolves the run every read is served from and writes the error
// reply itself when there is none
func (h *NetworkHandler) latestRun(w http.ResponseWriter, r *http.Request) (*db.Run, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	run, err := h.repo.LatestRun(ctx)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "No run has been stored yet"})
		return nil, false
	}
	if err != nil {
		internalError(w, "Failed to retrieve latest run", err)
		return nil, false
	}
	return run, true
}

func internalError(w http.ResponseWriter, msg string, err error) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: msg,
		Details: map[string]interface{}{
			"internal": err.Error(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
