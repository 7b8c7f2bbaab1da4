package db

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/onurdenizs/sub-net/internal/network"
	"github.com/onurdenizs/sub-net/internal/pipeline"
	"github.com/onurdenizs/sub-net/internal/platform"
	"github.com/onurdenizs/sub-net/internal/segment"
	"github.com/onurdenizs/sub-net/internal/stitch"
)

var nop = zap.NewNop().Sugar()

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Connect(filepath.Join(t.TempDir(), "runs.db"), nop)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return database
}

func testResult(t *testing.T) *pipeline.Result {
	t.Helper()

	line := make(orb.LineString, 11)
	for i := range line {
		line[i] = orb.Point{float64(i) * 100, 0}
	}
	in := &pipeline.Inputs{
		Lines: []segment.Line{
			{ID: 450, Segments: []segment.Segment{segment.New(450, "ZUE", "ZOER", 0, 1, line)}},
			{ID: 720, Segments: []segment.Segment{segment.New(720, "ZOER", "WS", 0, 0.1, orb.LineString{{1000, 0}, {1000, 100}})}},
		},
		Edges: []platform.Edge{{Station: "ZUE", Platform: "1", Length: 400}},
	}
	params := pipeline.Params{
		Stitch:   stitch.Options{Threshold: 50, Protected: segment.NewStationSet("ZUE"), Workers: 1},
		Entry:    network.EntryOptions{Buffer: 150},
		Platform: platform.Policy{MinLength: 200, MaxLength: 500, DefaultLength: 350, MinCount: 2, MaxCount: 20, DefaultCount: 5, Method: platform.MethodMax},
	}

	res, err := pipeline.Process(context.Background(), params, in, nop)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return res
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	database := openTestDB(t)
	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	if _, err := database.LatestRun(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestRun on empty store = %v, want ErrNotFound", err)
	}

	res := testResult(t)
	runID, err := database.SaveRun(ctx, res, "abc123", "1")
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	run, err := database.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.RunID != runID || run.InputChecksum != "abc123" || run.SegmentsOut != 2 || run.Stations != 3 {
		t.Errorf("run = %+v", run)
	}
	var report pipeline.Report
	if err := json.Unmarshal(run.Report, &report); err != nil {
		t.Fatalf("decoding stored report: %v", err)
	}
	if report.EntryNodes != res.Report.EntryNodes {
		t.Errorf("stored report entry nodes = %d, want %d", report.EntryNodes, res.Report.EntryNodes)
	}

	t.Run("segments", func(t *testing.T) {
		all, err := database.Segments(ctx, runID, 0)
		if err != nil {
			t.Fatalf("Segments: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("got %d segments, want 2", len(all))
		}

		only, err := database.Segments(ctx, runID, 720)
		if err != nil {
			t.Fatalf("Segments: %v", err)
		}
		if len(only) != 1 || only[0].StartStation != "ZOER" || only[0].Length != 100 {
			t.Errorf("line 720 segments = %+v", only)
		}
		var g struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(only[0].Geometry, &g); err != nil || g.Type != "LineString" {
			t.Errorf("geometry = %s (%v)", only[0].Geometry, err)
		}
	})

	t.Run("stations", func(t *testing.T) {
		stations, err := database.Stations(ctx, runID)
		if err != nil {
			t.Fatalf("Stations: %v", err)
		}
		var codes []string
		for _, st := range stations {
			codes = append(codes, st.Code)
		}
		if diff := cmp.Diff([]string{"WS", "ZOER", "ZUE"}, codes); diff != "" {
			t.Errorf("station codes mismatch (-want +got):\n%s", diff)
		}

		zue, err := database.Station(ctx, runID, "ZUE")
		if err != nil {
			t.Fatalf("Station: %v", err)
		}
		want := &StationRow{
			Code:           "ZUE",
			Type:           string(network.SingleDirection),
			PlatformLength: 400,
			PlatformCount:  2,
			West:           []string{},
			East:           []string{"ZOER"},
			Centre:         &[2]float64{0, 0},
		}
		if diff := cmp.Diff(want, zue); diff != "" {
			t.Errorf("station mismatch (-want +got):\n%s", diff)
		}

		if _, err := database.Station(ctx, runID, "NOPE"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Station(NOPE) = %v, want ErrNotFound", err)
		}
	})

	t.Run("entry nodes", func(t *testing.T) {
		nodes, err := database.EntryNodes(ctx, runID)
		if err != nil {
			t.Fatalf("EntryNodes: %v", err)
		}
		// ZUE: 400 m platform, offset 350 m, 3 steps of 100 m
		found := false
		for _, n := range nodes {
			if n.Station == "ZUE" {
				found = true
				if n.Direction != "East" || n.X != 300 || n.Y != 0 {
					t.Errorf("ZUE entry node = %+v", n)
				}
			}
		}
		if !found {
			t.Errorf("no entry node for ZUE in %+v", nodes)
		}
	})
}

func TestPruneRuns(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	res := testResult(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 4; i++ {
		id, err := database.saveRun(ctx, res, "abc123", "1", base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("saveRun %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	deleted, err := database.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d runs, want 2", deleted)
	}

	latest, err := database.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest.RunID != ids[3] {
		t.Errorf("latest run = %s, want %s", latest.RunID, ids[3])
	}

	for _, id := range ids[:2] {
		segs, err := database.Segments(ctx, id, 0)
		if err != nil {
			t.Fatalf("Segments: %v", err)
		}
		if len(segs) != 0 {
			t.Errorf("pruned run %s still has %d segments", id, len(segs))
		}
	}
	if segs, _ := database.Segments(ctx, ids[2], 0); len(segs) != 2 {
		t.Errorf("kept run %s has %d segments, want 2", ids[2], len(segs))
	}
}
