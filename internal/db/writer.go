package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onurdenizs/sub-net/internal/geometry"
	"github.com/onurdenizs/sub-net/internal/pipeline"
)

// createdAtLayout is fixed width so created_at_utc sorts lexically
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// SaveRun stores a finished run and returns its ID. The run, its stitched
// segments, stations and entry nodes are written in a single transaction.
func (db *DB) SaveRun(ctx context.Context, res *pipeline.Result, inputChecksum, generatorVersion string) (string, error) {
	return db.saveRun(ctx, res, inputChecksum, generatorVersion, time.Now())
}

func (db *DB) saveRun(ctx context.Context, res *pipeline.Result, inputChecksum, generatorVersion string, now time.Time) (string, error) {
	runID := uuid.New().String()

	report, err := json.Marshal(res.Report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	r := res.Report
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_at_utc, input_checksum, generator_version, threshold_m,
			segments_in, segments_out, merges, dropped, stations, entry_nodes, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, now.UTC().Format(createdAtLayout), inputChecksum, generatorVersion, r.Threshold,
		r.SegmentsIn, r.SegmentsOut, r.Merges, r.Dropped, r.Stations, r.EntryNodes, string(report),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	segStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stitched_segments (
			run_id, line_id, seq, start_station, end_station,
			km_start, km_end, length_m, point_count, geometry
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare segment statement: %w", err)
	}
	defer segStmt.Close()

	segCount := 0
	for _, l := range res.Lines {
		for seq, s := range l.Segments {
			shape, err := geometry.Encode(s.Geometry)
			if err != nil {
				return "", fmt.Errorf("line %d %s-%s: %w", s.LineID, s.StartStation, s.EndStation, err)
			}
			if _, err := segStmt.ExecContext(ctx,
				runID, l.LineID, seq, s.StartStation, s.EndStation,
				s.KMStart, s.KMEnd, s.Length, s.PointCount, shape,
			); err != nil {
				return "", fmt.Errorf("failed to insert segment: %w", err)
			}
			segCount++
		}
	}

	counts := make(map[string]int, len(res.Platforms))
	for _, p := range res.Platforms {
		counts[p.Station] = p.Count
	}

	stationStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations (
			run_id, code, station_type, platform_length_m, platform_count,
			west_json, east_json, centre_x, centre_y
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare station statement: %w", err)
	}
	defer stationStmt.Close()

	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entry_nodes (run_id, station, direction, x, y) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare entry node statement: %w", err)
	}
	defer entryStmt.Close()

	for _, st := range res.Network.Stations {
		west, err := encodeCodes(st.Connections.West)
		if err != nil {
			return "", err
		}
		east, err := encodeCodes(st.Connections.East)
		if err != nil {
			return "", err
		}

		var cx, cy *float64
		if st.Centre != nil {
			cx, cy = &st.Centre[0], &st.Centre[1]
		}

		if _, err := stationStmt.ExecContext(ctx,
			runID, st.Code, string(st.Type), st.PlatformLength, counts[st.Code],
			west, east, cx, cy,
		); err != nil {
			return "", fmt.Errorf("failed to insert station %s: %w", st.Code, err)
		}

		for _, dir := range geometry.Directions {
			p := st.EntryNodes.Get(dir)
			if p == nil {
				continue
			}
			if _, err := entryStmt.ExecContext(ctx, runID, st.Code, string(dir), p[0], p[1]); err != nil {
				return "", fmt.Errorf("failed to insert entry node %s %s: %w", st.Code, dir, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	db.log.Infow("run saved", "run_id", runID, "segments", segCount, "stations", len(res.Network.Stations))
	return runID, nil
}

func encodeCodes(codes []string) (string, error) {
	if codes == nil {
		codes = []string{}
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return "", fmt.Errorf("failed to encode connections: %w", err)
	}
	return string(b), nil
}
