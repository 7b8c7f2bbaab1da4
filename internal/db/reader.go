package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Run is a stored run header
type Run struct {
	RunID            string          `json:"run_id"`
	CreatedAt        string          `json:"created_at"`
	InputChecksum    string          `json:"input_checksum"`
	GeneratorVersion string          `json:"generator_version"`
	Threshold        float64         `json:"threshold"`
	SegmentsIn       int             `json:"segments_in"`
	SegmentsOut      int             `json:"segments_out"`
	Merges           int             `json:"merges"`
	Dropped          int             `json:"dropped"`
	Stations         int             `json:"stations"`
	EntryNodes       int             `json:"entry_nodes"`
	Report           json.RawMessage `json:"report"`
}

// SegmentRow is a stitched segment of a stored run
type SegmentRow struct {
	LineID       int             `json:"line_id"`
	Seq          int             `json:"seq"`
	StartStation string          `json:"start_station"`
	EndStation   string          `json:"end_station"`
	KMStart      float64         `json:"km_start"`
	KMEnd        float64         `json:"km_end"`
	Length       float64         `json:"length"`
	PointCount   int             `json:"point_count"`
	Geometry     json.RawMessage `json:"geometry"`
}

// StationRow is a resolved station of a stored run
type StationRow struct {
	Code           string      `json:"code"`
	Type           string      `json:"type"`
	PlatformLength float64     `json:"platform_length"`
	PlatformCount  int         `json:"platform_count"`
	West           []string    `json:"west"`
	East           []string    `json:"east"`
	Centre         *[2]float64 `json:"centre,omitempty"`
}

// EntryNodeRow is one placed entry node
type EntryNodeRow struct {
	Station   string  `json:"station"`
	Direction string  `json:"direction"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// LatestRun returns the most recently stored run
func (db *DB) LatestRun(ctx context.Context) (*Run, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT run_id, created_at_utc, input_checksum, generator_version, threshold_m,
			segments_in, segments_out, merges, dropped, stations, entry_nodes, report_json
		FROM runs
		ORDER BY created_at_utc DESC
		LIMIT 1`)

	var r Run
	var report string
	err := row.Scan(&r.RunID, &r.CreatedAt, &r.InputChecksum, &r.GeneratorVersion, &r.Threshold,
		&r.SegmentsIn, &r.SegmentsOut, &r.Merges, &r.Dropped, &r.Stations, &r.EntryNodes, &report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	r.Report = json.RawMessage(report)
	return &r, nil
}

// Segments returns the stitched segments of a run. A zero lineID returns every line.
func (db *DB) Segments(ctx context.Context, runID string, lineID int) ([]SegmentRow, error) {
	query := `
		SELECT line_id, seq, start_station, end_station, km_start, km_end, length_m, point_count, geometry
		FROM stitched_segments
		WHERE run_id = ?`
	args := []any{runID}
	if lineID != 0 {
		query += " AND line_id = ?"
		args = append(args, lineID)
	}
	query += " ORDER BY line_id, seq"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	segs := []SegmentRow{}
	for rows.Next() {
		var s SegmentRow
		var shape string
		if err := rows.Scan(&s.LineID, &s.Seq, &s.StartStation, &s.EndStation,
			&s.KMStart, &s.KMEnd, &s.Length, &s.PointCount, &shape); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		s.Geometry = json.RawMessage(shape)
		segs = append(segs, s)
	}
	return segs, rows.Err()
}

const stationColumns = `code, station_type, platform_length_m, platform_count, west_json, east_json, centre_x, centre_y`

// Stations returns the stations of a run ordered by code
func (db *DB) Stations(ctx context.Context, runID string) ([]StationRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+stationColumns+" FROM stations WHERE run_id = ? ORDER BY code", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	stations := []StationRow{}
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *st)
	}
	return stations, rows.Err()
}

// Station returns one station of a run, or ErrNotFound
func (db *DB) Station(ctx context.Context, runID, code string) (*StationRow, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+stationColumns+" FROM stations WHERE run_id = ? AND code = ?",
		runID, code)
	st, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return st, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStation(s scanner) (*StationRow, error) {
	var st StationRow
	var west, east string
	var cx, cy sql.NullFloat64
	if err := s.Scan(&st.Code, &st.Type, &st.PlatformLength, &st.PlatformCount, &west, &east, &cx, &cy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan station: %w", err)
	}
	if err := json.Unmarshal([]byte(west), &st.West); err != nil {
		return nil, fmt.Errorf("station %s: bad west connections: %w", st.Code, err)
	}
	if err := json.Unmarshal([]byte(east), &st.East); err != nil {
		return nil, fmt.Errorf("station %s: bad east connections: %w", st.Code, err)
	}
	if cx.Valid && cy.Valid {
		st.Centre = &[2]float64{cx.Float64, cy.Float64}
	}
	return &st, nil
}

// EntryNodes returns the entry nodes of a run ordered by station and direction
func (db *DB) EntryNodes(ctx context.Context, runID string) ([]EntryNodeRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT station, direction, x, y
		FROM entry_nodes
		WHERE run_id = ?
		ORDER BY station, direction DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry nodes: %w", err)
	}
	defer rows.Close()

	nodes := []EntryNodeRow{}
	for rows.Next() {
		var n EntryNodeRow
		if err := rows.Scan(&n.Station, &n.Direction, &n.X, &n.Y); err != nil {
			return nil, fmt.Errorf("failed to scan entry node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
