package ingest

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/onurdenizs/sub-net/internal/geometry"
	"github.com/onurdenizs/sub-net/internal/segment"
)

// Column names of the segment table
const (
	ColLine     = "Linie"
	ColStart    = "START_OP"
	ColEnd      = "END_OP"
	ColKMStart  = "KM START"
	ColKMEnd    = "KM END"
	ColGeoShape = "Geo shape"
)

// SegmentTable is the result of reading the segment table
type SegmentTable struct {
	Lines         []segment.Line
	Rows          int // data rows read
	Kept          int // rows on a selected line
	Skipped       int // rows that could not be read
	ParseFailures int // rows kept with an empty geometry
}

// LoadSegments opens path and reads it with ReadSegments
func LoadSegments(path string, lineIDs []int, log *zap.SugaredLogger) (*SegmentTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment table: %w", err)
	}
	defer f.Close()

	t, err := ReadSegments(f, lineIDs, log)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// ReadSegments reads the semicolon separated segment table and keeps the rows
// whose line is in lineIDs (every line when lineIDs is empty). Lines come back
// in lineIDs order with their segments sorted by KM START. Malformed geometry
// is logged and kept as an empty polyline.
func ReadSegments(r io.Reader, lineIDs []int, log *zap.SugaredLogger) (*SegmentTable, error) {
	reader := newReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	if err := requireColumns(idx, ColLine, ColStart, ColEnd, ColKMStart, ColKMEnd, ColGeoShape); err != nil {
		return nil, err
	}

	wanted := make(map[int]bool, len(lineIDs))
	for _, id := range lineIDs {
		wanted[id] = true
	}

	t := &SegmentTable{}
	var segs []segment.Segment

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", t.Rows+2, err)
		}
		t.Rows++

		lineID, err := strconv.Atoi(getField(record, idx, ColLine))
		if err != nil {
			t.Skipped++
			log.Warnw("skipping row with invalid line id", "row", t.Rows+1, "value", getField(record, idx, ColLine))
			continue
		}
		if len(wanted) > 0 && !wanted[lineID] {
			continue
		}

		start, end := getField(record, idx, ColStart), getField(record, idx, ColEnd)
		kmStart, err1 := parseFloat(getField(record, idx, ColKMStart))
		kmEnd, err2 := parseFloat(getField(record, idx, ColKMEnd))
		if start == "" || end == "" || err1 != nil || err2 != nil || math.IsNaN(kmStart) || math.IsNaN(kmEnd) {
			t.Skipped++
			log.Warnw("skipping incomplete segment row",
				"row", t.Rows+1, "line", lineID, "start", start, "end", end)
			continue
		}

		g, err := geometry.ParseString(getField(record, idx, ColGeoShape))
		if err != nil {
			t.ParseFailures++
			log.Warnw("malformed geometry, using empty polyline",
				"line", lineID, "start", start, "end", end, "error", err)
		}

		segs = append(segs, segment.New(lineID, start, end, kmStart, kmEnd, g))
		t.Kept++
	}

	t.Lines = segment.GroupByLine(segs, lineIDs)
	log.Infow("segment table read",
		"rows", t.Rows, "kept", t.Kept, "skipped", t.Skipped,
		"lines", len(t.Lines), "geometry_failures", t.ParseFailures)
	return t, nil
}
