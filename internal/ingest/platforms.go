package ingest

import (
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/onurdenizs/sub-net/internal/platform"
)

// Column names of the platform edge table
const (
	ColStation        = "Station abbreviation"
	ColPlatformNumber = "Platform number"
	ColEdgeLength     = "Length of platform edge"
)

// LoadPlatformEdges opens path and reads it with ReadPlatformEdges
func LoadPlatformEdges(path string, log *zap.SugaredLogger) ([]platform.Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open platform table: %w", err)
	}
	defer f.Close()

	edges, err := ReadPlatformEdges(f, log)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return edges, nil
}

// ReadPlatformEdges reads the platform edge table. Unreadable lengths are kept
// as NaN so the platform still counts.
func ReadPlatformEdges(r io.Reader, log *zap.SugaredLogger) ([]platform.Edge, error) {
	reader := newReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := makeIndex(header)
	if err := requireColumns(idx, ColStation, ColPlatformNumber, ColEdgeLength); err != nil {
		return nil, err
	}

	var edges []platform.Edge
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		row++

		station := getField(record, idx, ColStation)
		if station == "" {
			continue
		}

		length, err := parseFloat(getField(record, idx, ColEdgeLength))
		if err != nil {
			length = math.NaN()
			log.Warnw("unreadable platform edge length",
				"row", row, "station", station, "value", getField(record, idx, ColEdgeLength))
		}

		edges = append(edges, platform.Edge{
			Station:  station,
			Platform: getField(record, idx, ColPlatformNumber),
			Length:   length,
		})
	}

	log.Infow("platform edges read", "edges", len(edges))
	return edges, nil
}
