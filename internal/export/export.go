package export

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/onurdenizs/sub-net/internal/geometry"
	"github.com/onurdenizs/sub-net/internal/network"
	"github.com/onurdenizs/sub-net/internal/pipeline"
	"github.com/onurdenizs/sub-net/internal/platform"
	"github.com/onurdenizs/sub-net/internal/segment"
)

// GeneratorVersion changes whenever the output layout or the algorithms change
const GeneratorVersion = "1"

// Output file names
const (
	SegmentsFile   = "filtered_sub_network_data.csv"
	StationsFile   = "station_info.csv"
	EntryNodesFile = "station_entry_nodes.json"
	GeoJSONFile    = "sub_network.geojson"
	ReportFile     = "report.json"
	ManifestName   = "manifest.json"
)

// Manifest represents the manifest.json structure
type Manifest struct {
	UpdatedAt        string         `json:"updated_at"`
	GeneratorVersion string         `json:"generator_version"`
	InputChecksum    string         `json:"input_checksum"`
	RunID            string         `json:"run_id,omitempty"`
	Files            []ManifestFile `json:"files"`
}

// ManifestFile represents a file entry
type ManifestFile struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// Write generates every output file of a run into outputDir and finishes
// with manifest.json
func Write(outputDir string, res *pipeline.Result, inputChecksum, runID string, log *zap.SugaredLogger) (*Manifest, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	platforms := make(map[string]platform.Info, len(res.Platforms))
	for _, p := range res.Platforms {
		platforms[p.Station] = p
	}

	segs := stitchedSegments(res)

	outputs := []struct {
		name   string
		encode func() ([]byte, error)
	}{
		{SegmentsFile, func() ([]byte, error) { return segmentsCSV(segs) }},
		{StationsFile, func() ([]byte, error) { return stationsCSV(res.Network.Stations, platforms) }},
		{EntryNodesFile, func() ([]byte, error) { return marshalJSON(res.Network.EntryNodeMap()) }},
		{GeoJSONFile, func() ([]byte, error) { return featureCollection(segs, res.Network.Stations).MarshalJSON() }},
		{ReportFile, func() ([]byte, error) { return marshalJSON(res.Report) }},
	}

	manifest := &Manifest{
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339),
		GeneratorVersion: GeneratorVersion,
		InputChecksum:    inputChecksum,
		RunID:            runID,
	}

	for _, o := range outputs {
		data, err := o.encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", o.name, err)
		}
		if err := os.WriteFile(filepath.Join(outputDir, o.name), data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", o.name, err)
		}
		manifest.Files = append(manifest.Files, ManifestFile{Path: o.name, Checksum: sha256Sum(data)})
		log.Debugw("output written", "file", o.name, "bytes", len(data))
	}

	if err := writeJSON(filepath.Join(outputDir, ManifestName), manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest.json: %w", err)
	}

	log.Infow("outputs written", "dir", outputDir, "files", len(manifest.Files))
	return manifest, nil
}

func stitchedSegments(res *pipeline.Result) []segment.Segment {
	var segs []segment.Segment
	for _, l := range res.Lines {
		segs = append(segs, l.Segments...)
	}
	return segs
}

func segmentsCSV(segs []segment.Segment) ([]byte, error) {
	rows := [][]string{{"Linie", "START_OP", "END_OP", "KM START", "KM END", "polygon_length", "number_of_polygon_points", "Geo shape"}}
	for _, s := range segs {
		shape, err := geometry.Encode(s.Geometry)
		if err != nil {
			return nil, fmt.Errorf("line %d %s-%s: %w", s.LineID, s.StartStation, s.EndStation, err)
		}
		rows = append(rows, []string{
			strconv.Itoa(s.LineID),
			s.StartStation,
			s.EndStation,
			formatFloat(s.KMStart, -1),
			formatFloat(s.KMEnd, -1),
			formatFloat(s.Length, 2),
			strconv.Itoa(s.PointCount),
			shape,
		})
	}
	return encodeCSV(rows)
}

func stationsCSV(stations []network.Station, platforms map[string]platform.Info) ([]byte, error) {
	rows := [][]string{{
		"station", "minimum_platform_length", "maximum_platform_length", "average_platform_length",
		"platform_length", "platform_count", "station_type", "connected_stations", "center_coordinates",
	}}
	for _, st := range stations {
		conn, err := json.Marshal(st.Connections)
		if err != nil {
			return nil, err
		}
		centre := ""
		if st.Centre != nil {
			b, err := json.Marshal(st.Centre)
			if err != nil {
				return nil, err
			}
			centre = string(b)
		}

		p := platforms[st.Code]
		rows = append(rows, []string{
			st.Code,
			formatFloat(p.MinLength, 2),
			formatFloat(p.MaxLength, 2),
			formatFloat(p.AvgLength, 2),
			formatFloat(st.PlatformLength, 2),
			strconv.Itoa(p.Count),
			string(st.Type),
			string(conn),
			centre,
		})
	}
	return encodeCSV(rows)
}

func featureCollection(segs []segment.Segment, stations []network.Station) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, s := range segs {
		f := geojson.NewFeature(s.Geometry)
		f.Properties["kind"] = "segment"
		f.Properties["line_id"] = s.LineID
		f.Properties["start"] = s.StartStation
		f.Properties["end"] = s.EndStation
		f.Properties["length"] = round2(s.Length)
		fc.Append(f)
	}

	for _, st := range stations {
		if st.Centre != nil {
			f := geojson.NewFeature(*st.Centre)
			f.Properties["kind"] = "station"
			f.Properties["station"] = st.Code
			f.Properties["type"] = string(st.Type)
			f.Properties["platform_length"] = st.PlatformLength
			fc.Append(f)
		}
		for _, dir := range geometry.Directions {
			p := st.EntryNodes.Get(dir)
			if p == nil {
				continue
			}
			f := geojson.NewFeature(*p)
			f.Properties["kind"] = "entry_node"
			f.Properties["station"] = st.Code
			f.Properties["direction"] = string(dir)
			fc.Append(f)
		}
	}
	return fc
}

// Fingerprint hashes the input files and the run settings. Two runs with the
// same fingerprint produce the same outputs.
func Fingerprint(paths []string, settings any) (string, error) {
	h := sha256.New()
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for _, p := range sorted {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", p, err)
		}
		fmt.Fprintf(h, "%s:%d\n", filepath.Base(p), len(data))
		h.Write(data)
	}

	s, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}
	h.Write(s)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsCurrent reports whether outputDir already holds the outputs of the given
// inputs: the manifest exists, matches the fingerprint and generator version,
// and every listed file still has its recorded checksum.
func IsCurrent(outputDir, inputChecksum string) bool {
	data, err := os.ReadFile(filepath.Join(outputDir, ManifestName))
	if err != nil {
		return false
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return false
	}
	if manifest.GeneratorVersion != GeneratorVersion || manifest.InputChecksum != inputChecksum {
		return false
	}
	if _, err := time.Parse(time.RFC3339, manifest.UpdatedAt); err != nil {
		return false
	}

	for _, f := range manifest.Files {
		content, err := os.ReadFile(filepath.Join(outputDir, f.Path))
		if err != nil || sha256Sum(content) != f.Checksum {
			return false
		}
	}
	return len(manifest.Files) > 0
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func writeJSON(path string, v any) error {
	data, err := marshalJSON(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func sha256Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
