package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrMalformedGeometry is returned when a stored geometry cannot be read as a LineString
var ErrMalformedGeometry = errors.New("malformed geometry")

// ParseString reads a LineString from its stored text form.
// The source tables sometimes quote JSON keys with single quotes, so those are
// normalized before decoding. On failure an empty LineString is returned
// together with an error wrapping ErrMalformedGeometry.
func ParseString(raw string) (orb.LineString, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return orb.LineString{}, fmt.Errorf("%w: empty input", ErrMalformedGeometry)
	}
	return ParseJSON([]byte(strings.ReplaceAll(raw, "'", `"`)))
}

// ParseJSON decodes a GeoJSON geometry object into a LineString. Objects
// that carry only a "coordinates" array are read as a LineString too.
func ParseJSON(data []byte) (orb.LineString, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		if ls, ok := bareCoordinates(data); ok {
			return ls, nil
		}
		return orb.LineString{}, fmt.Errorf("%w: %v", ErrMalformedGeometry, err)
	}
	return FromGeometry(g)
}

func bareCoordinates(data []byte) (orb.LineString, bool) {
	var bare struct {
		Type        string          `json:"type"`
		Coordinates *orb.LineString `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, false
	}
	if bare.Type != "" || bare.Coordinates == nil {
		return nil, false
	}
	return *bare.Coordinates, true
}

// FromGeometry extracts the LineString from an already decoded GeoJSON geometry
func FromGeometry(g *geojson.Geometry) (orb.LineString, error) {
	if g == nil || g.Coordinates == nil {
		return orb.LineString{}, fmt.Errorf("%w: missing coordinates", ErrMalformedGeometry)
	}

	ls, ok := g.Coordinates.(orb.LineString)
	if !ok {
		return orb.LineString{}, fmt.Errorf("%w: expected LineString, got %s", ErrMalformedGeometry, g.Coordinates.GeoJSONType())
	}
	return ls, nil
}

// Encode returns the GeoJSON text of a LineString, the same form ParseString reads
func Encode(ls orb.LineString) (string, error) {
	if ls == nil {
		ls = orb.LineString{}
	}
	data, err := geojson.NewGeometry(ls).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode geometry: %w", err)
	}
	return string(data), nil
}

// Length returns the planar length of the polyline, 0 when it has fewer than 2 points
func Length(ls orb.LineString) float64 {
	if len(ls) < 2 {
		return 0
	}
	return planar.Length(ls)
}

// Merge appends b to a. When b starts on a's last vertex the shared vertex is
// kept once; otherwise the two are concatenated as they are. Order matters:
// a must precede b along the line.
func Merge(a, b orb.LineString) orb.LineString {
	merged := make(orb.LineString, 0, len(a)+len(b))
	merged = append(merged, a...)
	if len(a) > 0 && len(b) > 0 && a[len(a)-1].Equal(b[0]) {
		b = b[1:]
	}
	return append(merged, b...)
}

// PointAt returns the vertex at index i, or false when i is out of range
func PointAt(ls orb.LineString, i int) (orb.Point, bool) {
	if i < 0 || i >= len(ls) {
		return orb.Point{}, false
	}
	return ls[i], true
}
