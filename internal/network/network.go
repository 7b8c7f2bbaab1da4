package network

import (
	"slices"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/onurdenizs/sub-net/internal/geometry"
	"github.com/onurdenizs/sub-net/internal/segment"
)

// StationType classifies a station by the directions it has neighbours in
type StationType string

const (
	TwoWay          StationType = "two-way"
	SingleDirection StationType = "single-direction"
	Isolated        StationType = "isolated"
)

// Connections holds neighbour codes per direction, each list sorted
type Connections struct {
	West []string `json:"West"`
	East []string `json:"East"`
}

// In returns the neighbours in direction d
func (c Connections) In(d geometry.Direction) []string {
	switch d {
	case geometry.West:
		return c.West
	case geometry.East:
		return c.East
	}
	return nil
}

// Has reports whether code is a neighbour in any direction
func (c Connections) Has(code string) bool {
	return slices.Contains(c.West, code) || slices.Contains(c.East, code)
}

// Type derives the station type from the set cardinalities
func (c Connections) Type() StationType {
	switch {
	case len(c.West) > 0 && len(c.East) > 0:
		return TwoWay
	case len(c.West) > 0 || len(c.East) > 0:
		return SingleDirection
	default:
		return Isolated
	}
}

// EntryNodes holds the entry coordinate per direction; nil means absent
type EntryNodes struct {
	West *orb.Point `json:"West,omitempty"`
	East *orb.Point `json:"East,omitempty"`
}

// Get returns the entry node for direction d
func (e EntryNodes) Get(d geometry.Direction) *orb.Point {
	switch d {
	case geometry.West:
		return e.West
	case geometry.East:
		return e.East
	}
	return nil
}

func (e *EntryNodes) set(d geometry.Direction, p orb.Point) {
	switch d {
	case geometry.West:
		e.West = &p
	case geometry.East:
		e.East = &p
	}
}

// Station is the network-wide view of one operating point
type Station struct {
	Code           string
	Connections    Connections
	Type           StationType
	PlatformLength float64
	Centre         *orb.Point
	EntryNodes     EntryNodes
}

// Network is the stitched segment table together with its derived stations
type Network struct {
	Segments []segment.Segment
	Stations []Station // sorted by code

	index map[string]int
}

// Build derives stations from stitched segments. Directions are read from the
// easting of the first two and last two vertices of each segment; segments
// with fewer than two points only register their endpoints.
func Build(segs []segment.Segment, platformLengths map[string]float64, log *zap.SugaredLogger) *Network {
	west := make(map[string]segment.StationSet)
	east := make(map[string]segment.StationSet)
	centres := make(map[string]orb.Point)

	add := func(buckets map[string]segment.StationSet, code, neighbour string) {
		if buckets[code] == nil {
			buckets[code] = segment.NewStationSet()
		}
		buckets[code].Add(neighbour)
	}
	connect := func(code, neighbour string, d geometry.Direction) {
		switch d {
		case geometry.West:
			add(west, code, neighbour)
		case geometry.East:
			add(east, code, neighbour)
		}
	}

	for _, s := range segs {
		g := s.Geometry
		if len(g) > 0 {
			if _, ok := centres[s.StartStation]; !ok {
				centres[s.StartStation] = g[0]
			}
			if _, ok := centres[s.EndStation]; !ok {
				centres[s.EndStation] = g[len(g)-1]
			}
		}

		if len(g) < 2 {
			log.Warnw("segment has too few points for direction",
				"line", s.LineID, "start", s.StartStation, "end", s.EndStation, "points", len(g))
			continue
		}
		if s.StartStation == s.EndStation {
			log.Warnw("segment starts and ends at the same station", "line", s.LineID, "station", s.StartStation)
			continue
		}

		connect(s.StartStation, s.EndStation, geometry.Heading(g[0], g[1]))
		connect(s.EndStation, s.StartStation, geometry.Heading(g[len(g)-1], g[len(g)-2]))
	}

	codes := segment.Stations(segs)
	n := &Network{
		Segments: segs,
		Stations: make([]Station, 0, len(codes)),
		index:    make(map[string]int, len(codes)),
	}
	for _, code := range codes {
		st := Station{
			Code: code,
			Connections: Connections{
				West: west[code].Codes(),
				East: east[code].Codes(),
			},
		}
		st.Type = st.Connections.Type()

		if l, ok := platformLengths[code]; ok {
			st.PlatformLength = l
		} else {
			log.Warnw("no platform length for station", "station", code)
		}
		if c, ok := centres[code]; ok {
			st.Centre = &c
		}

		n.index[code] = len(n.Stations)
		n.Stations = append(n.Stations, st)
	}
	return n
}

// Station looks up a station by code
func (n *Network) Station(code string) (*Station, bool) {
	i, ok := n.index[code]
	if !ok {
		return nil, false
	}
	return &n.Stations[i], true
}

// ConnectingSegment returns the first segment joining a and b in either
// orientation, in segment table order.
func (n *Network) ConnectingSegment(a, b string) (segment.Segment, bool) {
	for _, s := range n.Segments {
		if s.Connects(a, b) {
			return s, true
		}
	}
	return segment.Segment{}, false
}

// CountByType tallies stations per type
func (n *Network) CountByType() map[StationType]int {
	counts := make(map[StationType]int, 3)
	for _, st := range n.Stations {
		counts[st.Type]++
	}
	return counts
}

// EntryNodeMap returns the entry nodes of every station keyed by code.
// Stations without any entry node map to an empty value.
func (n *Network) EntryNodeMap() map[string]EntryNodes {
	out := make(map[string]EntryNodes, len(n.Stations))
	for _, st := range n.Stations {
		out[st.Code] = st.EntryNodes
	}
	return out
}
