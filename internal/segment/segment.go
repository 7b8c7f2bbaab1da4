package segment

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/onurdenizs/sub-net/internal/geometry"
)

// Segment is the geometry between two stations on one railway line
type Segment struct {
	LineID       int
	StartStation string
	EndStation   string
	KMStart      float64
	KMEnd        float64
	Geometry     orb.LineString
	Length       float64 // planar length of Geometry
	PointCount   int
}

// New builds a segment and derives its length and point count from the geometry
func New(lineID int, start, end string, kmStart, kmEnd float64, g orb.LineString) Segment {
	return Segment{
		LineID:       lineID,
		StartStation: start,
		EndStation:   end,
		KMStart:      kmStart,
		KMEnd:        kmEnd,
		Geometry:     g,
		Length:       geometry.Length(g),
		PointCount:   len(g),
	}
}

// Touches reports whether the station is one of the segment's endpoints
func (s Segment) Touches(code string) bool {
	return s.StartStation == code || s.EndStation == code
}

// Connects reports whether the segment joins a and b, in either orientation
func (s Segment) Connects(a, b string) bool {
	return (s.StartStation == a && s.EndStation == b) ||
		(s.StartStation == b && s.EndStation == a)
}

// Line is the ordered segment sequence of one railway line
type Line struct {
	ID       int
	Segments []Segment
}

// SortByKM orders segments by KMStart, keeping input order for equal markers
func SortByKM(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].KMStart < segs[j].KMStart
	})
}

// GroupByLine splits segments into lines, each sorted by KMStart.
// Lines follow the order of ids; when ids is empty every line is returned in
// ascending id order. Duplicate ids are listed once.
func GroupByLine(segs []Segment, ids []int) []Line {
	byLine := make(map[int][]Segment)
	for _, s := range segs {
		byLine[s.LineID] = append(byLine[s.LineID], s)
	}

	if len(ids) == 0 {
		for id := range byLine {
			ids = append(ids, id)
		}
		sort.Ints(ids)
	}

	seen := make(map[int]bool, len(ids))
	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		lineSegs := byLine[id]
		SortByKM(lineSegs)
		lines = append(lines, Line{ID: id, Segments: lineSegs})
	}
	return lines
}

// Flatten concatenates the segments of all lines in line order
func Flatten(lines []Line) []Segment {
	var out []Segment
	for _, l := range lines {
		out = append(out, l.Segments...)
	}
	return out
}

// TotalLength sums segment lengths
func TotalLength(segs []Segment) float64 {
	var total float64
	for _, s := range segs {
		total += s.Length
	}
	return total
}

// Stations returns the sorted distinct endpoint codes of the segments
func Stations(segs []Segment) []string {
	set := NewStationSet()
	for _, s := range segs {
		set.Add(s.StartStation)
		set.Add(s.EndStation)
	}
	return set.Codes()
}
