package network

import (
	"sort"

	"github.com/paulmach/orb/planar"

	"github.com/onurdenizs/sub-net/internal/segment"
)

// DefaultCloseDistance is the planar distance under which two unconnected
// stations are reported.
const DefaultCloseDistance = 500.0

// ClosePair is two stations whose centres are near each other although no
// segment joins them
type ClosePair struct {
	A, B     string
	Distance float64
}

// CloseUnconnected lists station pairs nearer than maxDistance that are not
// neighbours in either direction, closest first. Stations without a centre
// are ignored.
func CloseUnconnected(stations []Station, maxDistance float64) []ClosePair {
	var pairs []ClosePair
	for i := range stations {
		a := stations[i]
		if a.Centre == nil {
			continue
		}
		for j := i + 1; j < len(stations); j++ {
			b := stations[j]
			if b.Centre == nil {
				continue
			}
			if a.Connections.Has(b.Code) || b.Connections.Has(a.Code) {
				continue
			}

			d := planar.Distance(*a.Centre, *b.Centre)
			if d < maxDistance {
				pairs = append(pairs, ClosePair{A: a.Code, B: b.Code, Distance: d})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Distance != pairs[j].Distance {
			return pairs[i].Distance < pairs[j].Distance
		}
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

// Dangling is a neighbour reference to a code with no station row
type Dangling struct {
	Station   string
	Neighbour string
}

// ValidationReport lists inconsistencies between a station table and the
// protected set
type ValidationReport struct {
	MissingProtected []string
	Dangling         []Dangling
}

// OK reports whether nothing was found
func (r ValidationReport) OK() bool {
	return len(r.MissingProtected) == 0 && len(r.Dangling) == 0
}

// Validate checks that every protected station is present and that every
// neighbour names a known station.
func Validate(stations []Station, protected segment.StationSet) ValidationReport {
	known := segment.NewStationSet()
	for _, st := range stations {
		known.Add(st.Code)
	}

	var r ValidationReport
	for _, code := range protected.Codes() {
		if !known.Contains(code) {
			r.MissingProtected = append(r.MissingProtected, code)
		}
	}
	for _, st := range stations {
		for _, nb := range append(append([]string{}, st.Connections.West...), st.Connections.East...) {
			if !known.Contains(nb) {
				r.Dangling = append(r.Dangling, Dangling{Station: st.Code, Neighbour: nb})
			}
		}
	}
	return r
}
