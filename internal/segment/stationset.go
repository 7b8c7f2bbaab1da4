package segment

import "sort"

// StationSet is a set of station codes
type StationSet map[string]struct{}

// NewStationSet creates a set holding the given codes
func NewStationSet(codes ...string) StationSet {
	s := make(StationSet, len(codes))
	for _, c := range codes {
		s.Add(c)
	}
	return s
}

// Add inserts a code; empty codes are ignored
func (s StationSet) Add(code string) {
	if code == "" {
		return
	}
	s[code] = struct{}{}
}

// Contains reports whether code is in the set. A nil set contains nothing.
func (s StationSet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the members in lexicographic order
func (s StationSet) Codes() []string {
	codes := make([]string, 0, len(s))
	for c := range s {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
