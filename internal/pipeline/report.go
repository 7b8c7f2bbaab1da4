package pipeline

import (
	"github.com/onurdenizs/sub-net/internal/network"
	"github.com/onurdenizs/sub-net/internal/segment"
)

// LineReport summarises the stitching of one line
type LineReport struct {
	LineID        int     `json:"line_id"`
	SegmentsIn    int     `json:"segments_in"`
	SegmentsOut   int     `json:"segments_out"`
	LengthIn      float64 `json:"length_in"`
	LengthOut     float64 `json:"length_out"`
	Merges        int     `json:"merges"`
	Dropped       int     `json:"dropped"`
	MergeFailures int     `json:"merge_failures"`
}

// Report holds the run counters
type Report struct {
	Threshold         float64                     `json:"threshold"`
	Lines             []LineReport                `json:"lines"`
	SegmentsIn        int                         `json:"segments_in"`
	SegmentsOut       int                         `json:"segments_out"`
	Merges            int                         `json:"merges"`
	Dropped           int                         `json:"dropped"`
	MergeFailures     int                         `json:"merge_failures"`
	ParseFailures     int                         `json:"parse_failures"`
	Stations          int                         `json:"stations"`
	StationsByType    map[network.StationType]int `json:"stations_by_type"`
	EntryNodes        int                         `json:"entry_nodes"`
	InfeasibleEntries int                         `json:"infeasible_entries"`
	MissingEntries    int                         `json:"missing_entries"`
	CloseUnconnected  int                         `json:"close_unconnected"`
	MissingProtected  []string                    `json:"missing_protected"`
}

func buildReport(res *Result, parseFailures int, threshold float64) Report {
	r := Report{
		Threshold:        threshold,
		ParseFailures:    parseFailures,
		Stations:         len(res.Network.Stations),
		StationsByType:   res.Network.CountByType(),
		EntryNodes:       res.Entry.Located,
		CloseUnconnected: len(res.Close),
		MissingProtected: res.Validation.MissingProtected,
	}

	for _, l := range res.Lines {
		lr := LineReport{
			LineID:        l.LineID,
			SegmentsIn:    l.InputCount,
			SegmentsOut:   len(l.Segments),
			LengthIn:      l.InputLength,
			LengthOut:     segment.TotalLength(l.Segments),
			Merges:        l.Merges,
			Dropped:       len(l.Dropped),
			MergeFailures: l.MergeFailures,
		}
		r.Lines = append(r.Lines, lr)
		r.SegmentsIn += lr.SegmentsIn
		r.SegmentsOut += lr.SegmentsOut
		r.Merges += lr.Merges
		r.Dropped += lr.Dropped
		r.MergeFailures += lr.MergeFailures
	}

	r.InfeasibleEntries = res.Entry.Infeasible()
	r.MissingEntries = len(res.Entry.Failures) - r.InfeasibleEntries
	return r
}
