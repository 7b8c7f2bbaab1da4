package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/onurdenizs/sub-net/internal/config"
	"github.com/onurdenizs/sub-net/internal/ingest"
	"github.com/onurdenizs/sub-net/internal/network"
	"github.com/onurdenizs/sub-net/internal/platform"
	"github.com/onurdenizs/sub-net/internal/segment"
	"github.com/onurdenizs/sub-net/internal/stitch"
)

// Params are the per-stage parameters of a run
type Params struct {
	Stitch        stitch.Options
	Entry         network.EntryOptions
	Platform      platform.Policy
	CloseDistance float64
}

// ParamsFromConfig derives run parameters from a validated config
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Stitch:        cfg.StitchOptions(),
		Entry:         cfg.EntryOptions(),
		Platform:      cfg.PlatformPolicy(),
		CloseDistance: cfg.CloseDistance,
	}
}

// Inputs is everything a run reads up front
type Inputs struct {
	Lines         []segment.Line
	Edges         []platform.Edge
	ParseFailures int
}

// Load reads the segment and platform tables named in cfg
func Load(cfg *config.Config, log *zap.SugaredLogger) (*Inputs, error) {
	tbl, err := ingest.LoadSegments(cfg.SegmentsPath, cfg.LineIDs, log)
	if err != nil {
		return nil, err
	}
	edges, err := ingest.LoadPlatformEdges(cfg.PlatformsPath, log)
	if err != nil {
		return nil, err
	}
	return &Inputs{Lines: tbl.Lines, Edges: edges, ParseFailures: tbl.ParseFailures}, nil
}

// Result is the full output of a run
type Result struct {
	Lines      []stitch.LineResult
	Network    *network.Network
	Platforms  []platform.Info
	Entry      network.LocateSummary
	Close      []network.ClosePair
	Validation network.ValidationReport
	Report     Report
}

// Process stitches every line, decides platform lengths for the surviving
// stations, resolves connectivity and places entry nodes.
func Process(ctx context.Context, p Params, in *Inputs, log *zap.SugaredLogger) (*Result, error) {
	log.Infow("stitching lines", "lines", len(in.Lines), "threshold", p.Stitch.Threshold, "workers", p.Stitch.Workers)

	lines, err := stitch.NewStitcher(p.Stitch, log).StitchAll(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	var stitched []segment.Segment
	for _, l := range lines {
		stitched = append(stitched, l.Segments...)
	}

	platforms := platform.Resolve(segment.Stations(stitched), in.Edges, p.Platform, log)

	net := network.Build(stitched, platform.Lengths(platforms), log)
	entry := network.NewLocator(p.Entry, log).Locate(net)

	res := &Result{
		Lines:      lines,
		Network:    net,
		Platforms:  platforms,
		Entry:      entry,
		Close:      network.CloseUnconnected(net.Stations, p.CloseDistance),
		Validation: network.Validate(net.Stations, p.Stitch.Protected),
	}
	res.Report = buildReport(res, in.ParseFailures, p.Stitch.Threshold)

	for _, code := range res.Validation.MissingProtected {
		log.Warnw("protected station missing from network", "station", code)
	}
	for _, d := range res.Validation.Dangling {
		log.Warnw("neighbour is not a station", "station", d.Station, "neighbour", d.Neighbour)
	}
	for _, c := range res.Close {
		log.Debugw("close but unconnected stations", "a", c.A, "b", c.B, "distance", c.Distance)
	}

	r := res.Report
	log.Infow("run finished",
		"segments_in", r.SegmentsIn, "segments_out", r.SegmentsOut, "merges", r.Merges,
		"dropped", r.Dropped, "stations", r.Stations, "entry_nodes", r.EntryNodes,
		"infeasible_entries", r.InfeasibleEntries)
	return res, nil
}

// Run loads the inputs named in cfg and processes them
func Run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	in, err := Load(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load inputs: %w", err)
	}
	return Process(ctx, ParamsFromConfig(cfg), in, log)
}
