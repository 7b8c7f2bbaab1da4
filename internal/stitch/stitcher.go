package stitch

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/onurdenizs/sub-net/internal/geometry"
	"github.com/onurdenizs/sub-net/internal/segment"
)

// ErrMerge is returned when two segments cannot be combined
var ErrMerge = errors.New("segment merge failed")

// Options holds the read-only parameters shared by every line
type Options struct {
	// Threshold is the minimum acceptable segment length in meters
	Threshold float64
	// Protected stations must survive as endpoints
	Protected segment.StationSet
	// Workers bounds how many lines are stitched concurrently
	Workers int
}

// Action is the decision taken for the segment under the cursor
type Action string

const (
	ActionAdvance       Action = "advance"
	ActionMergeNext     Action = "merge-next"
	ActionMergePrevious Action = "merge-previous"
	ActionDropFirst     Action = "drop-first"
	ActionDropLast      Action = "drop-last"
	ActionDropOnly      Action = "drop-only"
	ActionKeep          Action = "keep"
)

// Step records one decision of the state machine
type Step struct {
	Cursor int
	Start  string
	End    string
	Length float64
	Action Action
	Err    error
}

// LineResult is the stitched form of one line
type LineResult struct {
	LineID        int
	InputCount    int
	InputLength   float64
	Segments      []segment.Segment
	Dropped       []segment.Segment
	Merges        int
	MergeFailures int
	Steps         []Step
}

// Stitcher reduces lines until every segment is long enough or cannot legally shrink
type Stitcher struct {
	opts Options
	log  *zap.SugaredLogger
}

// NewStitcher creates a stitcher. Options are copied and never modified.
func NewStitcher(opts Options, logger *zap.SugaredLogger) *Stitcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Stitcher{opts: opts, log: logger}
}

// StitchAll stitches every line. Lines are independent, so they are spread over
// the configured workers; results come back in input order.
func (s *Stitcher) StitchAll(ctx context.Context, lines []segment.Line) ([]LineResult, error) {
	results := make([]LineResult, len(lines))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, line := range lines {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.StitchLine(line.ID, line.Segments)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stitching interrupted: %w", err)
	}
	return results, nil
}

// StitchLine runs the cursor walk over one line's segments. The input slice is
// not modified.
func (s *Stitcher) StitchLine(lineID int, in []segment.Segment) LineResult {
	segs := slices.Clone(in)
	segment.SortByKM(segs)

	res := LineResult{
		LineID:      lineID,
		InputCount:  len(segs),
		InputLength: segment.TotalLength(segs),
	}

	i := 0
	for i < len(segs) {
		cur := segs[i]
		step := Step{Cursor: i, Start: cur.StartStation, End: cur.EndStation, Length: cur.Length}

		if cur.Length >= s.opts.Threshold {
			step.Action = ActionAdvance
			res.Steps = append(res.Steps, step)
			i++
			continue
		}

		first := i == 0
		last := i == len(segs)-1

		switch {
		case first && last:
			if !s.protected(cur.StartStation) && !s.protected(cur.EndStation) {
				step.Action = ActionDropOnly
				res.Dropped = append(res.Dropped, cur)
				segs = segs[:0]
			} else {
				step.Action = ActionKeep
			}
			i = len(segs)

		case first:
			switch {
			case !s.protected(cur.EndStation):
				step.Action = ActionMergeNext
				segs, i, step.Err = s.merge(lineID, segs, i, i)
			case !s.protected(cur.StartStation):
				step.Action = ActionDropFirst
				res.Dropped = append(res.Dropped, cur)
				segs = segs[1:]
			default:
				step.Action = ActionAdvance
				i++
			}

		case last:
			switch {
			case !s.protected(cur.StartStation):
				step.Action = ActionMergePrevious
				segs, i, step.Err = s.merge(lineID, segs, i-1, i)
			case !s.protected(cur.EndStation):
				step.Action = ActionDropLast
				res.Dropped = append(res.Dropped, cur)
				segs = segs[:len(segs)-1]
			default:
				step.Action = ActionKeep
				i = len(segs)
			}

		default:
			next, prev := segs[i+1], segs[i-1]
			switch {
			case !s.protected(cur.StartStation) && !s.protected(cur.EndStation) &&
				!s.protected(next.StartStation) && !s.protected(next.EndStation):
				step.Action = ActionMergeNext
				segs, i, step.Err = s.merge(lineID, segs, i, i)
			case s.protected(cur.EndStation) && !s.protected(prev.EndStation):
				step.Action = ActionMergePrevious
				segs, i, step.Err = s.merge(lineID, segs, i-1, i)
			default:
				// no legal merge; move on so the walk terminates
				step.Action = ActionAdvance
				i++
			}
		}

		switch {
		case step.Err != nil:
			res.MergeFailures++
		case step.Action == ActionMergeNext || step.Action == ActionMergePrevious:
			res.Merges++
		}
		s.log.Debugw("stitch step",
			"line", lineID, "cursor", step.Cursor, "start", step.Start, "end", step.End,
			"length", step.Length, "action", step.Action)
		res.Steps = append(res.Steps, step)
	}

	res.Segments = segs
	s.log.Infow("line stitched",
		"line", lineID, "segments_in", res.InputCount, "segments_out", len(res.Segments),
		"merges", res.Merges, "dropped", len(res.Dropped), "merge_failures", res.MergeFailures)
	return res
}

// merge combines segs[at] and segs[at+1] and returns the cursor to resume
// from: the merged position on success, cursor+1 on failure.
func (s *Stitcher) merge(lineID int, segs []segment.Segment, at, cursor int) ([]segment.Segment, int, error) {
	if at < 0 || at+1 >= len(segs) {
		err := fmt.Errorf("%w: line %d has no pair at index %d of %d", ErrMerge, lineID, at, len(segs))
		s.log.Errorw("merge skipped", "line", lineID, "index", at, "error", err)
		return segs, cursor + 1, err
	}

	merged, err := Combine(segs[at], segs[at+1])
	if err != nil {
		s.log.Errorw("merge skipped",
			"line", lineID, "first", segs[at].StartStation+"-"+segs[at].EndStation,
			"second", segs[at+1].StartStation+"-"+segs[at+1].EndStation, "error", err)
		return segs, cursor + 1, err
	}

	segs[at] = merged
	segs = slices.Delete(segs, at+1, at+2)
	return segs, at, nil
}

func (s *Stitcher) protected(code string) bool {
	return s.opts.Protected.Contains(code)
}

// Combine joins two adjacent segments, a preceding b along the line. The
// length is measured again on the merged polyline rather than summed.
func Combine(a, b segment.Segment) (segment.Segment, error) {
	if a.LineID != b.LineID {
		return segment.Segment{}, fmt.Errorf("%w: line %d cannot absorb a segment of line %d", ErrMerge, a.LineID, b.LineID)
	}

	return segment.New(
		a.LineID,
		a.StartStation,
		b.EndStation,
		min(a.KMStart, b.KMStart),
		max(a.KMEnd, b.KMEnd),
		geometry.Merge(a.Geometry, b.Geometry),
	), nil
}
