package network

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/onurdenizs/sub-net/internal/geometry"
	"github.com/onurdenizs/sub-net/internal/segment"
)

var (
	// ErrInfeasibleOffset means the walk would run past the end of the polyline
	ErrInfeasibleOffset = errors.New("entry offset exceeds segment")
	// ErrNoConnectingSegment means no usable segment joins a station to its neighbours
	ErrNoConnectingSegment = errors.New("no connecting segment")
	// ErrDegenerateSegment means the segment cannot be walked
	ErrDegenerateSegment = errors.New("degenerate segment")
)

// EntryOptions configures the entry-node locator
type EntryOptions struct {
	// Buffer is added to half the platform length to get the offset, in meters
	Buffer float64
}

// Offset is the distance from the station at which its entry node sits
func (o EntryOptions) Offset(platformLength float64) float64 {
	return o.Buffer + platformLength/2
}

// Failure records a direction that got no entry node
type Failure struct {
	Station   string
	Direction geometry.Direction
	Neighbour string
	Err       error
}

// LocateSummary counts the outcome of a locator run
type LocateSummary struct {
	Located  int
	Failures []Failure
}

// Infeasible counts failures caused by an offset longer than the segment
func (s LocateSummary) Infeasible() int {
	n := 0
	for _, f := range s.Failures {
		if errors.Is(f.Err, ErrInfeasibleOffset) {
			n++
		}
	}
	return n
}

// Locator places entry nodes on a built network
type Locator struct {
	opts EntryOptions
	log  *zap.SugaredLogger
}

// NewLocator creates a locator with the given options
func NewLocator(opts EntryOptions, logger *zap.SugaredLogger) *Locator {
	return &Locator{opts: opts, log: logger}
}

// Locate sets the entry nodes of every station in n. Neighbours are tried in
// lexicographic order; missing or degenerate segments move on to the next
// neighbour, an infeasible offset ends the direction.
func (l *Locator) Locate(n *Network) LocateSummary {
	var sum LocateSummary

	for i := range n.Stations {
		st := &n.Stations[i]
		offset := l.opts.Offset(st.PlatformLength)

		for _, dir := range geometry.Directions {
			neighbours := st.Connections.In(dir)
			if len(neighbours) == 0 {
				continue
			}

			p, neighbour, err := l.locateDirection(n, st.Code, neighbours, offset)
			if err != nil {
				l.log.Warnw("no entry node",
					"station", st.Code, "direction", dir, "neighbour", neighbour,
					"offset", offset, "error", err)
				sum.Failures = append(sum.Failures, Failure{Station: st.Code, Direction: dir, Neighbour: neighbour, Err: err})
				continue
			}

			st.EntryNodes.set(dir, p)
			sum.Located++
		}
	}

	l.log.Infow("entry nodes located", "located", sum.Located, "failed", len(sum.Failures))
	return sum
}

func (l *Locator) locateDirection(n *Network, code string, neighbours []string, offset float64) (orb.Point, string, error) {
	for _, nb := range neighbours {
		seg, ok := n.ConnectingSegment(code, nb)
		if !ok {
			l.log.Debugw("neighbour has no connecting segment", "station", code, "neighbour", nb)
			continue
		}

		idx, err := EntryIndex(seg, code, offset)
		switch {
		case errors.Is(err, ErrDegenerateSegment):
			l.log.Debugw("skipping degenerate segment", "station", code, "neighbour", nb, "error", err)
			continue
		case err != nil:
			return orb.Point{}, nb, err
		}
		return seg.Geometry[idx], nb, nil
	}
	return orb.Point{}, "", fmt.Errorf("%w: %s to any of %v", ErrNoConnectingSegment, code, neighbours)
}

// EntryIndex returns the vertex index reached by walking offset meters from
// station along seg. Spacing is approximated as the average vertex spacing,
// so the result is floor(offset/spacing) vertices from the station's end.
func EntryIndex(seg segment.Segment, station string, offset float64) (int, error) {
	n := len(seg.Geometry)
	if n < 2 || seg.Length <= 0 {
		return 0, fmt.Errorf("%w: %s-%s has %d points and length %.2f",
			ErrDegenerateSegment, seg.StartStation, seg.EndStation, n, seg.Length)
	}

	spacing := seg.Length / float64(n-1)
	steps := int(math.Floor(offset / spacing))
	if steps < 0 || steps >= n {
		return 0, fmt.Errorf("%w: %d steps of %.2f m needed on %s-%s with %d points",
			ErrInfeasibleOffset, steps, spacing, seg.StartStation, seg.EndStation, n)
	}

	switch station {
	case seg.StartStation:
		return steps, nil
	case seg.EndStation:
		return n - 1 - steps, nil
	default:
		return 0, fmt.Errorf("station %s is not an endpoint of %s-%s", station, seg.StartStation, seg.EndStation)
	}
}
