package platform

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Method selects how a station's platform length is decided
type Method string

const (
	MethodMax     Method = "X"
	MethodMin     Method = "N"
	MethodAverage Method = "A"
	MethodDefault Method = "D"
)

// ParseMethod validates a method letter
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodMax, MethodMin, MethodAverage, MethodDefault:
		return m, nil
	}
	return "", fmt.Errorf("unknown platform decision method %q (want X, N, A or D)", s)
}

func (m Method) String() string {
	switch m {
	case MethodMax:
		return "maximum platform length"
	case MethodMin:
		return "minimum platform length"
	case MethodAverage:
		return "average platform length"
	case MethodDefault:
		return "default platform length"
	}
	return string(m)
}

// Policy holds the bounds and methods used to decide lengths and counts
type Policy struct {
	MinLength     float64
	MaxLength     float64
	DefaultLength float64

	MinCount     int
	MaxCount     int
	DefaultCount int

	// Method applies to stations with platform data
	Method Method
	// FillLength and FillCount apply to stations without any
	FillLength Method
	FillCount  Method
}

// Decide picks the platform length from per-platform lengths
func (p Policy) Decide(lengths []float64) float64 {
	if len(lengths) == 0 {
		return p.fillLength()
	}
	switch p.Method {
	case MethodMax:
		return math.Min(p.MaxLength, floats.Max(lengths))
	case MethodMin:
		return math.Max(p.MinLength, floats.Min(lengths))
	case MethodAverage:
		return p.clampLength(stat.Mean(lengths, nil))
	default:
		return p.DefaultLength
	}
}

func (p Policy) clampLength(v float64) float64 {
	return math.Max(p.MinLength, math.Min(p.MaxLength, v))
}

func (p Policy) fillLength() float64 {
	switch p.FillLength {
	case MethodMax:
		return p.MaxLength
	case MethodMin:
		return p.MinLength
	default:
		return p.DefaultLength
	}
}

func (p Policy) fillCount() int {
	switch p.FillCount {
	case MethodMax:
		return p.MaxCount
	case MethodMin:
		return p.MinCount
	default:
		return p.DefaultCount
	}
}

// ClampCount bounds a platform count to [MinCount, MaxCount]
func (p Policy) ClampCount(n int) int {
	return max(p.MinCount, min(p.MaxCount, n))
}

// Edge is one platform edge row
type Edge struct {
	Station  string
	Platform string
	Length   float64
}

// Info is the decided platform data of one station
type Info struct {
	Station       string
	MinLength     float64
	MaxLength     float64
	AvgLength     float64
	DecidedLength float64
	Count         int
	FromFallback  bool
}

// Resolve decides platform length and count for every station. Edge lengths
// are summed per platform number; edges without a platform number or with a
// NaN length do not contribute. Stations without usable edges get the fill
// policy. Output follows the order of stations.
func Resolve(stations []string, edges []Edge, p Policy, log *zap.SugaredLogger) []Info {
	byStation := make(map[string]map[string]float64)
	for _, e := range edges {
		if e.Platform == "" {
			continue
		}
		platforms := byStation[e.Station]
		if platforms == nil {
			platforms = make(map[string]float64)
			byStation[e.Station] = platforms
		}
		l := e.Length
		if math.IsNaN(l) {
			l = 0
		}
		platforms[e.Platform] += l
	}

	log.Infow("deciding platform lengths", "stations", len(stations), "method", p.Method.String())

	out := make([]Info, 0, len(stations))
	for _, code := range stations {
		platforms := byStation[code]
		if len(platforms) == 0 {
			l := p.fillLength()
			out = append(out, Info{
				Station:       code,
				MinLength:     l,
				MaxLength:     l,
				AvgLength:     l,
				DecidedLength: l,
				Count:         p.fillCount(),
				FromFallback:  true,
			})
			log.Debugw("no platform data, using fallback", "station", code, "length", l)
			continue
		}

		numbers := make([]string, 0, len(platforms))
		for n := range platforms {
			numbers = append(numbers, n)
		}
		sort.Strings(numbers)
		lengths := make([]float64, len(numbers))
		for i, n := range numbers {
			lengths[i] = platforms[n]
		}

		info := Info{
			Station:       code,
			MinLength:     floats.Min(lengths),
			MaxLength:     floats.Max(lengths),
			AvgLength:     stat.Mean(lengths, nil),
			DecidedLength: p.Decide(lengths),
			Count:         p.ClampCount(len(lengths)),
		}
		out = append(out, info)
		log.Debugw("platform length decided",
			"station", code, "platforms", len(lengths), "min", info.MinLength,
			"max", info.MaxLength, "avg", info.AvgLength, "decided", info.DecidedLength)
	}
	return out
}

// Lengths maps station codes to their decided platform length
func Lengths(infos []Info) map[string]float64 {
	m := make(map[string]float64, len(infos))
	for _, i := range infos {
		m[i.Station] = i.DecidedLength
	}
	return m
}
