package platform

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func testPolicy(m Method) Policy {
	return Policy{
		MinLength: 200, MaxLength: 500, DefaultLength: 350,
		MinCount: 2, MaxCount: 20, DefaultCount: 5,
		Method: m, FillLength: MethodMin, FillCount: MethodMin,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		method  Method
		lengths []float64
		want    float64
	}{
		{MethodMax, []float64{150, 320, 610}, 500},
		{MethodMax, []float64{150, 320}, 320},
		{MethodMin, []float64{150, 320}, 200},
		{MethodMin, []float64{250, 320}, 250},
		{MethodAverage, []float64{100, 200}, 200},
		{MethodAverage, []float64{300, 400}, 350},
		{MethodAverage, []float64{900, 700}, 500},
		{MethodDefault, []float64{900}, 350},
		{MethodMax, nil, 200}, // fill policy
	}

	for _, tt := range tests {
		if got := testPolicy(tt.method).Decide(tt.lengths); got != tt.want {
			t.Errorf("%s Decide(%v) = %v, want %v", tt.method, tt.lengths, got, tt.want)
		}
	}
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"X", "N", "A", "D"} {
		if _, err := ParseMethod(s); err != nil {
			t.Errorf("ParseMethod(%q): %v", s, err)
		}
	}
	if _, err := ParseMethod("Q"); err == nil {
		t.Error("ParseMethod(Q) should fail")
	}
}

func TestClampCount(t *testing.T) {
	p := testPolicy(MethodMax)
	for n, want := range map[int]int{0: 2, 1: 2, 7: 7, 25: 20} {
		if got := p.ClampCount(n); got != want {
			t.Errorf("ClampCount(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	edges := []Edge{
		{Station: "ZUE", Platform: "1", Length: 200},
		{Station: "ZUE", Platform: "1", Length: 120}, // second edge of platform 1
		{Station: "ZUE", Platform: "2", Length: 280},
		{Station: "ZUE", Platform: "3", Length: math.NaN()},
		{Station: "ZUE", Platform: "", Length: 999},
		{Station: "BN", Platform: "1", Length: 410},
		{Station: "XX", Platform: "1", Length: 100},
	}

	got := Resolve([]string{"ZUE", "BN", "LZ"}, edges, testPolicy(MethodMax), zap.NewNop().Sugar())

	want := []Info{
		{Station: "ZUE", MinLength: 0, MaxLength: 320, AvgLength: 200, DecidedLength: 320, Count: 3},
		{Station: "BN", MinLength: 410, MaxLength: 410, AvgLength: 410, DecidedLength: 410, Count: 2},
		{Station: "LZ", MinLength: 200, MaxLength: 200, AvgLength: 200, DecidedLength: 200, Count: 2, FromFallback: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}

	lengths := Lengths(got)
	if lengths["BN"] != 410 || len(lengths) != 3 {
		t.Errorf("Lengths = %v", lengths)
	}
}

func TestResolveFillMethods(t *testing.T) {
	p := testPolicy(MethodAverage)
	p.FillLength, p.FillCount = MethodMax, MethodDefault

	got := Resolve([]string{"GE"}, nil, p, zap.NewNop().Sugar())
	if len(got) != 1 || got[0].DecidedLength != 500 || got[0].Count != 5 || !got[0].FromFallback {
		t.Errorf("fallback info = %+v", got)
	}
}
