package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want orb.LineString
	}{
		{
			name: "double quoted",
			raw:  `{"type": "LineString", "coordinates": [[0,0], [1,1]]}`,
			want: orb.LineString{{0, 0}, {1, 1}},
		},
		{
			name: "single quoted keys",
			raw:  `{'coordinates': [[2600000.5, 1200000.25], [2600010.5, 1200000.25]], 'type': 'LineString'}`,
			want: orb.LineString{{2600000.5, 1200000.25}, {2600010.5, 1200000.25}},
		},
		{
			name: "surrounding whitespace",
			raw:  "  {\"type\":\"LineString\",\"coordinates\":[[3,4],[5,6],[7,8]]}\n",
			want: orb.LineString{{3, 4}, {5, 6}, {7, 8}},
		},
		{
			name: "coordinates without type",
			raw:  `{"coordinates": [[0, 0], [3, 4]]}`,
			want: orb.LineString{{0, 0}, {3, 4}},
		},
		{
			name: "single quoted coordinates without type",
			raw:  `{'coordinates': [[1, 1], [1, 5]]}`,
			want: orb.LineString{{1, 1}, {1, 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseString(tt.raw)
			if err != nil {
				t.Fatalf("ParseString: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseString mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStringMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"INVALID_STRING",
		`{"type": "Point", "coordinates": [1, 2]}`,
		`{"type": "LineString", "coordinates": "nope"}`,
		`{"coordinates": "nope"}`,
		`{"geometry": [[0, 0], [1, 1]]}`,
	} {
		got, err := ParseString(raw)
		if !errors.Is(err, ErrMalformedGeometry) {
			t.Errorf("ParseString(%q) error = %v, want ErrMalformedGeometry", raw, err)
		}
		if len(got) != 0 {
			t.Errorf("ParseString(%q) returned %d points, want an empty polyline", raw, len(got))
		}
		if Length(got) != 0 {
			t.Errorf("malformed geometry %q should degrade to zero length", raw)
		}
	}
}

func TestParseStringTypelessLength(t *testing.T) {
	got, err := ParseString(`{"coordinates": [[0, 0], [3, 4]]}`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if l := Length(got); l != 5 {
		t.Errorf("Length = %v, want 5", l)
	}
}

func TestFromGeometryNil(t *testing.T) {
	if _, err := FromGeometry(nil); !errors.Is(err, ErrMalformedGeometry) {
		t.Errorf("FromGeometry(nil) error = %v, want ErrMalformedGeometry", err)
	}
	if _, err := FromGeometry(geojson.NewGeometry(orb.Point{1, 2})); !errors.Is(err, ErrMalformedGeometry) {
		t.Errorf("FromGeometry(point) error = %v, want ErrMalformedGeometry", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	ls := orb.LineString{{0, 0}, {3, 4}, {6, 8}}
	text, err := Encode(ls)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := ParseString(text)
	if err != nil {
		t.Fatalf("ParseString(%s): %v", text, err)
	}
	if diff := cmp.Diff(ls, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLength(t *testing.T) {
	tests := []struct {
		name string
		ls   orb.LineString
		want float64
	}{
		{"empty", nil, 0},
		{"single point", orb.LineString{{1, 1}}, 0},
		{"3-4-5 triangle", orb.LineString{{0, 0}, {3, 4}}, 5},
		{"two legs", orb.LineString{{0, 0}, {3, 4}, {3, 10}}, 11},
	}

	for _, tt := range tests {
		if got := Length(tt.ls); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: Length = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		a, b orb.LineString
		want orb.LineString
	}{
		{
			name: "shared vertex kept once",
			a:    orb.LineString{{0, 0}, {1, 0}},
			b:    orb.LineString{{1, 0}, {2, 0}},
			want: orb.LineString{{0, 0}, {1, 0}, {2, 0}},
		},
		{
			name: "disjoint geometries concatenated",
			a:    orb.LineString{{0, 0}, {1, 0}},
			b:    orb.LineString{{1.5, 0}, {2, 0}},
			want: orb.LineString{{0, 0}, {1, 0}, {1.5, 0}, {2, 0}},
		},
		{
			name: "empty first operand",
			a:    nil,
			b:    orb.LineString{{1, 0}, {2, 0}},
			want: orb.LineString{{1, 0}, {2, 0}},
		},
		{
			name: "empty second operand",
			a:    orb.LineString{{0, 0}, {1, 0}},
			b:    orb.LineString{},
			want: orb.LineString{{0, 0}, {1, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.a, tt.b)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Merge mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	a := make(orb.LineString, 2, 8)
	a[0], a[1] = orb.Point{0, 0}, orb.Point{1, 0}
	b := orb.LineString{{1, 0}, {2, 0}}

	merged := Merge(a, b)
	merged[0] = orb.Point{99, 99}
	if a[0] != (orb.Point{0, 0}) {
		t.Error("Merge wrote through to its first operand")
	}
}

func TestMergeNotCommutative(t *testing.T) {
	a := orb.LineString{{0, 0}, {1, 0}}
	b := orb.LineString{{1, 0}, {2, 0}}
	if cmp.Equal(Merge(a, b), Merge(b, a)) {
		t.Error("Merge(a, b) and Merge(b, a) should differ")
	}
}

func TestMergedLengthIsSumOfParts(t *testing.T) {
	a := orb.LineString{{0, 0}, {30, 40}, {60, 40}}
	b := orb.LineString{{60, 40}, {60, 100}, {100, 130}}

	got := Length(Merge(a, b))
	want := Length(a) + Length(b)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("merged length = %v, want %v", got, want)
	}
}

func TestPointAt(t *testing.T) {
	ls := orb.LineString{{0, 0}, {1, 1}, {2, 2}}
	if p, ok := PointAt(ls, 2); !ok || p != (orb.Point{2, 2}) {
		t.Errorf("PointAt(2) = %v, %v", p, ok)
	}
	for _, i := range []int{-1, 3} {
		if _, ok := PointAt(ls, i); ok {
			t.Errorf("PointAt(%d) should be out of range", i)
		}
	}
}
