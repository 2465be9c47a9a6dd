package pagination

import (
	"reflect"
	"testing"
)

const E = Ellipsis

func TestMarkers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		current int
		total   int
		want    []Marker
	}{
		{name: "no pages", current: 1, total: 0, want: []Marker{}},
		{name: "negative total", current: 1, total: -3, want: []Marker{}},
		{name: "single page", current: 1, total: 1, want: []Marker{1}},
		{name: "short list", current: 1, total: 5, want: []Marker{1, 2, 3, 4, 5}},
		{name: "seven pages", current: 4, total: 7, want: []Marker{1, 2, 3, 4, 5, 6, 7}},
		{name: "eight pages head", current: 1, total: 8, want: []Marker{1, 2, 3, 4, E, 8}},
		{name: "head", current: 1, total: 10, want: []Marker{1, 2, 3, 4, E, 10}},
		{name: "head boundary", current: 3, total: 10, want: []Marker{1, 2, 3, 4, E, 10}},
		{name: "tail", current: 10, total: 10, want: []Marker{1, E, 7, 8, 9, 10}},
		{name: "tail boundary", current: 8, total: 10, want: []Marker{1, E, 7, 8, 9, 10}},
		{name: "middle", current: 5, total: 10, want: []Marker{1, E, 4, 5, 6, E, 10}},
		{name: "middle low edge", current: 4, total: 10, want: []Marker{1, E, 3, 4, 5, E, 10}},
		{name: "zero current clamps", current: 0, total: 10, want: []Marker{1, 2, 3, 4, E, 10}},
		{name: "past end clamps", current: 99, total: 10, want: []Marker{1, E, 7, 8, 9, 10}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := Markers(tc.current, tc.total)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Markers(%d, %d) = %v, want %v", tc.current, tc.total, got, tc.want)
			}
		})
	}
}

func TestMarkersEndpoints(t *testing.T) {
	t.Parallel()

	for total := 1; total <= 30; total++ {
		for current := 1; current <= total; current++ {
			markers := Markers(current, total)
			if markers[0] != 1 {
				t.Fatalf("Markers(%d, %d) starts with %v", current, total, markers[0])
			}
			if markers[len(markers)-1] != Marker(total) {
				t.Fatalf("Markers(%d, %d) ends with %v", current, total, markers[len(markers)-1])
			}

			found := false
			for i, m := range markers {
				if m == Marker(current) {
					found = true
				}
				if i > 0 && m.IsEllipsis() && markers[i-1].IsEllipsis() {
					t.Fatalf("Markers(%d, %d) has adjacent ellipses: %v", current, total, markers)
				}
			}
			if !found {
				t.Fatalf("Markers(%d, %d) omits the current page: %v", current, total, markers)
			}
		}
	}
}

func TestTotalPagesAndOffset(t *testing.T) {
	t.Parallel()

	if got := TotalPages(0, 9); got != 0 {
		t.Fatalf("expected 0 pages for no items, got %d", got)
	}
	if got := TotalPages(9, 9); got != 1 {
		t.Fatalf("expected 1 page, got %d", got)
	}
	if got := TotalPages(10, 9); got != 2 {
		t.Fatalf("expected 2 pages, got %d", got)
	}
	if got := Offset(3, 9); got != 18 {
		t.Fatalf("expected offset 18, got %d", got)
	}
	if got := Offset(0, 9); got != 0 {
		t.Fatalf("expected offset 0 for page 0, got %d", got)
	}
}
