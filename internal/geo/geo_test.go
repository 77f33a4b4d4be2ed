package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 36.7538, lng1: 3.0588,
			lat2: 36.7538, lng2: 3.0588,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "Algiers centre to Bab Ezzouar (~13km)",
			lat1: 36.7538, lng1: 3.0588,
			lat2: 36.7212, lng2: 3.1890,
			wantKm:    12.2,
			tolerance: 1.5,
		},
		{
			name: "Algiers to Oran (~355km)",
			lat1: 36.7538, lng1: 3.0588,
			lat2: 35.6971, lng2: -0.6308,
			wantKm:    350,
			tolerance: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := HaversineKm(36.0, 3.0, 35.0, 2.0)
	d2 := HaversineKm(35.0, 2.0, 36.0, 3.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestRound1(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{1.04, 1.0},
		{1.05, 1.1},
		{12.349, 12.3},
		{12.35, 12.4},
	}
	for _, tc := range cases {
		if got := Round1(tc.in); got != tc.want {
			t.Errorf("Round1(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(36.75, 3.05) {
		t.Error("finite coordinates reported as non-finite")
	}
	if IsFinite(math.NaN(), 3.05) || IsFinite(36.75, math.Inf(1)) {
		t.Error("non-finite coordinates reported as finite")
	}
}

func TestSortByDistance(t *testing.T) {
	type cand struct {
		id   string
		dist float64
	}
	items := []cand{{"c", 5.0}, {"a", 1.0}, {"b", 3.0}}

	SortByDistance(items, func(c cand) float64 { return c.dist })

	if items[0].id != "a" || items[1].id != "b" || items[2].id != "c" {
		t.Errorf("unexpected sort order: %v", items)
	}

	var empty []cand
	SortByDistance(empty, func(c cand) float64 { return c.dist })
}
