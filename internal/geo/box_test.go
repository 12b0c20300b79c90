package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var box = Box{LatMin: 45, LatMax: 47, LonMin: -91, LonMax: -89}

func TestContains(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"center", 46, -90, true},
		{"near lower corner", 45.001, -90.999, true},
		{"north of box", 47.5, -90, false},
		{"south of box", 44.5, -90, false},
		{"east of box", 46, -88.5, false},
		{"west of box", 46, -91.5, false},

		// The interval is open: boundary points are excluded.
		{"on lat min edge", 45, -90, false},
		{"on lat max edge", 47, -90, false},
		{"on lon min edge", 46, -91, false},
		{"on lon max edge", 46, -89, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, box.Contains(tc.lat, tc.lon))
		})
	}
}

func TestMatchIndices(t *testing.T) {
	lats := []float64{46.1, 45.0, 46.5, 10.0, 46.9}
	lons := []float64{-90.2, -90.0, -89.0, -90.0, -90.8}

	idx, err := box.MatchIndices(lats, lons)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4}, idx)
}

func TestMatchIndicesEmpty(t *testing.T) {
	idx, err := box.MatchIndices(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, idx)
}

func TestMatchIndicesLengthMismatch(t *testing.T) {
	_, err := box.MatchIndices([]float64{46}, []float64{-90, -90.5})
	assert.Error(t, err)
}
