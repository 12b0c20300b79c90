// Package geo filters sounding coordinates against a fixed bounding box.
package geo

import "fmt"

// Box is an open rectangle in geographic coordinates. Points exactly on an
// edge are outside.
type Box struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// Contains reports whether the point lies strictly inside the box.
func (b Box) Contains(lat, lon float64) bool {
	return lat > b.LatMin && lat < b.LatMax && lon > b.LonMin && lon < b.LonMax
}

// MatchIndices applies Contains elementwise over parallel latitude and
// longitude arrays and returns the indices where it holds.
func (b Box) MatchIndices(lats, lons []float64) ([]int, error) {
	if len(lats) != len(lons) {
		return nil, fmt.Errorf("latitude and longitude arrays differ in length: %d vs %d", len(lats), len(lons))
	}
	var idx []int
	for i := range lats {
		if b.Contains(lats[i], lons[i]) {
			idx = append(idx, i)
		}
	}
	return idx, nil
}
