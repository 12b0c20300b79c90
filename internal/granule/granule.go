// Package granule reads measurement fields out of downloaded sounding files.
//
// The pipeline only depends on the Reader interface; the concrete container
// format lives behind it.
package granule

import "errors"

// Field names addressable through a Reader.
const (
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldTime         = "time_string"
	FieldSIF757       = "fluorescence_radiance_757nm"
	FieldSIF757Uncert = "fluorescence_radiance_757nm_uncert"
	FieldSIF771       = "fluorescence_radiance_771nm"
	FieldSIF771Uncert = "fluorescence_radiance_771nm_uncert"
	FieldQualityFlag  = "sounding_qual_flag"
	FieldCosSZA       = "cos_sza"
)

// ErrSchema reports a granule whose contents do not match the expected
// sounding schema. It is recoverable: the caller skips the granule.
var ErrSchema = errors.New("granule schema mismatch")

// Reader extracts per-sounding field arrays from a granule file. All arrays
// from one granule are parallel: index i addresses the same sounding in each.
type Reader interface {
	// Floats reads a numeric field for every sounding in the file.
	Floats(path string, field string) ([]float64, error)
	// Strings reads a text field for every sounding in the file.
	Strings(path string, field string) ([]string, error)
}
