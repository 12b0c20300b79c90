// Package extract pulls matched soundings out of a granule into row records
// for the output table.
package extract

import (
	"fmt"
	"strconv"
	"time"

	"github.com/limnosat/sif-harvester/internal/granule"
)

// timeLayout is the raw sounding timestamp format, interpreted in UTC.
const timeLayout = "2006-01-02T15:04:05"

// Columns is the output table header, in the order rows are written.
var Columns = []string{
	"granule",
	"granule_url",
	"latitude",
	"longitude",
	"time",
	"date",
	"sif_757nm",
	"sif_757nm_uncert",
	"sif_771nm",
	"sif_771nm_uncert",
	"quality_flag",
	"cos_sza",
}

// Record is one extracted sounding. Immutable once constructed; written to
// the output table exactly once.
type Record struct {
	Granule      string
	GranuleURL   string
	Latitude     float64
	Longitude    float64
	Time         string // raw timestamp as stored in the granule
	Date         string // calendar date derived from Time
	SIF757       float64
	SIF757Uncert float64
	SIF771       float64
	SIF771Uncert float64
	QualityFlag  int
	CosSZA       float64
}

// Row renders the record as CSV fields in Columns order.
func (r Record) Row() []string {
	return []string{
		r.Granule,
		r.GranuleURL,
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
		r.Time,
		r.Date,
		formatFloat(r.SIF757),
		formatFloat(r.SIF757Uncert),
		formatFloat(r.SIF771),
		formatFloat(r.SIF771Uncert),
		strconv.Itoa(r.QualityFlag),
		formatFloat(r.CosSZA),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Extractor reads measurement fields for selected sounding indices.
type Extractor struct {
	reader granule.Reader
}

// New creates an Extractor over the given granule reader.
func New(reader granule.Reader) *Extractor {
	return &Extractor{reader: reader}
}

// Extract builds one Record per index in indices from the granule at path.
// An empty index set returns no records without reading any field. Any
// missing or malformed field aborts the whole granule: the caller skips it
// and moves to the next file.
func (e *Extractor) Extract(path, name, url string, indices []int) ([]Record, error) {
	if len(indices) == 0 {
		return nil, nil
	}

	lats, err := e.reader.Floats(path, granule.FieldLatitude)
	if err != nil {
		return nil, err
	}
	lons, err := e.reader.Floats(path, granule.FieldLongitude)
	if err != nil {
		return nil, err
	}
	times, err := e.reader.Strings(path, granule.FieldTime)
	if err != nil {
		return nil, err
	}
	sif757, err := e.reader.Floats(path, granule.FieldSIF757)
	if err != nil {
		return nil, err
	}
	sif757u, err := e.reader.Floats(path, granule.FieldSIF757Uncert)
	if err != nil {
		return nil, err
	}
	sif771, err := e.reader.Floats(path, granule.FieldSIF771)
	if err != nil {
		return nil, err
	}
	sif771u, err := e.reader.Floats(path, granule.FieldSIF771Uncert)
	if err != nil {
		return nil, err
	}
	flags, err := e.reader.Floats(path, granule.FieldQualityFlag)
	if err != nil {
		return nil, err
	}
	cosSZA, err := e.reader.Floats(path, granule.FieldCosSZA)
	if err != nil {
		return nil, err
	}

	n := len(lats)
	for _, arr := range [][]float64{lons, sif757, sif757u, sif771, sif771u, flags, cosSZA} {
		if len(arr) != n {
			return nil, fmt.Errorf("granule %s: field arrays differ in length", name)
		}
	}
	if len(times) != n {
		return nil, fmt.Errorf("granule %s: field arrays differ in length", name)
	}

	records := make([]Record, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("granule %s: index %d out of range (%d soundings)", name, i, n)
		}

		ts, err := time.ParseInLocation(timeLayout, times[i], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("granule %s: parse sounding time %q: %w", name, times[i], err)
		}

		records = append(records, Record{
			Granule:      name,
			GranuleURL:   url,
			Latitude:     lats[i],
			Longitude:    lons[i],
			Time:         times[i],
			Date:         ts.Format("2006-01-02"),
			SIF757:       sif757[i],
			SIF757Uncert: sif757u[i],
			SIF771:       sif771[i],
			SIF771Uncert: sif771u[i],
			QualityFlag:  int(flags[i]),
			CosSZA:       cosSZA[i],
		})
	}
	return records, nil
}
