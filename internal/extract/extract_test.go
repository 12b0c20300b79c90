package extract

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limnosat/sif-harvester/internal/granule"
)

// fakeReader serves canned arrays and counts field reads.
type fakeReader struct {
	floats map[string][]float64
	times  []string
	reads  int
}

func (f *fakeReader) Floats(path, field string) ([]float64, error) {
	f.reads++
	arr, ok := f.floats[field]
	if !ok {
		return nil, fmt.Errorf("%w: no numeric field %q", granule.ErrSchema, field)
	}
	return arr, nil
}

func (f *fakeReader) Strings(path, field string) ([]string, error) {
	f.reads++
	if field != granule.FieldTime {
		return nil, fmt.Errorf("%w: no text field %q", granule.ErrSchema, field)
	}
	return f.times, nil
}

func newFakeReader(n int) *fakeReader {
	f := &fakeReader{floats: make(map[string][]float64)}
	for _, field := range []string{
		granule.FieldLatitude, granule.FieldLongitude,
		granule.FieldSIF757, granule.FieldSIF757Uncert,
		granule.FieldSIF771, granule.FieldSIF771Uncert,
		granule.FieldQualityFlag, granule.FieldCosSZA,
	} {
		arr := make([]float64, n)
		for i := range arr {
			arr[i] = float64(i) / 100
		}
		f.floats[field] = arr
	}
	for i := 0; i < n; i++ {
		f.times = append(f.times, fmt.Sprintf("2020-01-15T17:42:%02d", i%60))
	}
	return f
}

func TestExtractSelectedIndices(t *testing.T) {
	reader := newFakeReader(100)
	reader.floats[granule.FieldLatitude][7] = 46.2
	reader.floats[granule.FieldLongitude][7] = -90.1
	reader.floats[granule.FieldSIF757][7] = 1.25e-9
	reader.floats[granule.FieldSIF757Uncert][7] = 3.1e-10
	reader.floats[granule.FieldSIF771][7] = 9.8e-10
	reader.floats[granule.FieldSIF771Uncert][7] = 2.7e-10
	reader.floats[granule.FieldQualityFlag][7] = 2
	reader.floats[granule.FieldCosSZA][7] = 0.41

	e := New(reader)
	records, err := e.Extract("/tmp/scratch", "oco2_x.h5", "http://a/oco2_x.h5", []int{7, 20, 93})
	require.NoError(t, err)
	require.Len(t, records, 3)

	r := records[0]
	assert.Equal(t, "oco2_x.h5", r.Granule)
	assert.Equal(t, "http://a/oco2_x.h5", r.GranuleURL)
	assert.Equal(t, 46.2, r.Latitude)
	assert.Equal(t, -90.1, r.Longitude)
	assert.Equal(t, "2020-01-15T17:42:07", r.Time)
	assert.Equal(t, "2020-01-15", r.Date)
	assert.Equal(t, 1.25e-9, r.SIF757)
	assert.Equal(t, 3.1e-10, r.SIF757Uncert)
	assert.Equal(t, 9.8e-10, r.SIF771)
	assert.Equal(t, 2.7e-10, r.SIF771Uncert)
	assert.Equal(t, 2, r.QualityFlag)
	assert.Equal(t, 0.41, r.CosSZA)
}

func TestExtractEmptyIndicesReadsNothing(t *testing.T) {
	reader := newFakeReader(100)

	e := New(reader)
	records, err := e.Extract("/tmp/scratch", "oco2_x.h5", "http://a/oco2_x.h5", nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, reader.reads)
}

func TestExtractMalformedTime(t *testing.T) {
	reader := newFakeReader(5)
	reader.times[2] = "not-a-timestamp"

	e := New(reader)
	_, err := e.Extract("/tmp/scratch", "oco2_x.h5", "http://a/oco2_x.h5", []int{2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse sounding time")
}

func TestExtractMissingField(t *testing.T) {
	reader := newFakeReader(5)
	delete(reader.floats, granule.FieldCosSZA)

	e := New(reader)
	_, err := e.Extract("/tmp/scratch", "oco2_x.h5", "http://a/oco2_x.h5", []int{0})
	require.ErrorIs(t, err, granule.ErrSchema)
}

func TestExtractLengthMismatch(t *testing.T) {
	reader := newFakeReader(5)
	reader.floats[granule.FieldSIF771] = reader.floats[granule.FieldSIF771][:3]

	e := New(reader)
	_, err := e.Extract("/tmp/scratch", "oco2_x.h5", "http://a/oco2_x.h5", []int{0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "differ in length")
}

func TestExtractIndexOutOfRange(t *testing.T) {
	reader := newFakeReader(5)

	e := New(reader)
	_, err := e.Extract("/tmp/scratch", "oco2_x.h5", "http://a/oco2_x.h5", []int{5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestRecordRowMatchesColumns(t *testing.T) {
	r := Record{
		Granule: "g", GranuleURL: "u",
		Latitude: 46.5, Longitude: -90.25,
		Time: "2020-01-15T17:42:07", Date: "2020-01-15",
		SIF757: 1.5e-9, SIF757Uncert: 1e-10,
		SIF771: 1.1e-9, SIF771Uncert: 9e-11,
		QualityFlag: 1, CosSZA: 0.5,
	}
	row := r.Row()
	require.Len(t, row, len(Columns))
	assert.Equal(t, "g", row[0])
	assert.Equal(t, "46.5", row[2])
	assert.Equal(t, "-90.25", row[3])
	assert.Equal(t, "2020-01-15", row[5])
	assert.Equal(t, "1.5e-09", row[6])
	assert.Equal(t, "1", row[10])
	assert.Equal(t, "0.5", row[11])
}
