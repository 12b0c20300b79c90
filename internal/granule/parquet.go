package granule

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/parquet-go/parquet-go"
)

// soundingRow is the per-sounding record layout of a granule file.
type soundingRow struct {
	Latitude     float64 `parquet:"latitude"`
	Longitude    float64 `parquet:"longitude"`
	Time         string  `parquet:"time_string"`
	SIF757       float64 `parquet:"fluorescence_radiance_757nm"`
	SIF757Uncert float64 `parquet:"fluorescence_radiance_757nm_uncert"`
	SIF771       float64 `parquet:"fluorescence_radiance_771nm"`
	SIF771Uncert float64 `parquet:"fluorescence_radiance_771nm_uncert"`
	QualityFlag  int32   `parquet:"sounding_qual_flag"`
	CosSZA       float64 `parquet:"cos_sza"`
}

// ParquetReader implements Reader for parquet granules, optionally wrapped in
// gzip. Rows from the most recently read file are cached, since the pipeline
// reads several fields from the same scratch path in sequence. The cache is
// invalidated when the file at the path changes (the scratch path is reused
// for every download). Not safe for concurrent use.
type ParquetReader struct {
	cachedPath string
	cachedStat fileStat
	cachedRows []soundingRow
}

type fileStat struct {
	size    int64
	modTime int64
}

// NewParquetReader returns an empty reader.
func NewParquetReader() *ParquetReader {
	return &ParquetReader{}
}

// Floats implements Reader.
func (r *ParquetReader) Floats(path string, field string) ([]float64, error) {
	rows, err := r.load(path)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for i, row := range rows {
		switch field {
		case FieldLatitude:
			out[i] = row.Latitude
		case FieldLongitude:
			out[i] = row.Longitude
		case FieldSIF757:
			out[i] = row.SIF757
		case FieldSIF757Uncert:
			out[i] = row.SIF757Uncert
		case FieldSIF771:
			out[i] = row.SIF771
		case FieldSIF771Uncert:
			out[i] = row.SIF771Uncert
		case FieldQualityFlag:
			out[i] = float64(row.QualityFlag)
		case FieldCosSZA:
			out[i] = row.CosSZA
		default:
			return nil, fmt.Errorf("%w: no numeric field %q", ErrSchema, field)
		}
	}
	return out, nil
}

// Strings implements Reader.
func (r *ParquetReader) Strings(path string, field string) ([]string, error) {
	rows, err := r.load(path)
	if err != nil {
		return nil, err
	}
	if field != FieldTime {
		return nil, fmt.Errorf("%w: no text field %q", ErrSchema, field)
	}

	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Time
	}
	return out, nil
}

func (r *ParquetReader) load(path string) ([]soundingRow, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat granule %s: %w", path, err)
	}
	stat := fileStat{size: info.Size(), modTime: info.ModTime().UnixNano()}

	if path == r.cachedPath && stat == r.cachedStat && r.cachedRows != nil {
		return r.cachedRows, nil
	}
	r.cachedPath = ""
	r.cachedRows = nil

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read granule %s: %w", path, err)
	}

	if isGzip(data) {
		data, err = gunzip(data)
		if err != nil {
			return nil, fmt.Errorf("decompress granule %s: %w", path, err)
		}
	}

	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSchema, path, err)
	}

	reader := parquet.NewGenericReader[soundingRow](pf)
	defer reader.Close()

	rows := make([]soundingRow, 0, reader.NumRows())
	buf := make([]soundingRow, 256)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrSchema, path, err)
		}
	}

	r.cachedPath = path
	r.cachedStat = stat
	r.cachedRows = rows
	return rows, nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
