// Package sink appends sounding rows to the persistent output table.
package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Appender writes rows to a comma-separated table file. The header row is
// written exactly once, when the file is first created; every later write is
// a pure append. Existing rows are never rewritten or reordered.
type Appender struct {
	path    string
	columns []string
}

// NewAppender creates an appender for the table at path with the given
// header columns.
func NewAppender(path string, columns []string) *Appender {
	return &Appender{path: path, columns: columns}
}

// Append writes rows to the table, creating it (with header) on first use.
// A zero-length rows slice is a no-op and does not create the file. Rows are
// written sequentially with no transactional guarantee: a failure mid-batch
// leaves previously written rows intact.
func (a *Appender) Append(rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create table directory %s: %w", dir, err)
		}
	}

	_, statErr := os.Stat(a.path)
	writeHeader := os.IsNotExist(statErr)
	if statErr != nil && !writeHeader {
		return fmt.Errorf("stat table %s: %w", a.path, statErr)
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open table %s: %w", a.path, err)
	}

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(a.columns); err != nil {
			f.Close()
			return fmt.Errorf("write table header: %w", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write table row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush table %s: %w", a.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close table %s: %w", a.path, err)
	}
	return nil
}

// Path returns the table file location.
func (a *Appender) Path() string {
	return a.path
}
