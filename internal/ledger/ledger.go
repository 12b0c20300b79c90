// Package ledger records which dates, listing URLs, and granule files have
// already been processed, so re-runs skip completed work.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind selects one of the three ledger logs.
type Kind string

const (
	KindDate    Kind = "date"
	KindListing Kind = "listing"
	KindFile    Kind = "file"
)

var kinds = []Kind{KindDate, KindListing, KindFile}

// Ledger is the capability set the pipeline needs for idempotent skip-checks.
// A token is marked at the moment processing starts, not after success, so a
// crashed attempt is never retried.
type Ledger interface {
	// HasSeen reports whether token was previously recorded under kind.
	// The test is a substring match against the whole log: a token that is
	// a substring of any recorded entry counts as seen.
	HasSeen(kind Kind, token string) (bool, error)
	// MarkSeen appends token to the log for kind. It never deduplicates
	// and never fails because the token is already present.
	MarkSeen(kind Kind, token string) error
}

// FileLedger backs each Kind with an append-only line-oriented text file,
// one token per line. It is safe for a single process only; concurrent
// invocations against the same directory are unsupported.
type FileLedger struct {
	paths map[Kind]string
}

// NewFileLedger creates the ledger directory and empty log files as needed.
func NewFileLedger(dir string) (*FileLedger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory %s: %w", dir, err)
	}

	l := &FileLedger{paths: make(map[Kind]string, len(kinds))}
	for _, k := range kinds {
		path := filepath.Join(dir, fmt.Sprintf("%s.log", k))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("create ledger log %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close ledger log %s: %w", path, err)
		}
		l.paths[k] = path
	}
	return l, nil
}

// HasSeen implements Ledger.
func (l *FileLedger) HasSeen(kind Kind, token string) (bool, error) {
	path, ok := l.paths[kind]
	if !ok {
		return false, fmt.Errorf("unknown ledger kind %q", kind)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read ledger log %s: %w", path, err)
	}
	return strings.Contains(string(data), token), nil
}

// MarkSeen implements Ledger.
func (l *FileLedger) MarkSeen(kind Kind, token string) error {
	path, ok := l.paths[kind]
	if !ok {
		return fmt.Errorf("unknown ledger kind %q", kind)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger log %s: %w", path, err)
	}
	if _, err := f.WriteString(token + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append to ledger log %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger log %s: %w", path, err)
	}
	return nil
}

// Paths returns the on-disk log file locations, keyed by kind.
func (l *FileLedger) Paths() []string {
	paths := make([]string, 0, len(kinds))
	for _, k := range kinds {
		paths = append(paths, l.paths[k])
	}
	return paths
}
