package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLedgerCreatesEmptyLogs(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLedger(dir)
	require.NoError(t, err)

	for _, name := range []string{"date.log", "listing.log", "file.log"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Empty(t, data)
	}

	seen, err := l.HasSeen(KindDate, "2020-01-15")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMarkThenHasSeen(t *testing.T) {
	l, err := NewFileLedger(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, l.MarkSeen(KindDate, "2020-01-15"))

	seen, err := l.HasSeen(KindDate, "2020-01-15")
	require.NoError(t, err)
	assert.True(t, seen)

	// Kinds are independent logs.
	seen, err = l.HasSeen(KindListing, "2020-01-15")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestHasSeenSubstringSemantics(t *testing.T) {
	l, err := NewFileLedger(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, l.MarkSeen(KindFile, "oco2_L2IDPGL_02879a_140906_B7101_150910194435.h5"))

	// A token that is a substring of a recorded entry counts as seen.
	seen, err := l.HasSeen(KindFile, "02879a_140906")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = l.HasSeen(KindFile, "oco2_L2IDPGL_99999z")
	require.NoError(t, err)
	assert.False(t, seen)

	// Matching is case-sensitive.
	seen, err = l.HasSeen(KindFile, "OCO2_L2IDPGL_02879a")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMarkSeenNeverDeduplicates(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLedger(dir)
	require.NoError(t, err)

	require.NoError(t, l.MarkSeen(KindListing, "http://a/contents.html"))
	require.NoError(t, l.MarkSeen(KindListing, "http://a/contents.html"))

	data, err := os.ReadFile(filepath.Join(dir, "listing.log"))
	require.NoError(t, err)
	assert.Equal(t, "http://a/contents.html\nhttp://a/contents.html\n", string(data))
}

func TestLedgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	l, err := NewFileLedger(dir)
	require.NoError(t, err)
	require.NoError(t, l.MarkSeen(KindDate, "2019-12-31"))

	// Reopening must not truncate existing logs.
	l2, err := NewFileLedger(dir)
	require.NoError(t, err)

	seen, err := l2.HasSeen(KindDate, "2019-12-31")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestUnknownKind(t *testing.T) {
	l, err := NewFileLedger(t.TempDir())
	require.NoError(t, err)

	_, err = l.HasSeen(Kind("bogus"), "x")
	assert.Error(t, err)
	assert.Error(t, l.MarkSeen(Kind("bogus"), "x"))
}
