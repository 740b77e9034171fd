package cluster

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ParentsForm(t *testing.T) {
	t.Parallel()

	uf, err := Parse(strings.NewReader("2\n0 0\n"))

	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 0}, uf.Parents())
}

func TestParse_ParentsFormIdentity(t *testing.T) {
	t.Parallel()

	uf, err := Parse(strings.NewReader("3\n0 1 2\n"))

	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, uf.Parents())
}

func TestParse_HeaderExtraTokensIgnored(t *testing.T) {
	t.Parallel()

	uf, err := Parse(strings.NewReader("3 extra tokens\n0 0 2\n"))

	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 0, 2}, uf.Parents())
}

func TestParse_MergedBandShards(t *testing.T) {
	t.Parallel()

	// Two per-band parents arrays: band one links 1 under 0, band two
	// links 2 under 1. Stray repeated header lines are skipped.
	input := "3\n0 0 2\n3\n0 1 1\n"

	uf, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, uf.Find(0), uf.Find(1))
	assert.Equal(t, uf.Find(0), uf.Find(2))
}

func TestParse_QueryForm(t *testing.T) {
	t.Parallel()

	// Record i lists the ids matching document i's probe.
	input := "3\n0 2\n1\n2 0\n"

	uf, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, uf.Find(0), uf.Find(2))
	assert.NotEqual(t, uf.Find(0), uf.Find(1))
}

func TestParse_QueryFormDiscard(t *testing.T) {
	t.Parallel()

	// Three mutually similar docs over the duplicate threshold: all three
	// records are DISCARD. Documents 1 and 2 are unioned under 0.
	input := "3\nDISCARD\nDISCARD\nDISCARD\n"

	uf, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 0, 0}, uf.Parents())
}

func TestParse_DiscardNeverOwnParent(t *testing.T) {
	t.Parallel()

	// A discarded document other than 0 must not survive as its own parent.
	input := "4\n0\n1\nDISCARD\n3\n"

	uf, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.NotEqual(t, uint32(2), uf.Parents()[2])
	assert.Equal(t, uf.Find(0), uf.Find(2))
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmptyFile},
		{"bad header", "abc\n", ErrBadHeader},
		{"negative header", "-2\n", ErrBadHeader},
		{"bad token", "2\n0 zzz\n", ErrBadToken},
		{"id out of range", "2\n0 7\n", ErrIDOutOfRange},
		{"too many records", "2\nDISCARD\nDISCARD\nDISCARD\n", ErrTooManyRecords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteParents_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w, err := NewWriter(&buf, 3)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(4))
	require.NoError(t, w.WriteParents([]uint32{0, 0, 2, 2}))
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "clusters.zst")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	uf, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 0, 2, 2}, uf.Parents())
}

func TestWriteQueryRecords_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w, err := NewWriter(&buf, 3)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(3))
	require.NoError(t, w.WriteQueryRecord([]int{0, 1}))
	require.NoError(t, w.WriteQueryRecord([]int{1, 0}))
	require.NoError(t, w.WriteDiscard())
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "clusters.zst")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	uf, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, uf.Find(0), uf.Find(1))
	assert.Equal(t, uf.Find(0), uf.Find(2))
}

func TestRead_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Read("/nonexistent/clusters.zst")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/clusters.zst")
}
