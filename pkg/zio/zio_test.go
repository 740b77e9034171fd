package zio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeZst writes lines into a zstd-compressed file and returns its path.
func writeZst(t *testing.T, dir, name string, lines []string) string {
	t.Helper()

	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(file)
	require.NoError(t, err)

	for _, line := range lines {
		_, err = enc.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}

	require.NoError(t, enc.Close())
	require.NoError(t, file.Close())

	return path
}

// readZstLines decompresses a file back into its lines.
func readZstLines(t *testing.T, path string) []string {
	t.Helper()

	scanner, err := OpenLines(path)
	require.NoError(t, err)

	defer func() { require.NoError(t, scanner.Close()) }()

	var lines []string
	for scanner.Scan() {
		lines = append(lines, string(scanner.Line()))
	}

	require.NoError(t, scanner.Err())

	return lines
}

func TestBatchReader_BatchesInOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var lines []string
	for i := range 25 {
		lines = append(lines, fmt.Sprintf("line-%02d", i))
	}

	path := writeZst(t, dir, "in.jsonl.zst", lines)

	reader := NewBatchReader([]string{path}, 10)

	var got []string

	var sizes []int

	for batch := range reader.Batches() {
		sizes = append(sizes, len(batch))

		for _, line := range batch {
			got = append(got, string(line))
		}
	}

	require.NoError(t, reader.Err())
	assert.Equal(t, lines, got)
	assert.Equal(t, []int{10, 10, 5}, sizes)
}

func TestBatchReader_MultipleFilesKeepOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p1 := writeZst(t, dir, "a.jsonl.zst", []string{"a1", "a2"})
	p2 := writeZst(t, dir, "b.jsonl.zst", []string{"b1"})

	reader := NewBatchReader([]string{p1, p2}, 10)

	var got []string

	for batch := range reader.Batches() {
		for _, line := range batch {
			got = append(got, string(line))
		}
	}

	require.NoError(t, reader.Err())
	assert.Equal(t, []string{"a1", "a2", "b1"}, got)
}

func TestBatchReader_MissingFileFails(t *testing.T) {
	t.Parallel()

	reader := NewBatchReader([]string{"/nonexistent/input.zst"}, 10)

	for range reader.Batches() {
	}

	err := reader.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/input.zst")
}

func TestBatchReader_CorruptedFileFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "plain.jsonl.zst")
	require.NoError(t, os.WriteFile(path, []byte("not zstd at all\n"), 0o600))

	reader := NewBatchReader([]string{path}, 10)

	for range reader.Batches() {
	}

	require.Error(t, reader.Err())
}

func TestLineReader_StreamsAllLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeZst(t, dir, "in.jsonl.zst", []string{"x", "y", "z"})

	reader := NewLineReader([]string{path}, 100)

	var got []string
	for line := range reader.Lines() {
		got = append(got, string(line))
	}

	require.NoError(t, reader.Err())
	assert.Equal(t, []string{"x", "y", "z"}, got)
}

func TestSplitWriter_SingleShard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")

	w, err := NewSplitWriter(prefix, DefaultShardSize, 3, 1)
	require.NoError(t, err)

	require.NoError(t, w.WriteLine([]byte(`{"id":1,"text":"a"}`)))
	require.NoError(t, w.WriteLine([]byte(`{"id":2,"text":"b"}`)))
	require.NoError(t, w.Close())

	assert.Equal(t, 1, w.Shards())
	assert.Equal(t,
		[]string{`{"id":1,"text":"a"}`, `{"id":2,"text":"b"}`},
		readZstLines(t, prefix+".1.zst"))
}

func TestSplitWriter_RotatesOnSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")

	// Tiny shard size: every record after the first exceeds it.
	w, err := NewSplitWriter(prefix, 10, 3, 1)
	require.NoError(t, err)

	record := strings.Repeat("x", 20)
	for range 3 {
		require.NoError(t, w.WriteLine([]byte(record)))
	}

	require.NoError(t, w.Close())
	assert.Equal(t, 3, w.Shards())

	// No record is split across shards.
	for n := 1; n <= 3; n++ {
		lines := readZstLines(t, fmt.Sprintf("%s.%d.zst", prefix, n))
		require.Len(t, lines, 1)
		assert.Equal(t, record, lines[0])
	}
}

func TestPaste_ConcatenatesColumns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p1 := writeZst(t, dir, "c1.zst", []string{"a", "b", "c"})
	p2 := writeZst(t, dir, "c2.zst", []string{"1", "2"})

	paste, err := NewPaste([]string{p1, p2})
	require.NoError(t, err)

	defer func() { require.NoError(t, paste.Close()) }()

	var out bytes.Buffer
	_, err = paste.WriteTo(&out)
	require.NoError(t, err)

	assert.Equal(t, "a\t1\nb\t2\nc\t\n", out.String())
}

func TestPaste_SingleFilePassthrough(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p1 := writeZst(t, dir, "only.zst", []string{"x", "y"})

	paste, err := NewPaste([]string{p1})
	require.NoError(t, err)

	defer func() { require.NoError(t, paste.Close()) }()

	var out bytes.Buffer
	_, err = paste.WriteTo(&out)
	require.NoError(t, err)

	assert.Equal(t, "x\ny\n", out.String())
}
