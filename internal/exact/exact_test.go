package exact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/textfang/internal/observability"
	"github.com/Sumatoshi-tech/textfang/pkg/zio"
)

const testShardSize = 1 << 20

func writeCorpus(t *testing.T, dir, name string, texts []string) string {
	t.Helper()

	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(file)
	require.NoError(t, err)

	for i, text := range texts {
		_, err = fmt.Fprintf(enc, "{\"id\":%d,\"text\":%q}\n", i, text)
		require.NoError(t, err)
	}

	require.NoError(t, enc.Close())
	require.NoError(t, file.Close())

	return path
}

func readShardLines(t *testing.T, prefix string, shards int) []string {
	t.Helper()

	var files []string
	for n := 1; n <= shards; n++ {
		files = append(files, fmt.Sprintf("%s.%d.zst", prefix, n))
	}

	var lines []string

	reader := zio.NewLineReader(files, 100)
	for line := range reader.Lines() {
		lines = append(lines, string(line))
	}

	require.NoError(t, reader.Err())

	return lines
}

// runPass deduplicates files into a fresh shard prefix and returns the
// deduper and the output prefix.
func runPass(t *testing.T, files []string, numElements uint) (*Deduper, string) {
	t.Helper()

	prefix := filepath.Join(t.TempDir(), "out")

	writer, err := zio.NewSplitWriter(prefix, testShardSize, 3, 1)
	require.NoError(t, err)

	d, err := New(numElements, writer, observability.NewMetrics(), slog.Default())
	require.NoError(t, err)

	require.NoError(t, d.Run(files, DefaultChannelCapacity))
	require.NoError(t, writer.Close())

	return d, prefix
}

func TestRun_DropsExactDuplicates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// 1000 inputs, 200 of them exact duplicates of earlier texts.
	var texts []string
	for i := range 800 {
		texts = append(texts, fmt.Sprintf("unique document body %d", i))
	}

	for i := range 200 {
		texts = append(texts, fmt.Sprintf("unique document body %d", i))
	}

	path := writeCorpus(t, dir, "in.jsonl.zst", texts)

	d, prefix := runPass(t, []string{path}, 1000)

	assert.Equal(t, 1000, d.NumDocs())

	// Allow for the configured false-positive rate dropping a stray unique.
	assert.InDelta(t, 800, d.Kept(), 2)

	lines := readShardLines(t, prefix, 1)
	assert.Len(t, lines, d.Kept())
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var texts []string
	for i := range 300 {
		texts = append(texts, fmt.Sprintf("doc %d", i%200))
	}

	path := writeCorpus(t, dir, "in.jsonl.zst", texts)

	first, firstPrefix := runPass(t, []string{path}, 1000)
	require.InDelta(t, 200, first.Kept(), 2)

	// Running the pass on its own output discards nothing further.
	second, secondPrefix := runPass(t, []string{firstPrefix + ".1.zst"}, 1000)

	assert.Equal(t, first.Kept(), second.NumDocs())
	assert.Equal(t, first.Kept(), second.Kept())
	assert.Equal(t,
		readShardLines(t, firstPrefix, 1),
		readShardLines(t, secondPrefix, 1))
}

func TestRun_FirstSeenWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeCorpus(t, dir, "in.jsonl.zst", []string{"same", "same", "other"})

	d, prefix := runPass(t, []string{path}, 100)

	require.Equal(t, 2, d.Kept())

	lines := readShardLines(t, prefix, 1)
	assert.Equal(t, `{"id":0,"text":"same"}`, lines[0])
	assert.Equal(t, `{"id":2,"text":"other"}`, lines[1])
}

func TestRun_MalformedDocumentFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl.zst")

	file, err := os.Create(path)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(file)
	require.NoError(t, err)
	_, err = enc.Write([]byte("{broken\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, file.Close())

	prefix := filepath.Join(t.TempDir(), "out")
	writer, err := zio.NewSplitWriter(prefix, testShardSize, 3, 1)
	require.NoError(t, err)

	d, err := New(100, writer, observability.NewMetrics(), slog.Default())
	require.NoError(t, err)

	assert.Error(t, d.Run([]string{path}, DefaultChannelCapacity))
	require.NoError(t, writer.Close())
}
