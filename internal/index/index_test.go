package index

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/textfang/internal/cluster"
	"github.com/Sumatoshi-tech/textfang/internal/observability"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/lsh"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/minhash"
)

func testConfig() Config {
	return Config{
		NumBands:               16,
		BandWidth:              8,
		Tokenization:           minhash.TokenizationWhitespace,
		WindowSize:             0,
		JaccardThreshold:       0.7,
		BandID:                 lsh.AllBands,
		BatchSize:              4,
		NumDuplicatesThreshold: 0,
	}
}

func newTestIndexer(t *testing.T, cfg Config) *Indexer {
	t.Helper()

	ix, err := New(cfg, observability.NewMetrics(), noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)

	return ix
}

// writeCorpus writes texts as a zstd JSONL file and returns its path.
func writeCorpus(t *testing.T, dir, name string, texts []string) string {
	t.Helper()

	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(file)
	require.NoError(t, err)

	for i, text := range texts {
		_, err = fmt.Fprintf(enc, "{\"id\":%d,\"text\":%q,\"u\":\"http://example.com/%d\"}\n", i, text, i)
		require.NoError(t, err)
	}

	require.NoError(t, enc.Close())
	require.NoError(t, file.Close())

	return path
}

func longText(prefix string, n int) string {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "%s%d ", prefix, i)
	}

	return sb.String()
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := New(cfg, observability.NewMetrics(), noop.NewTracerProvider().Tracer("test"))
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	cfg = testConfig()
	cfg.Tokenization = minhash.TokenizationChar
	cfg.WindowSize = 0
	_, err = New(cfg, observability.NewMetrics(), noop.NewTracerProvider().Tracer("test"))
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestIndexAll_AssignsDenseIDs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Two files, batch size 4: ids must stay dense across batch and file
	// boundaries.
	var texts1, texts2 []string
	for i := range 10 {
		texts1 = append(texts1, longText(fmt.Sprintf("one%d-", i), 20))
	}

	for i := range 5 {
		texts2 = append(texts2, longText(fmt.Sprintf("two%d-", i), 20))
	}

	p1 := writeCorpus(t, dir, "a.jsonl.zst", texts1)
	p2 := writeCorpus(t, dir, "b.jsonl.zst", texts2)

	ix := newTestIndexer(t, testConfig())
	require.NoError(t, ix.IndexAll(context.Background(), []string{p1, p2}))

	assert.Equal(t, 15, ix.Size())
}

func TestClusters_TwoIdenticalDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	text := longText("dup", 40)
	path := writeCorpus(t, dir, "in.jsonl.zst", []string{text, text})

	ix := newTestIndexer(t, testConfig())
	require.NoError(t, ix.IndexAll(context.Background(), []string{path}))

	uf := ix.Clusters(context.Background())

	assert.Equal(t, []uint32{0, 0}, uf.Parents())
}

func TestClusters_DisjointDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeCorpus(t, dir, "in.jsonl.zst", []string{
		longText("alpha", 40),
		longText("beta", 40),
		longText("gamma", 40),
	})

	ix := newTestIndexer(t, testConfig())
	require.NoError(t, ix.IndexAll(context.Background(), []string{path}))

	uf := ix.Clusters(context.Background())

	assert.Equal(t, []uint32{0, 1, 2}, uf.Parents())
}

func TestIndexAll_MalformedLineFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl.zst")

	file, err := os.Create(path)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(file)
	require.NoError(t, err)
	_, err = enc.Write([]byte("{\"id\":0,\"text\":\"ok\"}\nnot json\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, file.Close())

	ix := newTestIndexer(t, testConfig())

	assert.Error(t, ix.IndexAll(context.Background(), []string{path}))
}

// queryToParents runs the query pass and feeds the artifact back through
// the cluster reader, as the dedup stage would.
func queryToParents(t *testing.T, ix *Indexer, files []string) []uint32 {
	t.Helper()

	var buf bytes.Buffer

	w, err := cluster.NewWriter(&buf, 3)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(ix.Size()))
	require.NoError(t, ix.QueryAll(context.Background(), files, w))
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "clusters.zst")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	uf, err := cluster.Read(path)
	require.NoError(t, err)
	uf.Flatten()

	return uf.Parents()
}

func TestQueryAll_DiscardOverflow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	text := longText("same", 40)
	path := writeCorpus(t, dir, "in.jsonl.zst", []string{text, text, text})

	cfg := testConfig()
	cfg.NumDuplicatesThreshold = 2

	ix := newTestIndexer(t, cfg)
	require.NoError(t, ix.IndexAll(context.Background(), []string{path}))

	parents := queryToParents(t, ix, []string{path})

	assert.Equal(t, []uint32{0, 0, 0}, parents)
}

func TestQueryAll_NoThresholdKeepsClusters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dup := longText("pair", 40)
	path := writeCorpus(t, dir, "in.jsonl.zst", []string{
		dup,
		longText("solo", 40),
		dup,
	})

	ix := newTestIndexer(t, testConfig())
	require.NoError(t, ix.IndexAll(context.Background(), []string{path}))

	parents := queryToParents(t, ix, []string{path})

	assert.Equal(t, parents[0], parents[2], "identical docs share a cluster")
	assert.Equal(t, uint32(1), parents[1])
}
