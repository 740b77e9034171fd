// Package dedup implements the second pass of near-duplicate
// deduplication: streaming the corpus against a pre-computed cluster
// assignment and keeping one representative per cluster.
//
// The pass is deliberately cheap: it never parses records. A document is
// kept iff it is its own parent; the optional id rewrite and cluster-size
// splice edit the raw line under strict validation. The pass runs on far
// less memory than indexing — only the parents array is resident — which
// is the reason the pipeline persists the cluster artifact between the
// two phases.
package dedup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Sumatoshi-tech/textfang/internal/cluster"
	"github.com/Sumatoshi-tech/textfang/internal/corpus"
	"github.com/Sumatoshi-tech/textfang/internal/observability"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/unionfind"
	"github.com/Sumatoshi-tech/textfang/pkg/zio"
)

// outputBufferSize buffers the kept-document stream.
const outputBufferSize = 1 << 20

// ErrCountMismatch is returned when the corpus and the cluster artifact
// disagree on the document count.
var ErrCountMismatch = errors.New("dedup: documents read differ from cluster file")

// Options select the filter's output behavior.
type Options struct {
	// PrintDuplicates inverts the filter: only discarded documents are
	// printed, verbatim, with no id rewriting.
	PrintDuplicates bool

	// AddClusterSize splices ,"cluster_size":<n> into every kept document.
	AddClusterSize bool

	// AssignIDs rewrites the leading id field of kept documents with a
	// 1-based surviving-document counter.
	AssignIDs bool
}

// Filter streams JSONL files against a cluster assignment.
type Filter struct {
	uf        *unionfind.UnionFind
	opts      Options
	sizes     []uint32
	metrics   *observability.Metrics
	logger    *slog.Logger
	numDocs   int
	numRead   int
	numUnique int
}

// NewFilter loads the cluster artifact and prepares the filter. With
// AddClusterSize the parents array is flattened up front so every
// cluster size is a single-hop count.
func NewFilter(clusterPath string, opts Options, metrics *observability.Metrics, logger *slog.Logger) (*Filter, error) {
	uf, err := cluster.Read(clusterPath)
	if err != nil {
		return nil, err
	}

	f := &Filter{
		uf:      uf,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		numDocs: uf.Len(),
	}

	if opts.AddClusterSize {
		uf.Flatten()
		f.sizes = uf.ClusterSizes()
	}

	return f, nil
}

// NumDocs returns the document count promised by the cluster artifact.
func (f *Filter) NumDocs() int {
	return f.numDocs
}

// NumRead returns the documents consumed so far.
func (f *Filter) NumRead() int {
	return f.numRead
}

// NumUnique returns the documents kept so far.
func (f *Filter) NumUnique() int {
	return f.numUnique
}

// FilterAll streams every file in order, writing surviving documents to w,
// then verifies that exactly the artifact's document count was read.
func (f *Filter) FilterAll(files []string, w io.Writer) error {
	out := bufio.NewWriterSize(w, outputBufferSize)

	for _, path := range files {
		if err := f.filterFile(path, out); err != nil {
			return err
		}
	}

	if err := out.Flush(); err != nil {
		return fmt.Errorf("dedup: flush output: %w", err)
	}

	if f.numRead != f.numDocs {
		return fmt.Errorf("%w: read %d, cluster file has %d",
			ErrCountMismatch, f.numRead, f.numDocs)
	}

	return nil
}

// filterFile applies the cluster assignment to one file's lines.
func (f *Filter) filterFile(path string, out *bufio.Writer) error {
	scanner, err := zio.OpenLines(path)
	if err != nil {
		return err
	}
	defer scanner.Close()

	for scanner.Scan() {
		if f.numRead >= f.numDocs {
			return fmt.Errorf("%w: more than %d documents in input",
				ErrCountMismatch, f.numDocs)
		}

		if err := f.filterLine(scanner.Line(), out); err != nil {
			return fmt.Errorf("%q document %d: %w", path, f.numRead, err)
		}
	}

	return scanner.Err()
}

// filterLine decides one document's fate. The index into the parents
// array is the running document counter; input order is the contract the
// indexing pass upholds.
func (f *Filter) filterLine(line []byte, out *bufio.Writer) error {
	i := f.numRead
	parent := int(f.uf.Parents()[i])

	if f.opts.PrintDuplicates {
		if parent != i {
			if err := writeLine(out, line); err != nil {
				return err
			}
		}

		f.numRead++

		return nil
	}

	if parent != i {
		f.logger.Debug("discarding document", "doc", i, "cluster", parent)
		f.metrics.DuplicatesDiscarded.Inc()
		f.numRead++

		return nil
	}

	if f.opts.AddClusterSize {
		spliced, err := corpus.SpliceClusterSize(line, int(f.sizes[i]))
		if err != nil {
			return err
		}

		line = spliced
	}

	if f.opts.AssignIDs {
		rewritten, err := corpus.RewriteID(line, f.numUnique+1)
		if err != nil {
			return err
		}

		line = rewritten
	}

	if err := writeLine(out, line); err != nil {
		return err
	}

	f.metrics.DocumentsKept.Inc()
	f.numRead++
	f.numUnique++

	return nil
}

func writeLine(out *bufio.Writer, line []byte) error {
	if _, err := out.Write(line); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	if err := out.WriteByte('\n'); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	return nil
}
