// Package index drives the first pass of near-duplicate deduplication:
// streaming JSONL batches, hashing documents into MinHash signatures on a
// worker pool and inserting them into the banded LSH index.
//
// Document ids are assigned strictly in input order — file-list order,
// then line order — dense and gap-free from 0. Batch k is fully signed
// and inserted before batch k+1 begins; the filter pass relies on this
// ordering to line document indices up with cluster assignments.
//
// Two output drivers share the indexer: cluster mode derives the parents
// array directly from the index buckets, query mode re-reads the corpus
// and emits per-document match sets with DISCARD records for over-large
// clusters.
package index

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/textfang/internal/cluster"
	"github.com/Sumatoshi-tech/textfang/internal/corpus"
	"github.com/Sumatoshi-tech/textfang/internal/observability"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/lsh"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/minhash"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/unionfind"
	"github.com/Sumatoshi-tech/textfang/pkg/zio"
)

// DefaultBatchSize is the number of lines signed and inserted per batch.
const DefaultBatchSize = 20000

var (
	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("index: batch size must be positive")

	// ErrInvalidWindow is returned when char tokenization is configured
	// without a positive window size.
	ErrInvalidWindow = errors.New("index: window size must be positive in char mode")
)

// Config parameterizes an indexing run.
type Config struct {
	NumBands               int
	BandWidth              int
	Tokenization           minhash.Tokenization
	WindowSize             int
	JaccardThreshold       float64
	BandID                 int
	BatchSize              int
	NumDuplicatesThreshold int
}

// Indexer owns the hasher, the LSH index and the dense id sequence.
type Indexer struct {
	cfg       Config
	hasher    *minhash.Hasher
	index     *lsh.Index
	metrics   *observability.Metrics
	tracer    trace.Tracer
	blocklist map[int]struct{}
	globalID  int
}

// New validates the configuration and builds an empty index.
func New(cfg Config, metrics *observability.Metrics, tracer trace.Tracer) (*Indexer, error) {
	if cfg.BatchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}

	if cfg.Tokenization == minhash.TokenizationChar && cfg.WindowSize <= 0 {
		return nil, ErrInvalidWindow
	}

	hasher, err := minhash.NewHasher(cfg.NumBands*cfg.BandWidth, cfg.Tokenization, cfg.WindowSize)
	if err != nil {
		return nil, err
	}

	idx, err := lsh.New(cfg.NumBands, cfg.BandWidth, cfg.JaccardThreshold, cfg.BandID)
	if err != nil {
		return nil, err
	}

	return &Indexer{
		cfg:       cfg,
		hasher:    hasher,
		index:     idx,
		metrics:   metrics,
		tracer:    tracer,
		blocklist: make(map[int]struct{}),
	}, nil
}

// Size returns the number of documents indexed so far.
func (ix *Indexer) Size() int {
	return ix.globalID
}

// Permutations returns the signature length of the underlying index.
func (ix *Indexer) Permutations() int {
	return ix.index.Permutations()
}

// IndexAll indexes every file in order.
func (ix *Indexer) IndexAll(ctx context.Context, files []string) error {
	for _, path := range files {
		if err := ix.indexFile(ctx, path); err != nil {
			return err
		}
	}

	return nil
}

// indexFile signs and inserts one file's documents batch by batch.
func (ix *Indexer) indexFile(ctx context.Context, path string) error {
	_, span := ix.tracer.Start(ctx, "index_file",
		trace.WithAttributes(attribute.String("file", path)))
	defer span.End()

	reader := zio.NewBatchReader([]string{path}, ix.cfg.BatchSize)

	for batch := range reader.Batches() {
		sigs, err := ix.signBatch(batch)
		if err != nil {
			return fmt.Errorf("sign %q: %w", path, err)
		}

		ids := make([]int, len(sigs))
		for i := range ids {
			ids[i] = ix.globalID + i
		}

		if err := ix.index.BulkInsert(ids, sigs); err != nil {
			return fmt.Errorf("insert %q: %w", path, err)
		}

		ix.globalID += len(sigs)
		ix.metrics.BatchesProcessed.Inc()
		ix.metrics.DocumentsRead.Add(float64(len(sigs)))
	}

	return reader.Err()
}

// signBatch parses and hashes a batch on the worker pool, preserving line
// order in the result.
func (ix *Indexer) signBatch(batch [][]byte) ([][]uint32, error) {
	sigs := make([][]uint32, len(batch))

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(batch) + workers - 1) / workers

	var group errgroup.Group

	for start := 0; start < len(batch); start += chunk {
		end := min(start+chunk, len(batch))

		group.Go(func() error {
			for i := start; i < end; i++ {
				text, err := corpus.ParseText(batch[i])
				if err != nil {
					return err
				}

				sigs[i] = ix.hasher.Signature(text)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return sigs, nil
}

// Clusters derives the parents array from the filled index. Every bucket
// holding more than one document is unioned, seeded from its lowest id.
func (ix *Indexer) Clusters(ctx context.Context) *unionfind.UnionFind {
	_, span := ix.tracer.Start(ctx, "find_clusters",
		trace.WithAttributes(attribute.Int("documents", ix.globalID)))
	defer span.End()

	return ix.index.Clusters(ix.globalID)
}

// QueryAll re-reads the corpus in the same order, probes every document
// against the index and writes one query record per document.
//
// When a probe's match set reaches the duplicate threshold the record is
// the DISCARD sentinel instead, all members join the blocklist and are
// removed from the index so later probes do not re-encounter them. A
// non-positive threshold disables discarding.
func (ix *Indexer) QueryAll(ctx context.Context, files []string, out *cluster.Writer) error {
	probeID := 0

	for _, path := range files {
		if err := ix.queryFile(ctx, path, &probeID, out); err != nil {
			return err
		}
	}

	if probeID != ix.globalID {
		return fmt.Errorf("index: query pass read %d documents, indexed %d", probeID, ix.globalID)
	}

	return nil
}

// queryFile probes one file's documents batch by batch.
func (ix *Indexer) queryFile(ctx context.Context, path string, probeID *int, out *cluster.Writer) error {
	_, span := ix.tracer.Start(ctx, "query_file",
		trace.WithAttributes(attribute.String("file", path)))
	defer span.End()

	reader := zio.NewBatchReader([]string{path}, ix.cfg.BatchSize)

	for batch := range reader.Batches() {
		sigs, err := ix.signBatch(batch)
		if err != nil {
			return fmt.Errorf("sign %q: %w", path, err)
		}

		results, err := ix.index.BulkQuery(sigs)
		if err != nil {
			return fmt.Errorf("query %q: %w", path, err)
		}

		for _, matches := range results {
			if err := ix.emitQueryRecord(*probeID, matches, out); err != nil {
				return err
			}

			*probeID++
		}

		ix.metrics.BatchesProcessed.Inc()
	}

	return reader.Err()
}

// emitQueryRecord writes one probe's record, handling blocklisting.
func (ix *Indexer) emitQueryRecord(probeID int, matches []int, out *cluster.Writer) error {
	if _, blocked := ix.blocklist[probeID]; blocked {
		return out.WriteDiscard()
	}

	// Members discarded earlier in the same batch were queried before
	// their removal took effect; drop them here.
	kept := matches[:0]

	for _, id := range matches {
		if _, blocked := ix.blocklist[id]; !blocked {
			kept = append(kept, id)
		}
	}

	threshold := ix.cfg.NumDuplicatesThreshold
	if threshold > 0 && len(kept) >= threshold {
		for _, id := range kept {
			ix.blocklist[id] = struct{}{}
		}

		ix.blocklist[probeID] = struct{}{}
		ix.index.BulkRemove(kept)

		return out.WriteDiscard()
	}

	return out.WriteQueryRecord(kept)
}
