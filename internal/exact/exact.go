// Package exact implements exact deduplication: a single streaming pass
// that drops every document whose text was seen before, using a Bloom
// filter sized for the expected corpus.
//
// The reader goroutine overlaps decompression with filtering through a
// large bounded channel; the filter itself is owned by the consumer,
// because the membership decision and the insertion must be sequential to
// avoid ever emitting two copies of the same text. Output streams into
// size-rotating zstd shards. First seen wins: the surviving records are a
// prefix-stable subset of the input.
package exact

import (
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/textfang/internal/corpus"
	"github.com/Sumatoshi-tech/textfang/internal/observability"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/bloom"
	"github.com/Sumatoshi-tech/textfang/pkg/zio"
)

const (
	// FalsePositiveRate is the fixed target rate of the Bloom filter. A
	// false positive drops a unique document, so the rate is kept at one
	// in a thousand regardless of corpus size.
	FalsePositiveRate = 0.001

	// DefaultChannelCapacity is the line read-ahead between the reader
	// goroutine and the filtering consumer.
	DefaultChannelCapacity = 100000
)

// Deduper owns the Bloom filter and the shard writer for one run.
type Deduper struct {
	filter  *bloom.Filter
	writer  *zio.SplitWriter
	metrics *observability.Metrics
	logger  *slog.Logger
	numDocs int
	kept    int
}

// New allocates a filter for numElements expected documents.
func New(numElements uint, writer *zio.SplitWriter, metrics *observability.Metrics, logger *slog.Logger) (*Deduper, error) {
	filter, err := bloom.NewWithEstimates(numElements, FalsePositiveRate)
	if err != nil {
		return nil, err
	}

	logger.Info("bloom filter initialized",
		"expected_elements", numElements,
		"bits", filter.BitCount(),
		"hashes", filter.HashCount())

	return &Deduper{
		filter:  filter,
		writer:  writer,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Run streams every file through the filter in order. channelCapacity
// bounds the reader's line lookahead.
func (d *Deduper) Run(files []string, channelCapacity int) error {
	reader := zio.NewLineReader(files, channelCapacity)

	for line := range reader.Lines() {
		text, err := corpus.ParseText(line)
		if err != nil {
			return fmt.Errorf("exact: document %d: %w", d.numDocs, err)
		}

		d.numDocs++
		d.metrics.DocumentsRead.Inc()

		if d.filter.TestAndAdd([]byte(text)) {
			d.metrics.DuplicatesDiscarded.Inc()

			continue
		}

		if err := d.writer.WriteLine(line); err != nil {
			return err
		}

		d.kept++
		d.metrics.DocumentsKept.Inc()
		d.metrics.BytesWritten.Add(float64(len(line) + 1))
	}

	if err := reader.Err(); err != nil {
		return err
	}

	d.logger.Debug("exact pass finished", "fill_ratio", d.filter.FillRatio())

	return nil
}

// NumDocs returns the documents read.
func (d *Deduper) NumDocs() int {
	return d.numDocs
}

// Kept returns the documents written.
func (d *Deduper) Kept() int {
	return d.kept
}
