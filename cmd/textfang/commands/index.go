package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/textfang/internal/cluster"
	"github.com/Sumatoshi-tech/textfang/internal/index"
	"github.com/Sumatoshi-tech/textfang/internal/observability"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/lsh"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/minhash"
	"github.com/Sumatoshi-tech/textfang/pkg/config"
)

// indexFlags holds the index command's parameters before config merging.
type indexFlags struct {
	batchSize              int
	bandID                 int
	tokenizer              string
	windowSize             int
	numDuplicatesThreshold int
	jaccardThreshold       float64
	permutations           int
	numBands               int
	bandWidth              int
	queryMode              bool
	dryRun                 bool
	output                 string
}

func newIndexCommand(root *rootFlags) *cobra.Command {
	flags := &indexFlags{}

	cmd := &cobra.Command{
		Use:   "index [flags] files...",
		Short: "Index zstd JSONL files and emit the duplicate cluster assignment",
		Long: "Index builds a banded MinHash/LSH index over every document and\n" +
			"prints the cluster artifact: a header with the document count\n" +
			"followed by the parents array, or per-document query records in\n" +
			"query mode.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, root, flags, args)
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&flags.batchSize, "batch-size", config.DefaultBatchSize,
		"number of lines to be processed at a time")
	fs.IntVarP(&flags.bandID, "band-id", "b", lsh.AllBands,
		"band to be indexed, 0 to num-bands-1; -1 indexes all bands")
	fs.StringVarP(&flags.tokenizer, "tokenizer", "t", config.DefaultTokenizer,
		"tokenization type: whitespace, vectorizer or char")
	fs.IntVarP(&flags.windowSize, "window-size", "w", config.DefaultWindowSize,
		"size of the non-overlapping window for char tokenization")
	fs.IntVar(&flags.numDuplicatesThreshold, "num-duplicates-threshold", config.DefaultNumDuplicatesThreshold,
		"documents with this many duplicates are marked DISCARD in query mode")
	fs.Float64VarP(&flags.jaccardThreshold, "jaccard-threshold", "j", config.DefaultJaccardThreshold,
		"jaccard similarity threshold")
	fs.IntVarP(&flags.permutations, "permutations", "p", 0,
		"number of permutations; overrides num-bands and band-width when set")
	fs.IntVar(&flags.numBands, "num-bands", config.DefaultNumBands, "number of bands")
	fs.IntVar(&flags.bandWidth, "band-width", config.DefaultBandWidth, "band width")
	fs.BoolVar(&flags.queryMode, "query", false,
		"emit per-document query records instead of the parents array")
	fs.BoolVarP(&flags.dryRun, "dry-run", "d", false,
		"print MinHash parameters and finish")
	fs.StringVarP(&flags.output, "output", "o", "-",
		"cluster artifact destination; - is stdout")

	return cmd
}

// mergeConfig fills every flag the user did not set from the loaded config.
func (f *indexFlags) mergeConfig(cmd *cobra.Command, cfg config.IndexConfig) {
	fs := cmd.Flags()

	if !fs.Changed("batch-size") {
		f.batchSize = cfg.BatchSize
	}

	if !fs.Changed("tokenizer") {
		f.tokenizer = cfg.Tokenizer
	}

	if !fs.Changed("window-size") {
		f.windowSize = cfg.WindowSize
	}

	if !fs.Changed("num-duplicates-threshold") {
		f.numDuplicatesThreshold = cfg.NumDuplicatesThreshold
	}

	if !fs.Changed("jaccard-threshold") {
		f.jaccardThreshold = cfg.JaccardThreshold
	}

	if !fs.Changed("num-bands") {
		f.numBands = cfg.NumBands
	}

	if !fs.Changed("band-width") {
		f.bandWidth = cfg.BandWidth
	}
}

func runIndex(cmd *cobra.Command, root *rootFlags, flags *indexFlags, files []string) error {
	ctx := cmd.Context()

	e, err := root.setup(ctx)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	flags.mergeConfig(cmd, e.cfg.Index)

	numBands, bandWidth := flags.numBands, flags.bandWidth
	if flags.permutations > 0 {
		numBands, bandWidth = minhash.Params(flags.jaccardThreshold, flags.permutations)
	}

	e.logger.Info("minhash parameters",
		"permutations", numBands*bandWidth,
		"num_bands", numBands,
		"band_width", bandWidth,
		"indexed_band", flags.bandID)

	if flags.dryRun {
		e.logger.Info("finished")

		return nil
	}

	tokenization, err := minhash.ParseTokenization(flags.tokenizer)
	if err != nil {
		return fmt.Errorf("%w: %q", err, flags.tokenizer)
	}

	ix, err := index.New(index.Config{
		NumBands:               numBands,
		BandWidth:              bandWidth,
		Tokenization:           tokenization,
		WindowSize:             flags.windowSize,
		JaccardThreshold:       flags.jaccardThreshold,
		BandID:                 flags.bandID,
		BatchSize:              flags.batchSize,
		NumDuplicatesThreshold: flags.numDuplicatesThreshold,
	}, e.metrics, e.tracer)
	if err != nil {
		return err
	}

	start := time.Now()

	e.logger.Info("indexing documents")

	if err := ix.IndexAll(ctx, files); err != nil {
		return err
	}

	e.logger.Info("indexed documents", "documents", ix.Size())

	out, closeOut, err := openOutput(flags.output)
	if err != nil {
		return err
	}

	writer, err := cluster.NewWriter(out, e.cfg.Index.CompressionLevel)
	if err != nil {
		return err
	}

	if err := writer.WriteHeader(ix.Size()); err != nil {
		return err
	}

	if flags.queryMode {
		e.logger.Info("querying documents")

		err = ix.QueryAll(ctx, files, writer)
	} else {
		e.logger.Info("finding clusters")

		uf := ix.Clusters(ctx)

		e.logger.Info("printing cluster array")

		err = writer.WriteParents(uf.Parents())
	}

	if err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}

	if err := closeOut(); err != nil {
		return err
	}

	observability.LogPeakMemory(e.logger)
	e.logger.Info("elapsed time", "seconds", time.Since(start).Seconds())

	renderSummary(os.Stderr, "index", []summaryRow{
		{"documents", ix.Size()},
		{"permutations", numBands * bandWidth},
		{"elapsed", time.Since(start).Round(time.Millisecond)},
	})

	e.logger.Info("finished")

	return nil
}

// openOutput resolves the output flag to a writer; "-" is stdout.
func openOutput(path string) (*os.File, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %q: %w", path, err)
	}

	return file, file.Close, nil
}
