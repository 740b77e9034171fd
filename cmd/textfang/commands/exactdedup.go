package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/textfang/internal/exact"
	"github.com/Sumatoshi-tech/textfang/internal/observability"
	"github.com/Sumatoshi-tech/textfang/pkg/config"
	"github.com/Sumatoshi-tech/textfang/pkg/zio"
)

func newExactDedupCommand(root *rootFlags) *cobra.Command {
	var (
		numElements      string
		outputPrefix     string
		shardSize        string
		compressionLevel int
		zstdWorkers      int
		channelCapacity  int
	)

	cmd := &cobra.Command{
		Use:   "exact-dedup [flags] files...",
		Short: "Drop exact text duplicates with a Bloom filter",
		Long: "Exact-dedup streams every document once, keeping the first\n" +
			"occurrence of each text. Output is written to size-rotating zstd\n" +
			"shards named <prefix>.<n>.zst.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := root.setup(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			fs := cmd.Flags()

			if !fs.Changed("shard-size") {
				shardSize = e.cfg.Exact.ShardSize
			}

			if !fs.Changed("compression-level") {
				compressionLevel = e.cfg.Exact.CompressionLevel
			}

			if !fs.Changed("zstd-workers") {
				zstdWorkers = e.cfg.Exact.ZstdWorkers
			}

			if !fs.Changed("channel-capacity") {
				channelCapacity = e.cfg.Exact.ChannelCapacity
			}

			elements, err := humanize.ParseBytes(numElements)
			if err != nil {
				return fmt.Errorf("parse num-elements %q: %w", numElements, err)
			}

			shardBytes, err := humanize.ParseBytes(shardSize)
			if err != nil {
				return fmt.Errorf("parse shard-size %q: %w", shardSize, err)
			}

			e.logger.Info("initializing bloom filter")

			start := time.Now()

			writer, err := zio.NewSplitWriter(outputPrefix, int(shardBytes), compressionLevel, zstdWorkers)
			if err != nil {
				return err
			}

			deduper, err := exact.New(uint(elements), writer, e.metrics, e.logger)
			if err != nil {
				return err
			}

			e.logger.Info("processing")

			if err := deduper.Run(args, channelCapacity); err != nil {
				return err
			}

			if err := writer.Close(); err != nil {
				return err
			}

			observability.LogPeakMemory(e.logger)

			elapsed := time.Since(start)
			e.logger.Info("finished",
				"total_docs", deduper.NumDocs(),
				"kept_docs", deduper.Kept(),
				"kept_pct", fmt.Sprintf("%.1f", percent(deduper.Kept(), deduper.NumDocs())),
				"docs_per_second", float64(deduper.NumDocs())/elapsed.Seconds())

			renderSummary(os.Stderr, "exact-dedup", []summaryRow{
				{"documents", deduper.NumDocs()},
				{"kept", deduper.Kept()},
				{"shards", writer.Shards()},
				{"elapsed", elapsed.Round(time.Millisecond)},
			})

			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&numElements, "num-elements", "n", "", "estimated number of elements, e.g. 100M")
	fs.StringVarP(&outputPrefix, "output", "o", "", "output shard prefix")
	fs.StringVar(&shardSize, "shard-size", config.DefaultShardSize,
		"uncompressed bytes per output shard, e.g. 1G")
	fs.IntVar(&compressionLevel, "compression-level", config.DefaultCompressionLevel,
		"zstd compression level for output shards")
	fs.IntVar(&zstdWorkers, "zstd-workers", config.DefaultZstdWorkers,
		"zstd encoder worker threads")
	fs.IntVar(&channelCapacity, "channel-capacity", config.DefaultChannelCapacity,
		"line read-ahead between reader and filter")

	_ = cmd.MarkFlagRequired("num-elements")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
