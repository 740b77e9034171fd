package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/textfang/internal/dedup"
	"github.com/Sumatoshi-tech/textfang/internal/observability"
)

// percent renders a ratio as a percentage.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}

	return float64(part) / float64(whole) * 100
}

func newDedupCommand(root *rootFlags) *cobra.Command {
	var (
		printDuplicates bool
		addClusterSize  bool
		assignIDs       bool
		plotFile        string
	)

	cmd := &cobra.Command{
		Use:   "dedup [flags] clusterfile files...",
		Short: "Filter zstd JSONL files against a cluster assignment",
		Long: "Dedup streams the corpus a second time and keeps one representative\n" +
			"per duplicate cluster: the documents that are their own parent in\n" +
			"the cluster artifact. Kept documents go to stdout.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := root.setup(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			start := time.Now()

			e.logger.Info("reading clusterfile")

			filter, err := dedup.NewFilter(args[0], dedup.Options{
				PrintDuplicates: printDuplicates,
				AddClusterSize:  addClusterSize,
				AssignIDs:       assignIDs,
			}, e.metrics, e.logger)
			if err != nil {
				return err
			}

			e.logger.Info("reading documents and discarding duplicates")

			if err := filter.FilterAll(args[1:], os.Stdout); err != nil {
				return err
			}

			e.logger.Info("duplicates discarded",
				"kept", filter.NumUnique(),
				"pct", fmt.Sprintf("%.2f", percent(filter.NumUnique(), filter.NumDocs())))

			if plotFile != "" {
				if err := writePlot(filter, plotFile); err != nil {
					return err
				}
			}

			observability.LogPeakMemory(e.logger)
			e.logger.Info("elapsed time", "seconds", time.Since(start).Seconds())

			renderSummary(os.Stderr, "dedup", []summaryRow{
				{"documents", filter.NumDocs()},
				{"kept", filter.NumUnique()},
				{"discarded", filter.NumDocs() - filter.NumUnique()},
				{"elapsed", time.Since(start).Round(time.Millisecond)},
			})

			e.logger.Info("finished")

			return nil
		},
	}

	fs := cmd.Flags()
	fs.BoolVarP(&printDuplicates, "print-duplicates", "p", false,
		"print discarded duplicates instead of kept documents")
	fs.BoolVarP(&addClusterSize, "add-cluster-size", "c", false,
		"add the size of its cluster to each kept document")
	fs.BoolVarP(&assignIDs, "assign-ids", "a", false,
		"re-assign kept document ids with a 1-based counter")
	fs.StringVar(&plotFile, "plot", "",
		"write an HTML cluster-size histogram to this file")

	return cmd
}

// writePlot renders the cluster-size histogram.
func writePlot(filter *dedup.Filter, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}

	if err := filter.WriteClusterHistogram(file); err != nil {
		_ = file.Close()

		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}

	return nil
}
