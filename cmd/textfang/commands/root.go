// Package commands implements CLI command handlers for textfang.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/textfang/internal/observability"
	"github.com/Sumatoshi-tech/textfang/pkg/config"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	verbose      bool
	quiet        bool
	logFormat    string
	configFile   string
	metricsAddr  string
	otlpEndpoint string
	dumpConfig   bool
}

// env is the per-run environment built before a command body executes.
type env struct {
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	shutdown func(context.Context) error
	cfg      *config.Config
}

// NewRootCommand builds the textfang command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "textfang",
		Short:         "Batch cleaning of large monolingual web-text corpora",
		Long:          "textfang deduplicates JSONL web-text corpora: a banded MinHash/LSH\nindex groups near-duplicates into clusters, a streaming filter keeps one\nrepresentative per cluster, and a Bloom-filter pass removes exact\nduplicates at higher throughput.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "only log warnings and errors")
	pf.StringVar(&flags.logFormat, "log-format", observability.LogFormatText, "log encoding: text or json")
	pf.StringVar(&flags.configFile, "config", "", "path to a textfang.yaml config file")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "expose prometheus /metrics on this address")
	pf.StringVar(&flags.otlpEndpoint, "otlp-endpoint", "", "export phase traces to this OTLP gRPC endpoint")
	pf.BoolVar(&flags.dumpConfig, "dump-config", false, "print the effective configuration and exit")

	root.AddCommand(
		newIndexCommand(flags),
		newDedupCommand(flags),
		newExactDedupCommand(flags),
		newZPasteCommand(flags),
		newVersionCommand(),
	)

	return root
}

// setup builds the run environment: config, logger, metrics and tracing.
func (f *rootFlags) setup(ctx context.Context) (*env, error) {
	logger := observability.SetupLogger(f.verbose, f.quiet, f.logFormat)

	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}

	if f.dumpConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			return nil, err
		}

		os.Exit(0)
	}

	metrics := observability.NewMetrics()
	if f.metricsAddr != "" {
		metrics.Serve(f.metricsAddr, logger)
	}

	tracer, shutdown, err := observability.SetupTracing(ctx, f.otlpEndpoint)
	if err != nil {
		return nil, err
	}

	return &env{
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		shutdown: shutdown,
		cfg:      cfg,
	}, nil
}

// close flushes tracing before process exit.
func (e *env) close(ctx context.Context) {
	if err := e.shutdown(ctx); err != nil {
		e.logger.Warn("trace export shutdown failed", "error", err)
	}
}

// Execute runs the command tree and exits non-zero on any fatal error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
