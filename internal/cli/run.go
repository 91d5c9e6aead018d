package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sidas/internal/engine"
	"sidas/internal/flags"
)

var runCmd = &cobra.Command{
	Use:   "run [asset]",
	Short: "Materialize stale assets",
	Long: `Materialize stale assets in dependency order.

With an asset name, only that asset and its ancestors are considered. Without
one, every asset in the project is. Fresh assets are skipped; an asset whose
upstream failed is skipped too, and independent branches keep running.

Interrupting the run (Ctrl-C) or reaching --timeout stops new assets from
starting. Assets already materializing finish and are recorded.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write the run document (json) or event stream (ndjson) to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --report: write a Markdown run report
	- --kafka-brokers / --kafka-topic: publish every event to a Kafka topic
	- --no-console: suppress the console sink

	NDJSON mode emits one JSON object per line. Objects are lifecycle events with
	a "type" field (run.started, asset.result, run.finished).

Exit codes:
	0 = every asset succeeded or was fresh
	1 = at least one asset failed
	2 = the run was cancelled or timed out
	3 = fatal error (the run did not start)

Examples:
	sidas run
	sidas run daily_report --concurrency 8
	sidas run --no-console --emit ndjson
	sidas run --report run.md --out run.json
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(engine.ExitFatal)
		}
		var target string
		if len(args) == 1 {
			target = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		code := engine.NewEngine(engine.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())).Run(ctx, cfg, target)
		stop()
		os.Exit(code)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Output
	runCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, "text", "Console output format: text|json|ndjson")
	runCmd.Flags().StringSliceVar(&cfg.Output.ConsoleFilterStatus, flags.FlagConsoleFilterStatus, nil, "Only print assets with these statuses (succeeded, failed, skipped). Comma-separated.")
	runCmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	runCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	runCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	runCmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	runCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")
	runCmd.Flags().StringSliceVar(&cfg.Output.KafkaBrokers, flags.FlagKafkaBrokers, cfg.Output.KafkaBrokers, "Kafka bootstrap brokers to publish run events to (comma-separated)")
	runCmd.Flags().StringVar(&cfg.Output.KafkaTopic, flags.FlagKafkaTopic, cfg.Output.KafkaTopic, "Kafka topic for run events")

	// Runtime
	runCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Assets materialized at once")
	runCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout for the run")
	runCmd.Flags().Float64Var(&cfg.Runtime.DispatchRate, flags.FlagDispatchRate, 0, "Maximum asset dispatches per second (0 = unlimited)")
	runCmd.Flags().StringVar(&cfg.Runtime.MetricsAddr, flags.FlagMetricsAddr, cfg.Runtime.MetricsAddr, "Serve Prometheus metrics on this address during the run (e.g. :9464)")
}
