package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sidas/internal/config"
	"sidas/internal/flags"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var cfg = config.New()

var rootCmd = &cobra.Command{
	Use:   "sidas",
	Short: "Materialize data assets declared in a project file",
	Long: `sidas keeps a graph of data assets up to date.

Assets are declared in a project file (sidas.yaml by default). Each asset names
its upstreams, how it is computed, and where its value is persisted. A run walks
the graph in dependency order and recomputes only the assets that are stale.

Examples:
	# Materialize every stale asset
	sidas run

	# Materialize one asset and everything it depends on
	sidas run daily_report

	# Inspect state without running anything
	sidas status

	# Show the dependency graph as Graphviz
	sidas graph --format dot

Environment:
	SIDAS_PROJECT, SIDAS_CONCURRENCY, SIDAS_TIMEOUT, SIDAS_LOG_LEVEL,
	SIDAS_LOG_FORMAT, SIDAS_METRICS_ADDR, SIDAS_KAFKA_BROKERS and
	SIDAS_KAFKA_TOPIC seed the matching flags.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfg.Project.Path, flags.FlagProject, "p", cfg.Project.Path, "Project file to load")
	rootCmd.PersistentFlags().StringVar(&cfg.Logging.Level, flags.FlagLogLevel, cfg.Logging.Level, "Diagnostics level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&cfg.Logging.Format, flags.FlagLogFormat, cfg.Logging.Format, "Diagnostics format on stderr: text|json")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
