// Package flags defines canonical CLI flag names shared by the cobra
// commands and their tests.
//
// IMPORTANT: These are flag *names* without leading dashes.
//
//	cmd.Flags().StringVar(&cfg.Project.Path, flags.FlagProject, "", "...")
//	arg := "--" + flags.FlagProject
package flags

const (
	// Project
	FlagProject = "project"

	// Output
	FlagConsoleFormat       = "console-format"
	FlagConsoleFilterStatus = "console-filter-status"
	FlagReport              = "report"
	FlagOut                 = "out"
	FlagOutFormat           = "out-format"
	FlagEmit                = "emit"
	FlagNoConsole           = "no-console"
	FlagKafkaBrokers        = "kafka-brokers"
	FlagKafkaTopic          = "kafka-topic"

	// Runtime
	FlagConcurrency  = "concurrency"
	FlagTimeout      = "timeout"
	FlagDispatchRate = "dispatch-rate"
	FlagMetricsAddr  = "metrics-addr"

	// Logging
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"

	// Graph / invalidate
	FlagGraphFormat = "format"
	FlagCascade     = "cascade"
)
