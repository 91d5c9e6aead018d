package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sidas/internal/output"
)

// Environment variables that seed defaults. Flags override them.
const (
	EnvProject      = "SIDAS_PROJECT"
	EnvConcurrency  = "SIDAS_CONCURRENCY"
	EnvTimeout      = "SIDAS_TIMEOUT"
	EnvLogLevel     = "SIDAS_LOG_LEVEL"
	EnvLogFormat    = "SIDAS_LOG_FORMAT"
	EnvMetricsAddr  = "SIDAS_METRICS_ADDR"
	EnvKafkaBrokers = "SIDAS_KAFKA_BROKERS"
	EnvKafkaTopic   = "SIDAS_KAFKA_TOPIC"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep the CLI
	// flags in internal/cli/run.go and the names in internal/flags in sync.
	Project Project
	Output  Output
	Runtime Runtime
	Logging Logging
}

type Project struct {
	// Path is the project file to load (see --project).
	Path string
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// ConsoleFilterStatus limits console asset lines to these statuses (see --console-filter-status).
	// Allowed values: succeeded, failed, skipped.
	ConsoleFilterStatus []string

	// Report writes a Markdown run report to this path (see --report).
	Report string

	// Out writes the run as structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out file extension.
	OutFormat string

	// Emit writes an additional structured event stream to stdout (see --emit).
	// Allowed values: json, ndjson.
	Emit []string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool

	// KafkaBrokers and KafkaTopic publish run events to Kafka when both are set
	// (see --kafka-brokers, --kafka-topic).
	KafkaBrokers []string
	KafkaTopic   string
}

type Runtime struct {
	// Concurrency bounds how many assets materialize at once (see --concurrency).
	// Must be >= 1.
	Concurrency int

	// Timeout bounds the whole run (see --timeout). When it expires no new
	// assets are started. Must be > 0.
	Timeout time.Duration

	// DispatchRate limits asset dispatches per second (see --dispatch-rate).
	// Zero means unlimited.
	DispatchRate float64

	// MetricsAddr serves Prometheus metrics on this address during the run
	// (see --metrics-addr). Empty disables the endpoint.
	MetricsAddr string
}

type Logging struct {
	// Level is one of debug, info, warn, error (see --log-level).
	Level string
	// Format is text or json (see --log-format).
	Format string
}

// New returns defaults, seeded from the environment.
func New() *Config {
	return &Config{
		Project: Project{
			Path: GetEnvStr(EnvProject, "sidas.yaml"),
		},
		Output: Output{
			ConsoleFormat: "text",
			KafkaBrokers:  ParseCommaSeparatedList(GetEnvStr(EnvKafkaBrokers, "")),
			KafkaTopic:    GetEnvStr(EnvKafkaTopic, ""),
		},
		Runtime: Runtime{
			Concurrency: GetEnvInt(EnvConcurrency, 4),
			Timeout:     GetEnvDuration(EnvTimeout, time.Hour),
			MetricsAddr: GetEnvStr(EnvMetricsAddr, ""),
		},
		Logging: Logging{
			Level:  GetEnvStr(EnvLogLevel, "warn"),
			Format: GetEnvStr(EnvLogFormat, "text"),
		},
	}
}

func (c *Config) Validate() error {
	c.Output.ConsoleFilterStatus = splitCommaList(c.Output.ConsoleFilterStatus)
	c.Output.Emit = splitCommaList(c.Output.Emit)
	c.Output.KafkaBrokers = splitCommaList(c.Output.KafkaBrokers)

	if strings.TrimSpace(c.Project.Path) == "" {
		return errors.New("--project must not be empty")
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if !oneOf(c.Output.ConsoleFormat, "text", "json", "ndjson") {
		return fmt.Errorf("unsupported --console-format: %q (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for i, st := range c.Output.ConsoleFilterStatus {
		v := normalizeEnumValue(st)
		if !oneOf(v, "succeeded", "failed", "skipped") {
			return fmt.Errorf("unsupported --console-filter-status: %q (must be one of: succeeded, failed, skipped)", st)
		}
		c.Output.ConsoleFilterStatus[i] = v
	}

	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if !oneOf(v, "json", "ndjson") {
			return fmt.Errorf("unsupported --emit value: %q (must be one of: json, ndjson)", emit)
		}
		c.Output.Emit[i] = v
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			f, err := output.InferFormat(c.Output.Out)
			if err != nil {
				return fmt.Errorf("%w; use --out-format", err)
			}
			c.Output.OutFormat = f
		} else if !oneOf(c.Output.OutFormat, "json", "ndjson") {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}

	if (len(c.Output.KafkaBrokers) == 0) != (c.Output.KafkaTopic == "") {
		return errors.New("--kafka-brokers and --kafka-topic must be set together")
	}

	// Runtime validation
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Runtime.DispatchRate < 0 {
		return errors.New("--dispatch-rate must be >= 0")
	}

	// Logging validation
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	c.Logging.Format = normalizeEnumValue(c.Logging.Format)
	if !oneOf(c.Logging.Format, "text", "json") {
		return fmt.Errorf("unsupported --log-format: %q (must be one of: text, json)", c.Logging.Format)
	}
	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, ParseCommaSeparatedList(v)...)
	}
	return out
}
