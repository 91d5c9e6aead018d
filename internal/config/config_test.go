package config

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	for _, k := range []string{EnvProject, EnvConcurrency, EnvTimeout, EnvLogLevel, EnvLogFormat, EnvMetricsAddr, EnvKafkaBrokers, EnvKafkaTopic} {
		t.Setenv(k, "")
	}
	cfg := New()
	if cfg.Project.Path != "sidas.yaml" {
		t.Fatalf("Project.Path = %q", cfg.Project.Path)
	}
	if cfg.Runtime.Concurrency != 4 || cfg.Runtime.Timeout != time.Hour {
		t.Fatalf("Runtime = %+v", cfg.Runtime)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestNew_ReadsEnvironment(t *testing.T) {
	t.Setenv(EnvProject, "/etc/sidas/lake.yaml")
	t.Setenv(EnvConcurrency, "9")
	t.Setenv(EnvTimeout, "90s")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvKafkaBrokers, "k1:9092, k2:9092")
	t.Setenv(EnvKafkaTopic, "runs")

	cfg := New()
	if cfg.Project.Path != "/etc/sidas/lake.yaml" || cfg.Runtime.Concurrency != 9 || cfg.Runtime.Timeout != 90*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Output.KafkaBrokers, []string{"k1:9092", "k2:9092"}) || cfg.Output.KafkaTopic != "runs" {
		t.Fatalf("kafka = %v %q", cfg.Output.KafkaBrokers, cfg.Output.KafkaTopic)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestGetEnv_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SIDAS_TEST_INT", "many")
	t.Setenv("SIDAS_TEST_DUR", "soon")
	t.Setenv("SIDAS_TEST_BOOL", "perhaps")
	if GetEnvInt("SIDAS_TEST_INT", 3) != 3 {
		t.Fatalf("GetEnvInt should fall back")
	}
	if GetEnvDuration("SIDAS_TEST_DUR", time.Minute) != time.Minute {
		t.Fatalf("GetEnvDuration should fall back")
	}
	if !GetEnvBool("SIDAS_TEST_BOOL", true) {
		t.Fatalf("GetEnvBool should fall back")
	}
	t.Setenv("SIDAS_TEST_BOOL", "No")
	if GetEnvBool("SIDAS_TEST_BOOL", true) {
		t.Fatalf("GetEnvBool(No) = true")
	}
}

func TestValidate_NormalizesLists(t *testing.T) {
	cfg := New()
	cfg.Output.ConsoleFilterStatus = []string{"FAILED, skipped", ",,"}
	cfg.Output.Emit = []string{" NDJSON "}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Output.ConsoleFilterStatus, []string{"failed", "skipped"}) {
		t.Fatalf("ConsoleFilterStatus = %v", cfg.Output.ConsoleFilterStatus)
	}
	if !reflect.DeepEqual(cfg.Output.Emit, []string{"ndjson"}) {
		t.Fatalf("Emit = %v", cfg.Output.Emit)
	}
}

func TestValidate_InfersOutFormat(t *testing.T) {
	cfg := New()
	cfg.Output.Out = "runs/latest.ndjson"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if cfg.Output.OutFormat != "ndjson" {
		t.Fatalf("OutFormat = %q", cfg.Output.OutFormat)
	}

	cfg = New()
	cfg.Output.Out = "runs/latest"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "--out-format") {
		t.Fatalf("missing extension error = %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"console format", func(c *Config) { c.Output.ConsoleFormat = "xml" }, "--console-format"},
		{"filter status", func(c *Config) { c.Output.ConsoleFilterStatus = []string{"pass"} }, "--console-filter-status"},
		{"emit", func(c *Config) { c.Output.Emit = []string{"yaml"} }, "--emit"},
		{"out format", func(c *Config) { c.Output.Out = "x.json"; c.Output.OutFormat = "csv" }, "unsupported output format"},
		{"kafka half set", func(c *Config) { c.Output.KafkaTopic = "runs"; c.Output.KafkaBrokers = nil }, "--kafka-brokers"},
		{"concurrency", func(c *Config) { c.Runtime.Concurrency = 0 }, "--concurrency"},
		{"timeout", func(c *Config) { c.Runtime.Timeout = 0 }, "--timeout"},
		{"dispatch rate", func(c *Config) { c.Runtime.DispatchRate = -1 }, "--dispatch-rate"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "--log-level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "--log-format"},
		{"project", func(c *Config) { c.Project.Path = " " }, "--project"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.Output.KafkaBrokers, cfg.Output.KafkaTopic = nil, ""
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&buf, Logging{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown", slog.String("asset", "orders"))
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"asset":"orders"`) {
		t.Fatalf("unexpected log output: %s", out)
	}

	if _, err := NewLogger(&buf, Logging{Format: "xml"}); err == nil {
		t.Fatalf("unsupported format want error")
	}
}
