package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInferFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"out.json", "json", false},
		{"out.JSON", "json", false},
		{"out.ndjson", "ndjson", false},
		{"out.jsonl", "ndjson", false},
		{"out", "", true},
		{"out.csv", "", true},
	}
	for _, tt := range tests {
		got, err := InferFormat(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("InferFormat(%q) = %q, %v; want %q, err=%v", tt.path, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestFileSink_JSONWrittenOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.json")
	s, err := NewFileSink(path, "")
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := writeAll(s, sampleRun()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("json file should not exist before Close, stat err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc RunDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.Target != "daily_report" || len(doc.Outcomes) != 3 || !doc.StartedAt.Equal(t0) {
		t.Fatalf("document = %+v", doc)
	}
}

func TestFileSink_NDJSON_WritesIncrementally(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")

	s, err := NewFileSink(path, "ndjson")
	if err != nil {
		t.Fatalf("NewFileSink returned error: %v", err)
	}
	defer func() { _ = s.Close() }()

	events := sampleRun()
	if err := s.Write(events[0]); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	b1, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(b1), `"type":"run.started"`) || !strings.HasSuffix(string(b1), "\n") {
		t.Fatalf("expected one complete run.started line after first Write, got %q", string(b1))
	}

	if err := s.Write(events[len(events)-1]); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	b2, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(b2)), "\n"); len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines after two Writes, got %d: %q", len(lines), string(b2))
	}
}

func TestNewFileSink_Errors(t *testing.T) {
	if _, err := NewFileSink("", "json"); err == nil {
		t.Fatalf("empty path want error")
	}
	if _, err := NewFileSink(filepath.Join(t.TempDir(), "x.txt"), ""); err == nil {
		t.Fatalf("unknown extension want error")
	}
	if _, err := NewFileSink(filepath.Join(t.TempDir(), "x.json"), "csv"); err == nil {
		t.Fatalf("unsupported format want error")
	}
}
