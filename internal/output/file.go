package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sidas/internal/persist/localfs"
)

// FileSink writes events to a file. ndjson streams to the file as events
// arrive; json writes the run document atomically on Close.
type FileSink struct {
	path      string
	format    string
	file      *os.File
	buf       *bufio.Writer
	mu        sync.Mutex
	collected collector
}

// InferFormat maps an output path's extension to json or ndjson.
func InferFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return "json", nil
	case ".ndjson", ".jsonl":
		return "ndjson", nil
	case "":
		return "", fmt.Errorf("cannot infer output format from file extension (missing extension)")
	default:
		return "", fmt.Errorf("cannot infer output format from file extension %q", ext)
	}
}

func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}
	if format == "" {
		f, err := InferFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	s := &FileSink{path: path, format: format}
	if format == "ndjson" {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		s.file = f
		s.buf = bufio.NewWriter(f)
	}
	return s, nil
}

func (s *FileSink) Write(v any) error {
	e, ok := v.(Event)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		s.collected.add(e)
		return nil
	}
	if err := json.NewEncoder(s.buf).Encode(e); err != nil {
		return err
	}
	return s.buf.Flush()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		data, err := json.MarshalIndent(s.collected.document(), "", "  ")
		if err != nil {
			return err
		}
		return localfs.WriteFileAtomic(s.path, append(data, '\n'))
	}

	err := s.buf.Flush()
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
