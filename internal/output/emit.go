package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// EmitSink writes an additional structured stream next to the console.
//
// Formats:
//   - json: folds events and writes one RunDocument on Close
//   - ndjson: streams Event values, flushing after each line
type EmitSink struct {
	writer    io.Writer
	format    string // "json" | "ndjson"
	mu        sync.Mutex
	collected collector
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported emit format: %s", format)
	}
	return &EmitSink{writer: w, format: format}, nil
}

func (s *EmitSink) Write(v any) error {
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
	if err := json.NewEncoder(s.writer).Encode(e); err != nil {
		return err
	}
	return flushEvent(s.writer)
}

func (s *EmitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format != "json" {
		return nil
	}
	enc := json.NewEncoder(s.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.collected.document()); err != nil {
		return err
	}
	return flushEvent(s.writer)
}
