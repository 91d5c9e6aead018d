package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"sidas/internal/orchestrator"
)

// ConsoleSink is the human-facing sink. In text mode it prints one line per
// asset result and a summary line; json mode prints the run document on
// Close; ndjson streams raw events.
type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	mu              sync.Mutex
	collected       collector
	allowedStatuses map[orchestrator.Status]bool
}

// NewConsoleSink writes to w (stdout when nil). filterStatuses restricts
// asset results to the listed statuses (succeeded, failed, skipped).
func NewConsoleSink(w io.Writer, format string, filterStatuses []string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	s := &ConsoleSink{writer: w, format: format}
	if len(filterStatuses) > 0 {
		s.allowedStatuses = make(map[orchestrator.Status]bool)
		for _, st := range filterStatuses {
			s.allowedStatuses[orchestrator.Status(strings.ToLower(strings.TrimSpace(st)))] = true
		}
	}
	return s
}

func (s *ConsoleSink) Write(v any) error {
	e, ok := v.(Event)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Type == EventAssetResult && len(s.allowedStatuses) > 0 && e.Outcome != nil {
		if !s.allowedStatuses[e.Outcome.Status] {
			return nil
		}
	}

	switch s.format {
	case "json":
		s.collected.add(e)
		return nil
	case "ndjson":
		if err := json.NewEncoder(s.writer).Encode(e); err != nil {
			return err
		}
		return flushEvent(s.writer)
	case "text":
		if err := s.writeText(e); err != nil {
			return err
		}
		return flushEvent(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

var (
	succeededMark = color.New(color.FgGreen).SprintFunc()
	failedMark    = color.New(color.FgRed, color.Bold).SprintFunc()
	skippedMark   = color.New(color.FgYellow).SprintFunc()
	faint         = color.New(color.Faint).SprintFunc()
)

func statusMark(st orchestrator.Status) string {
	switch st {
	case orchestrator.StatusSucceeded:
		return succeededMark("✓")
	case orchestrator.StatusFailed:
		return failedMark("✗")
	default:
		return skippedMark("-")
	}
}

func (s *ConsoleSink) writeText(e Event) error {
	switch e.Type {
	case EventRunStarted:
		target := "all assets"
		if e.Target != "" {
			target = e.Target
		}
		_, err := fmt.Fprintf(s.writer, "run %s: %s (%d assets)\n", faint(e.RunID), target, e.Assets)
		return err
	case EventAssetResult:
		o := e.Outcome
		if o == nil {
			return nil
		}
		line := fmt.Sprintf("%s %s %s", statusMark(o.Status), o.Asset, faint("("+o.Reason+")"))
		if o.Status == orchestrator.StatusSucceeded {
			line += " " + faint(o.Duration.Round(time.Millisecond).String())
			if o.Changed {
				line += " " + faint(shortFingerprint(o.Fingerprint))
			}
		}
		if o.Error != "" && o.Status == orchestrator.StatusFailed {
			line += "\n    " + failedMark(o.Error)
		}
		_, err := fmt.Fprintln(s.writer, line)
		return err
	case EventRunFinished:
		if e.Summary == nil {
			return nil
		}
		state := "finished"
		if e.Cancelled {
			state = "cancelled"
		}
		_, err := fmt.Fprintf(s.writer, "run %s: %d succeeded, %d failed, %d skipped\n",
			state, e.Summary.Succeeded, e.Summary.Failed, e.Summary.Skipped)
		return err
	}
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 15 {
		return fp[:15]
	}
	return fp
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		enc := json.NewEncoder(s.writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s.collected.document()); err != nil {
			return err
		}
		return flushEvent(s.writer)
	case "text", "ndjson":
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}
