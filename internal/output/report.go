package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"sidas/internal/orchestrator"
	"sidas/internal/persist/localfs"
)

// ReportSink renders a Markdown run report on Close.
type ReportSink struct {
	path      string
	mu        sync.Mutex
	collected collector
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	return &ReportSink{path: path}, nil
}

func (s *ReportSink) Write(v any) error {
	if e, ok := v.(Event); ok {
		s.mu.Lock()
		s.collected.add(e)
		s.mu.Unlock()
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return localfs.WriteFileAtomic(s.path, []byte(RenderMarkdown(s.collected.document())))
}

// RenderMarkdown formats a run document as a Markdown report.
func RenderMarkdown(doc RunDocument) string {
	var b strings.Builder
	b.WriteString("# sidas run report\n\n")

	target := doc.Target
	if target == "" {
		target = "all assets"
	}
	result := "✅ succeeded"
	switch {
	case doc.Cancelled:
		result = "⏹ cancelled"
	case doc.Summary.Failed > 0:
		result = "❌ failed"
	}

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Run | `%s` |\n", doc.RunID)
	fmt.Fprintf(&b, "| Target | %s |\n", escapeCell(target))
	fmt.Fprintf(&b, "| Result | %s |\n", result)
	if !doc.StartedAt.IsZero() {
		fmt.Fprintf(&b, "| Started | %s |\n", doc.StartedAt.UTC().Format(time.RFC3339))
	}
	if !doc.StartedAt.IsZero() && !doc.Finished.IsZero() {
		fmt.Fprintf(&b, "| Duration | %s |\n", doc.Finished.Sub(doc.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "| Exit code | %d |\n\n", doc.ExitCode)

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Succeeded: %d\n", doc.Summary.Succeeded)
	fmt.Fprintf(&b, "- Failed: %d\n", doc.Summary.Failed)
	fmt.Fprintf(&b, "- Skipped: %d\n", doc.Summary.Skipped)
	changed := 0
	for _, o := range doc.Outcomes {
		if o.Changed {
			changed++
		}
	}
	fmt.Fprintf(&b, "- Changed: %d\n\n", changed)

	var failed, blocked []orchestrator.Outcome
	for _, o := range doc.Outcomes {
		switch {
		case o.Status == orchestrator.StatusFailed:
			failed = append(failed, o)
		case o.Status == orchestrator.StatusSkipped && o.Reason != orchestrator.ReasonFresh:
			blocked = append(blocked, o)
		}
	}

	if len(failed) > 0 {
		b.WriteString("## Failures\n\n")
		for _, o := range sortedByAsset(failed) {
			fmt.Fprintf(&b, "### %s\n\n", o.Asset)
			fmt.Fprintf(&b, "- Reason: `%s`\n", o.Reason)
			if o.Error != "" {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", o.Error)
			}
			b.WriteString("\n")
		}
	}

	if len(blocked) > 0 {
		b.WriteString("## Not run\n\n")
		for _, o := range sortedByAsset(blocked) {
			fmt.Fprintf(&b, "- `%s`: %s\n", o.Asset, o.Reason)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Assets\n\n")
	b.WriteString("| Asset | Status | Reason | Duration | Fingerprint |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, o := range doc.Outcomes {
		fp := o.Fingerprint
		if o.Changed {
			fp += " (new)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			escapeCell(o.Asset), o.Status, o.Reason,
			o.Duration.Round(time.Millisecond), escapeCell(fp))
	}
	return b.String()
}

func sortedByAsset(outs []orchestrator.Outcome) []orchestrator.Outcome {
	out := append([]orchestrator.Outcome(nil), outs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
