package orchestrator

import (
	"sync"
	"time"
)

// Status is the terminal state of one asset within a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Skip and failure reasons that are not staleness reasons.
const (
	ReasonFresh          = "fresh"
	ReasonUpstreamFailed = "upstream_failed"
	ReasonCancelled      = "cancelled"
	ReasonStateError     = "state_error"
	ReasonEvaluation     = "evaluation_error"
)

// Outcome records what happened to one asset during a run.
type Outcome struct {
	Asset       string        `json:"asset"`
	Status      Status        `json:"status"`
	Reason      string        `json:"reason"`
	Duration    time.Duration `json:"duration_ns"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Changed     bool          `json:"changed,omitempty"`
	Error       string        `json:"error,omitempty"`

	Err error `json:"-"`
}

// Report is the run record. Outcomes are appended in completion order while
// the run is in progress; after Run returns the report is not modified.
type Report struct {
	RunID      string    `json:"run_id"`
	Target     string    `json:"target,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cancelled  bool      `json:"cancelled,omitempty"`
	Outcomes   []Outcome `json:"outcomes"`

	mu sync.Mutex
}

func (r *Report) add(o Outcome) {
	r.mu.Lock()
	r.Outcomes = append(r.Outcomes, o)
	r.mu.Unlock()
}

// Outcome returns the outcome recorded for name.
func (r *Report) Outcome(name string) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.Outcomes {
		if o.Asset == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Summary counts outcomes by status.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func (s Summary) Total() int { return s.Succeeded + s.Failed + s.Skipped }

func (r *Report) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s Summary
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// HasFailures reports whether any asset failed.
func (r *Report) HasFailures() bool {
	return r.Summary().Failed > 0
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
