package output

import (
	"time"

	"sidas/internal/orchestrator"
)

// Event types, in the order a run emits them.
const (
	EventRunStarted  = "run.started"
	EventAssetResult = "asset.result"
	EventRunFinished = "run.finished"
)

// Event is one lifecycle record. Sinks stream events as NDJSON or fold them
// into an aggregate document.
//
// asset.result events embed the outcome, so its fields appear at the top
// level of the JSON object.
type Event struct {
	Type   string    `json:"type"`
	RunID  string    `json:"run_id,omitempty"`
	Target string    `json:"target,omitempty"`
	Time   time.Time `json:"time"`

	*orchestrator.Outcome

	// run.started
	Assets int `json:"assets,omitempty"`

	// run.finished
	Summary   *orchestrator.Summary `json:"summary,omitempty"`
	Cancelled bool                  `json:"cancelled,omitempty"`
	ExitCode  int                   `json:"exit_code,omitempty"`
}

func RunStarted(runID, target string, assets int, at time.Time) Event {
	return Event{Type: EventRunStarted, RunID: runID, Target: target, Assets: assets, Time: at}
}

func AssetResult(runID string, o orchestrator.Outcome, at time.Time) Event {
	return Event{Type: EventAssetResult, RunID: runID, Outcome: &o, Time: at}
}

func RunFinished(r *orchestrator.Report, exitCode int) Event {
	sum := r.Summary()
	return Event{
		Type:      EventRunFinished,
		RunID:     r.RunID,
		Target:    r.Target,
		Time:      r.FinishedAt,
		Summary:   &sum,
		Cancelled: r.Cancelled,
		ExitCode:  exitCode,
	}
}

// RunDocument is the aggregate written by json-format sinks on Close.
type RunDocument struct {
	RunID     string                 `json:"run_id"`
	Target    string                 `json:"target,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	Finished  time.Time              `json:"finished_at"`
	Cancelled bool                   `json:"cancelled,omitempty"`
	ExitCode  int                    `json:"exit_code"`
	Summary   orchestrator.Summary   `json:"summary"`
	Outcomes  []orchestrator.Outcome `json:"outcomes"`
}

// collector folds events into a RunDocument.
type collector struct {
	doc RunDocument
}

func (c *collector) add(e Event) {
	switch e.Type {
	case EventRunStarted:
		c.doc.RunID, c.doc.Target, c.doc.StartedAt = e.RunID, e.Target, e.Time
	case EventAssetResult:
		if e.Outcome != nil {
			c.doc.Outcomes = append(c.doc.Outcomes, *e.Outcome)
		}
	case EventRunFinished:
		c.doc.Finished, c.doc.Cancelled, c.doc.ExitCode = e.Time, e.Cancelled, e.ExitCode
		if e.Summary != nil {
			c.doc.Summary = *e.Summary
		}
	}
}

func (c *collector) document() RunDocument {
	d := c.doc
	if d.Outcomes == nil {
		d.Outcomes = []orchestrator.Outcome{}
	}
	return d
}
