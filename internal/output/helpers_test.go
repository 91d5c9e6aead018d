package output

import (
	"errors"
	"time"

	"sidas/internal/orchestrator"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// sampleRun is a three-asset run: one success, one failure, one blocked.
func sampleRun() []Event {
	report := &orchestrator.Report{
		RunID:      "run-1",
		Target:     "daily_report",
		StartedAt:  t0,
		FinishedAt: t0.Add(3 * time.Second),
		Outcomes: []orchestrator.Outcome{
			{Asset: "orders", Status: orchestrator.StatusSucceeded, Reason: "never_materialized", Duration: 1500 * time.Millisecond, Fingerprint: "b2:0123456789abcdef0123", Changed: true},
			{Asset: "rates", Status: orchestrator.StatusFailed, Reason: "schedule_due", Error: "compute: upstream api | timeout", Err: errors.New("compute: upstream api | timeout")},
			{Asset: "daily_report", Status: orchestrator.StatusSkipped, Reason: orchestrator.ReasonUpstreamFailed, Error: `upstream "rates" did not succeed`},
		},
	}
	events := []Event{RunStarted(report.RunID, report.Target, 3, t0)}
	for _, o := range report.Outcomes {
		events = append(events, AssetResult(report.RunID, o, t0.Add(time.Second)))
	}
	return append(events, RunFinished(report, 1))
}

func writeAll(s Sink, events []Event) error {
	for _, e := range events {
		if err := s.Write(e); err != nil {
			return err
		}
	}
	return nil
}
