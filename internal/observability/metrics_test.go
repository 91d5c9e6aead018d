package observability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sidas/internal/orchestrator"
)

func TestNewMetrics(t *testing.T) {
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}
	if metrics == nil || handler == nil {
		t.Fatal("Expected metrics and handler to be non-nil")
	}
	t.Cleanup(func() { _ = metrics.Shutdown(ctx) })
}

func TestRecorderIsScraped(t *testing.T) {
	ctx := context.Background()
	m, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(ctx) })

	m.AssetStarted(ctx, "orders")
	m.AssetFinished(ctx, orchestrator.Outcome{Asset: "orders", Status: orchestrator.StatusSucceeded, Reason: "never_materialized", Duration: 2 * time.Second, Changed: true})
	m.AssetStarted(ctx, "report")
	m.AssetFinished(ctx, orchestrator.Outcome{Asset: "report", Status: orchestrator.StatusFailed, Reason: "upstream_changed", Err: errors.New("boom")})
	m.AssetFinished(ctx, orchestrator.Outcome{Asset: "email", Status: orchestrator.StatusSkipped, Reason: orchestrator.ReasonUpstreamFailed})
	m.RunFinished(ctx, &orchestrator.Report{StartedAt: time.Unix(0, 0), FinishedAt: time.Unix(5, 0)})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"sidas_asset_outcomes_total",
		"sidas_asset_duration_seconds",
		"sidas_asset_changes_total",
		"sidas_assets_active",
		"sidas_runs_total",
		`reason="upstream_failed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape output missing %s", want)
		}
	}
}

func TestDispatched(t *testing.T) {
	tests := []struct {
		o    orchestrator.Outcome
		want bool
	}{
		{orchestrator.Outcome{Status: orchestrator.StatusSucceeded}, true},
		{orchestrator.Outcome{Status: orchestrator.StatusFailed, Reason: orchestrator.ReasonStateError}, true},
		{orchestrator.Outcome{Status: orchestrator.StatusSkipped, Reason: orchestrator.ReasonFresh}, true},
		{orchestrator.Outcome{Status: orchestrator.StatusSkipped, Reason: orchestrator.ReasonUpstreamFailed}, false},
		{orchestrator.Outcome{Status: orchestrator.StatusSkipped, Reason: orchestrator.ReasonCancelled}, false},
	}
	for _, tt := range tests {
		if got := dispatched(tt.o); got != tt.want {
			t.Errorf("dispatched(%s/%s) = %v, want %v", tt.o.Status, tt.o.Reason, got, tt.want)
		}
	}
}
