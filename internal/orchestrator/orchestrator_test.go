package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sidas/internal/asset"
	"sidas/internal/graph"
	"sidas/internal/materialize"
	"sidas/internal/persist"
	"sidas/internal/persist/memory"
	"sidas/internal/schedule"
	"sidas/internal/staleness"
	"sidas/internal/state"
)

var t0 = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	orch    *Orchestrator
	store   *state.Memory
	adapter *memory.Adapter

	mu    sync.Mutex
	calls []string
}

func newHarness(t *testing.T, concurrency int, ds ...asset.Descriptor) *harness {
	t.Helper()
	h := &harness{store: state.NewMemory(), adapter: memory.New()}
	reg := asset.NewRegistry()
	for _, d := range ds {
		if d.Adapter == nil {
			d.Adapter = h.adapter
		}
		if err := reg.Register(d); err != nil {
			t.Fatalf("Register(%s): %v", d.Name, err)
		}
	}
	now := func() time.Time { return t0 }
	orch, err := New(reg, h.store,
		staleness.New(schedule.New(nil)),
		materialize.New(materialize.WithClock(now)),
		Options{Concurrency: concurrency, Now: now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.orch = orch
	return h
}

// produce returns a compute that records its call and emits the asset name
// joined with its upstream values.
func (h *harness) produce() asset.ComputeFunc {
	return func(_ context.Context, name string, up map[string]any) (any, error) {
		h.mu.Lock()
		h.calls = append(h.calls, name)
		h.mu.Unlock()
		return fmt.Sprintf("%s%v", name, up), nil
	}
}

func (h *harness) called() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func index(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}

func diamond(h *harness) []asset.Descriptor {
	c := h.produce()
	return []asset.Descriptor{
		{Name: "A", Compute: c},
		{Name: "B", Upstreams: []string{"A"}, Compute: c},
		{Name: "C", Upstreams: []string{"A"}, Compute: c},
		{Name: "D", Upstreams: []string{"B", "C"}, Compute: c},
	}
}

func TestRun_DiamondThenIdempotent(t *testing.T) {
	ctx := context.Background()
	probe := &harness{}
	h := newHarness(t, 4, diamond(probe)...)

	report, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Outcomes) != 4 {
		t.Fatalf("got %d outcomes, want 4", len(report.Outcomes))
	}
	if s := report.Summary(); s.Succeeded != 4 || s.Failed != 0 {
		t.Fatalf("summary = %+v, want 4 succeeded", s)
	}
	if report.HasFailures() {
		t.Fatalf("HasFailures() = true")
	}
	if report.RunID == "" {
		t.Fatalf("RunID not set")
	}

	calls := probe.called()
	for _, pair := range [][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}} {
		if index(calls, pair[0]) > index(calls, pair[1]) {
			t.Fatalf("%s computed after %s: %v", pair[0], pair[1], calls)
		}
	}

	savesAfterFirst := h.adapter.Stats().Saves
	second, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	for _, o := range second.Outcomes {
		if o.Status != StatusSkipped || o.Reason != ReasonFresh {
			t.Fatalf("second run outcome %+v, want skipped/fresh", o)
		}
	}
	if len(second.Outcomes) != 4 {
		t.Fatalf("second run got %d outcomes, want 4", len(second.Outcomes))
	}
	if got := h.adapter.Stats().Saves; got != savesAfterFirst {
		t.Fatalf("second run saved %d values, want 0", got-savesAfterFirst)
	}
	if len(probe.called()) != 4 {
		t.Fatalf("second run recomputed: %v", probe.called())
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	probe := &harness{}
	ok := probe.produce()
	boom := errors.New("source unavailable")
	h := newHarness(t, 2,
		asset.Descriptor{Name: "A", Compute: func(context.Context, string, map[string]any) (any, error) { return nil, boom }},
		asset.Descriptor{Name: "B", Upstreams: []string{"A"}, Compute: ok},
		asset.Descriptor{Name: "C", Upstreams: []string{"B"}, Compute: ok},
		asset.Descriptor{Name: "D", Compute: ok},
	)

	report, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run must not fail on node errors: %v", err)
	}
	want := map[string]struct {
		status Status
		reason string
	}{
		"A": {StatusFailed, "never_materialized"},
		"B": {StatusSkipped, ReasonUpstreamFailed},
		"C": {StatusSkipped, ReasonUpstreamFailed},
		"D": {StatusSucceeded, "never_materialized"},
	}
	for name, w := range want {
		o, found := report.Outcome(name)
		if !found {
			t.Fatalf("no outcome for %s", name)
		}
		if o.Status != w.status || o.Reason != w.reason {
			t.Fatalf("%s = %s/%s, want %s/%s", name, o.Status, o.Reason, w.status, w.reason)
		}
	}
	a, _ := report.Outcome("A")
	var me *materialize.MaterializationError
	if !errors.As(a.Err, &me) || !errors.Is(a.Err, boom) {
		t.Fatalf("A error = %v, want MaterializationError wrapping cause", a.Err)
	}
	if calls := probe.called(); len(calls) != 1 || calls[0] != "D" {
		t.Fatalf("computed %v, want only D", calls)
	}

	st, _ := h.store.Get(ctx, "A")
	if st.Status != asset.StatusFailed || st.LastError == "" {
		t.Fatalf("A state = %+v, want FAILED", st)
	}
}

func TestRun_RecoversAfterFailure(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	fail.Store(true)
	h := newHarness(t, 1, asset.Descriptor{Name: "A", Compute: func(context.Context, string, map[string]any) (any, error) {
		if fail.Load() {
			return nil, errors.New("flaky")
		}
		return 1, nil
	}})

	if _, err := h.orch.Run(ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	fail.Store(false)
	report, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	o, _ := report.Outcome("A")
	if o.Status != StatusSucceeded {
		t.Fatalf("A = %+v, want succeeded", o)
	}

	// A failure after a success keeps the old fingerprint and triggers
	// previous_failure on the next run.
	if _, err := h.orch.Invalidate(ctx, "A", false); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	fail.Store(true)
	report, _ = h.orch.Run(ctx, "")
	if o, _ := report.Outcome("A"); o.Status != StatusFailed {
		t.Fatalf("A = %+v, want failed", o)
	}
	if st, _ := h.store.Get(ctx, "A"); st.Fingerprint == "" {
		t.Fatalf("failed attempt dropped the last good fingerprint")
	}
	fail.Store(false)
	report, _ = h.orch.Run(ctx, "")
	o, _ = report.Outcome("A")
	if o.Status != StatusSucceeded || o.Reason != string(staleness.ReasonPreviousFailure) {
		t.Fatalf("A = %s/%s, want succeeded/previous_failure", o.Status, o.Reason)
	}
}

type saveFailer struct {
	*memory.Adapter
	fail atomic.Bool
}

func (s *saveFailer) Save(ctx context.Context, key string, v any) error {
	if s.fail.Load() {
		return persist.Wrap("memory", "save", key, errors.New("quota exceeded"))
	}
	return s.Adapter.Save(ctx, key, v)
}

func TestRun_SaveFailureLeavesPreviousValue(t *testing.T) {
	ctx := context.Background()
	var version atomic.Int64
	sf := &saveFailer{Adapter: memory.New()}
	h := newHarness(t, 1, asset.Descriptor{
		Name:     "A",
		Schedule: "@every 1m",
		Adapter:  sf,
		Compute: func(context.Context, string, map[string]any) (any, error) {
			return version.Add(1), nil
		},
	})

	if _, err := h.orch.Run(ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	sf.fail.Store(true)
	// Move the clock so the schedule is due again.
	h.orch.now = func() time.Time { return t0.Add(time.Hour) }
	report, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	o, _ := report.Outcome("A")
	if o.Status != StatusFailed || !errors.Is(o.Err, persist.ErrPersistence) {
		t.Fatalf("A = %+v, want failed with persistence error", o)
	}
	v, err := sf.Load(ctx, "A")
	if err != nil || v != int64(1) {
		t.Fatalf("stored value = %v, %v; want 1", v, err)
	}
}

func TestRun_Target(t *testing.T) {
	ctx := context.Background()
	probe := &harness{}
	h := newHarness(t, 2, diamond(probe)...)

	report, err := h.orch.Run(ctx, "B")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("outcomes = %+v, want A and B only", report.Outcomes)
	}
	if _, ok := report.Outcome("D"); ok {
		t.Fatalf("D should not be part of a run targeting B")
	}

	if _, err := h.orch.Run(ctx, "nope"); !errors.Is(err, graph.ErrUnknownAsset) {
		t.Fatalf("Run(unknown) error = %v, want ErrUnknownAsset", err)
	}
}

func TestRun_ChangedUpstreamInvalidatesOutOfRunDescendants(t *testing.T) {
	ctx := context.Background()
	var n atomic.Int64
	probe := &harness{}
	h := newHarness(t, 2,
		asset.Descriptor{Name: "A", Compute: func(context.Context, string, map[string]any) (any, error) {
			return n.Load(), nil
		}},
		asset.Descriptor{Name: "B", Upstreams: []string{"A"}, Compute: probe.produce()},
	)

	if _, err := h.orch.Run(ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := h.orch.markStale(ctx, "A", "test"); err != nil {
		t.Fatalf("markStale: %v", err)
	}
	n.Store(5)
	report, err := h.orch.Run(ctx, "A")
	if err != nil {
		t.Fatalf("Run(A): %v", err)
	}
	if o, _ := report.Outcome("A"); !o.Changed {
		t.Fatalf("A outcome = %+v, want changed", o)
	}
	st, _ := h.store.Get(ctx, "B")
	if st.Status != asset.StatusStale {
		t.Fatalf("B status = %s, want STALE", st.Status)
	}

	report, _ = h.orch.Run(ctx, "")
	if o, _ := report.Outcome("B"); o.Status != StatusSucceeded || o.Reason != string(staleness.ReasonUpstreamChanged) {
		t.Fatalf("B = %s/%s, want succeeded/upstream_changed", o.Status, o.Reason)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	probe := &harness{}
	h := newHarness(t, 2, diamond(probe)...)

	report, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Cancelled {
		t.Fatalf("report not marked cancelled")
	}
	for _, o := range report.Outcomes {
		if o.Status != StatusSkipped || o.Reason != ReasonCancelled {
			t.Fatalf("outcome %+v, want skipped/cancelled", o)
		}
	}
	if len(probe.called()) != 0 {
		t.Fatalf("computed %v after cancellation", probe.called())
	}
}

func TestRun_CancelDuringRunLetsInFlightFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	probe := &harness{}
	h := newHarness(t, 1,
		asset.Descriptor{Name: "A", Compute: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
			cancel()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return "a", nil
		}},
		asset.Descriptor{Name: "B", Upstreams: []string{"A"}, Compute: probe.produce()},
	)

	report, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o, _ := report.Outcome("A"); o.Status != StatusSucceeded {
		t.Fatalf("A = %+v, want in-flight work to complete", o)
	}
	if o, _ := report.Outcome("B"); o.Status != StatusSkipped || o.Reason != ReasonCancelled {
		t.Fatalf("B = %+v, want skipped/cancelled", o)
	}
	if !report.Cancelled {
		t.Fatalf("report not marked cancelled with B undone")
	}
	if st, _ := h.store.Get(context.Background(), "A"); st.Status != asset.StatusFresh {
		t.Fatalf("A state = %s, want FRESH", st.Status)
	}
}

func TestRun_CancelAfterLastAssetIsNotCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, 1,
		asset.Descriptor{Name: "A", Compute: func(context.Context, string, map[string]any) (any, error) {
			cancel()
			return "a", nil
		}},
	)

	report, err := h.orch.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Cancelled {
		t.Fatalf("report marked cancelled although every asset finished: %+v", report.Summary())
	}
	if sum := report.Summary(); sum.Succeeded != 1 || sum.Total() != 1 {
		t.Fatalf("summary = %+v, want one success", sum)
	}
}

func TestRun_GraphErrorsAreFatal(t *testing.T) {
	probe := &harness{}
	h := newHarness(t, 1,
		asset.Descriptor{Name: "A", Upstreams: []string{"B"}, Compute: probe.produce()},
		asset.Descriptor{Name: "B", Upstreams: []string{"A"}, Compute: probe.produce()},
	)
	report, err := h.orch.Run(context.Background(), "")
	if !errors.Is(err, graph.ErrGraph) || report != nil {
		t.Fatalf("Run = %v, %v; want nil report and graph error", report, err)
	}
	if len(probe.called()) != 0 {
		t.Fatalf("computed %v despite graph error", probe.called())
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	var active, peak atomic.Int64
	slow := func(context.Context, string, map[string]any) (any, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return 1, nil
	}
	var ds []asset.Descriptor
	for i := 0; i < 8; i++ {
		ds = append(ds, asset.Descriptor{Name: fmt.Sprintf("leaf%d", i), Compute: slow})
	}
	h := newHarness(t, 3, ds...)

	report, err := h.orch.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Summary().Succeeded != 8 {
		t.Fatalf("summary = %+v", report.Summary())
	}
	if p := peak.Load(); p > 3 {
		t.Fatalf("peak concurrency %d exceeds bound 3", p)
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	probe := &harness{}
	h := newHarness(t, 2, diamond(probe)...)
	if _, err := h.orch.Run(ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := h.orch.Invalidate(ctx, "B", true)
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Invalidate returned %v, want B and D", got)
	}
	statuses, err := h.orch.Status(ctx, "")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, s := range statuses {
		wantStale := s.Name == "B" || s.Name == "D"
		if s.Decision.Stale != wantStale {
			t.Fatalf("%s decision = %+v, want stale=%v", s.Name, s.Decision, wantStale)
		}
	}
	if _, err := h.orch.Invalidate(ctx, "zzz", false); !errors.Is(err, graph.ErrUnknownAsset) {
		t.Fatalf("Invalidate(unknown) error = %v", err)
	}
}
