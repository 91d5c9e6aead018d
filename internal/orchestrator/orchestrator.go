// Package orchestrator runs materializations over the asset graph.
//
// A run walks the graph in dependency order, dispatching ready assets to a
// bounded pool of workers. An asset becomes ready once every upstream has
// either succeeded or been skipped as fresh. A failure is contained to the
// failing asset and its descendants; independent branches keep running.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"sidas/internal/asset"
	"sidas/internal/graph"
	"sidas/internal/materialize"
	"sidas/internal/staleness"
	"sidas/internal/state"
)

// Recorder observes run progress, typically for metrics.
type Recorder interface {
	AssetStarted(ctx context.Context, name string)
	AssetFinished(ctx context.Context, o Outcome)
	RunFinished(ctx context.Context, r *Report)
}

type nopRecorder struct{}

func (nopRecorder) AssetStarted(context.Context, string)   {}
func (nopRecorder) AssetFinished(context.Context, Outcome) {}
func (nopRecorder) RunFinished(context.Context, *Report)   {}

type Options struct {
	// Concurrency bounds the number of assets materializing at once.
	Concurrency int
	// DispatchRate limits dispatches per second; zero means unlimited.
	DispatchRate float64

	Logger   *slog.Logger
	Recorder Recorder
	// OnStart is called once the run's scope is known, before any dispatch.
	OnStart func(runID, target string, assets int)
	// OnOutcome is called from the coordinating goroutine for every
	// recorded outcome, in report order.
	OnOutcome func(Outcome)
	Now       func() time.Time
}

type Orchestrator struct {
	registry     *asset.Registry
	store        state.Store
	evaluator    *staleness.Evaluator
	materializer *materialize.Materializer

	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger
	recorder    Recorder
	onStart     func(runID, target string, assets int)
	onOutcome   func(Outcome)
	now         func() time.Time

	locks *keyedMutex
}

func New(reg *asset.Registry, store state.Store, ev *staleness.Evaluator, mat *materialize.Materializer, opts Options) (*Orchestrator, error) {
	if reg == nil {
		return nil, errors.New("registry is nil")
	}
	if store == nil {
		return nil, errors.New("state store is nil")
	}
	if ev == nil {
		return nil, errors.New("staleness evaluator is nil")
	}
	if mat == nil {
		return nil, errors.New("materializer is nil")
	}
	if opts.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", opts.Concurrency)
	}
	if opts.DispatchRate < 0 {
		return nil, fmt.Errorf("dispatch rate must be >= 0, got %v", opts.DispatchRate)
	}

	o := &Orchestrator{
		registry:     reg,
		store:        store,
		evaluator:    ev,
		materializer: mat,
		concurrency:  opts.Concurrency,
		logger:       opts.Logger,
		recorder:     opts.Recorder,
		onStart:      opts.OnStart,
		onOutcome:    opts.OnOutcome,
		now:          opts.Now,
		locks:        newKeyedMutex(),
	}
	if opts.DispatchRate > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(opts.DispatchRate), 1)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Graph builds the dependency graph over the registry's current descriptors.
func (o *Orchestrator) Graph() (*graph.Graph, error) {
	return graph.Build(o.registry.Descriptors())
}

type nodeState int

const (
	nodePending nodeState = iota
	nodeRunning
	nodeDone
)

type completion struct {
	idx     int
	outcome Outcome
}

// Run materializes target and its ancestors, or every asset when target is
// empty. Graph errors are returned before anything runs. Per-asset failures
// never abort the run; they are recorded in the report.
//
// Cancelling ctx stops new dispatches. Materializations already running
// finish under a context that is not cancelled, and every asset that was
// never dispatched is recorded as skipped with reason cancelled.
func (o *Orchestrator) Run(ctx context.Context, target string) (*Report, error) {
	g, err := o.Graph()
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalOrder(target)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString(), Target: target, StartedAt: o.now()}
	log := o.logger.With(slog.String("run_id", report.RunID))
	log.Info("run started", slog.String("target", target), slog.Int("assets", len(order)))
	if o.onStart != nil {
		o.onStart(report.RunID, target, len(order))
	}

	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	waiting := make([]int, len(order)) // unresolved upstreams per node
	downs := make([][]int, len(order))
	for i, n := range order {
		ups, _ := g.Upstreams(n)
		waiting[i] = len(ups)
		for _, u := range ups {
			downs[pos[u]] = append(downs[pos[u]], i)
		}
	}

	nodes := make([]nodeState, len(order))
	var ready []int
	for i := range order {
		if waiting[i] == 0 {
			ready = append(ready, i)
		}
	}

	record := func(i int, out Outcome) {
		nodes[i] = nodeDone
		if out.Err != nil && out.Error == "" {
			out.Error = out.Err.Error()
		}
		report.add(out)
		o.recorder.AssetFinished(ctx, out)
		if o.onOutcome != nil {
			o.onOutcome(out)
		}
	}

	// skipDescendants marks every not-yet-finished descendant of i as skipped.
	var skipDescendants func(i int, cause string)
	skipDescendants = func(i int, cause string) {
		for _, d := range downs[i] {
			if nodes[d] == nodeDone {
				continue
			}
			record(d, Outcome{
				Asset:  order[d],
				Status: StatusSkipped,
				Reason: ReasonUpstreamFailed,
				Err:    fmt.Errorf("upstream %q did not succeed", cause),
			})
			skipDescendants(d, cause)
		}
	}

	workCtx := context.WithoutCancel(ctx)
	done := make(chan completion)
	running := 0

	for {
	dispatch:
		for len(ready) > 0 && running < o.concurrency && ctx.Err() == nil {
			if o.limiter != nil {
				if err := o.limiter.Wait(ctx); err != nil {
					break dispatch
				}
			}
			sort.Ints(ready)
			i := ready[0]
			ready = ready[1:]
			nodes[i] = nodeRunning
			running++
			o.recorder.AssetStarted(ctx, order[i])
			go func(i int) {
				done <- completion{idx: i, outcome: o.runAsset(workCtx, g, order[i], pos, log)}
			}(i)
		}

		if running == 0 {
			break
		}

		c := <-done
		running--
		record(c.idx, c.outcome)

		switch {
		case c.outcome.Status == StatusFailed:
			skipDescendants(c.idx, order[c.idx])
		default:
			for _, d := range downs[c.idx] {
				waiting[d]--
				if waiting[d] == 0 && nodes[d] == nodePending {
					ready = append(ready, d)
				}
			}
		}
	}

	// A run counts as cancelled only if cancellation left work undone.
	if ctx.Err() != nil {
		for i, n := range order {
			if nodes[i] != nodeDone {
				report.Cancelled = true
				record(i, Outcome{Asset: n, Status: StatusSkipped, Reason: ReasonCancelled, Err: ctx.Err()})
			}
		}
	}

	report.FinishedAt = o.now()
	o.recorder.RunFinished(ctx, report)
	sum := report.Summary()
	log.Info("run finished",
		slog.Int("succeeded", sum.Succeeded),
		slog.Int("failed", sum.Failed),
		slog.Int("skipped", sum.Skipped),
		slog.Bool("cancelled", report.Cancelled),
		slog.Duration("duration", report.Duration()))
	return report, nil
}

// runAsset evaluates and, if stale, materializes one asset. It holds the
// asset's lock throughout so concurrent runs in this process never
// materialize the same asset twice.
func (o *Orchestrator) runAsset(ctx context.Context, g *graph.Graph, name string, inRun map[string]int, log *slog.Logger) Outcome {
	start := o.now()
	unlock := o.locks.Lock(name)
	defer unlock()

	out := Outcome{Asset: name}
	finish := func() Outcome {
		out.Duration = o.now().Sub(start)
		return out
	}

	d, ok := o.registry.Get(name)
	if !ok {
		out.Status, out.Reason, out.Err = StatusFailed, ReasonStateError, fmt.Errorf("%w: %q", graph.ErrUnknownAsset, name)
		return finish()
	}
	ups := d.SortedUpstreams()
	states, err := o.store.GetMany(ctx, append(ups, name))
	if err != nil {
		out.Status, out.Reason, out.Err = StatusFailed, ReasonStateError, err
		return finish()
	}
	prev := states[name]
	upstream := make(map[string]asset.State, len(ups))
	for _, u := range ups {
		upstream[u] = states[u]
	}

	decision, err := o.evaluator.Evaluate(d, prev, upstream, o.now())
	if err != nil {
		out.Status, out.Reason, out.Err = StatusFailed, ReasonEvaluation, err
		return finish()
	}
	if !decision.Stale {
		out.Status, out.Reason, out.Fingerprint = StatusSkipped, ReasonFresh, prev.Fingerprint
		log.Debug("asset fresh", slog.String("asset", name))
		return finish()
	}

	log.Info("materializing", slog.String("asset", name), slog.String("reason", string(decision.Reason)))
	inputs := make(materialize.Inputs, len(ups))
	for _, u := range ups {
		ud, _ := o.registry.Get(u)
		inputs[u] = materialize.Input{Descriptor: ud, State: upstream[u]}
	}
	next, matErr := o.materializer.Materialize(ctx, d, prev, inputs)

	// Failed attempts are published too, so the next run sees previous_failure.
	if err := o.store.Put(ctx, name, next); err != nil {
		out.Status, out.Reason = StatusFailed, ReasonStateError
		out.Err = errors.Join(matErr, fmt.Errorf("publish state: %w", err))
		return finish()
	}
	out.Reason = string(decision.Reason)
	if matErr != nil {
		out.Status, out.Err = StatusFailed, matErr
		return finish()
	}

	out.Status = StatusSucceeded
	out.Fingerprint = next.Fingerprint
	out.Changed = next.Fingerprint != prev.Fingerprint
	if out.Changed {
		o.invalidateOutside(ctx, g, name, inRun, log)
	}
	return finish()
}

// invalidateOutside marks fresh descendants of name that are not part of the
// current run as stale. Descendants inside the run re-evaluate on their own.
func (o *Orchestrator) invalidateOutside(ctx context.Context, g *graph.Graph, name string, inRun map[string]int, log *slog.Logger) {
	desc, err := g.Descendants(name)
	if err != nil {
		return
	}
	for _, d := range desc {
		if _, ok := inRun[d]; ok {
			continue
		}
		if err := o.markStale(ctx, d, fmt.Sprintf("upstream %s changed", name)); err != nil {
			log.Warn("invalidate descendant failed", slog.String("asset", d), slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) markStale(ctx context.Context, name, why string) error {
	unlock := o.locks.Lock(name)
	defer unlock()

	st, err := o.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if st.Status != asset.StatusFresh {
		return nil
	}
	now := o.now()
	st.Status = asset.StatusStale
	st.UpdatedAt = asset.TimePtr(now)
	st.AppendLog(fmt.Sprintf("%s invalidated: %s", now.UTC().Format(time.RFC3339), why))
	return o.store.Put(ctx, name, st)
}

// Invalidate marks name, and with cascade all of its descendants, as stale
// so the next run recomputes them. Assets never materialized are left as is.
func (o *Orchestrator) Invalidate(ctx context.Context, name string, cascade bool) ([]string, error) {
	g, err := o.Graph()
	if err != nil {
		return nil, err
	}
	if !g.Has(name) {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownAsset, name)
	}
	targets := []string{name}
	if cascade {
		desc, _ := g.Descendants(name)
		targets = append(targets, desc...)
	}
	for _, t := range targets {
		if err := o.markStale(ctx, t, "invalidated by request"); err != nil {
			return nil, fmt.Errorf("invalidate %q: %w", t, err)
		}
	}
	return targets, nil
}
