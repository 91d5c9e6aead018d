// Package materialize computes one asset from its upstream values and
// persists the result.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"sidas/internal/asset"
	"sidas/internal/fingerprint"
	"sidas/internal/persist"
)

// Input is one upstream as seen when the downstream materializes.
type Input struct {
	Descriptor asset.Descriptor
	State      asset.State
}

// Inputs maps upstream names to their descriptors and current states.
type Inputs map[string]Input

type Materializer struct {
	strategy fingerprint.Strategy
	logger   *slog.Logger
	now      func() time.Time

	// loads collapses concurrent reads of the same upstream version.
	loads singleflight.Group
}

type Option func(*Materializer)

func WithStrategy(s fingerprint.Strategy) Option {
	return func(m *Materializer) { m.strategy = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) { m.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Materializer) { m.now = now }
}

func New(opts ...Option) *Materializer {
	m := &Materializer{
		strategy: fingerprint.ContentHash{},
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Materialize loads d's upstream values, computes d, and saves the result
// through d.Adapter.
//
// On success the returned state is Fresh and snapshots the upstream
// fingerprints that were read. On failure it is Failed, keeps the previous
// fingerprint, timestamp and snapshot, and the error is a
// *MaterializationError. Nothing is saved unless compute and fingerprinting
// both succeed; the adapter makes the save itself all-or-nothing.
func (m *Materializer) Materialize(ctx context.Context, d asset.Descriptor, prev asset.State, inputs Inputs) (asset.State, error) {
	next := prev.Normalize().Clone()
	next.Attempts++
	started := m.now()
	next.MaterializingStartedAt = asset.TimePtr(started)
	next.MaterializingStoppedAt = nil

	fail := func(stage Stage, err error) (asset.State, error) {
		stopped := m.now()
		next.Status = asset.StatusFailed
		next.LastError = err.Error()
		next.MaterializingStoppedAt = asset.TimePtr(stopped)
		next.UpdatedAt = asset.TimePtr(stopped)
		next.AppendLog(fmt.Sprintf("%s failed at %s: %v", stopped.UTC().Format(time.RFC3339), stage, err))
		m.logger.Warn("materialization failed",
			slog.String("asset", d.Name),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
		return next, &MaterializationError{Asset: d.Name, Stage: stage, Err: err}
	}

	if d.Compute == nil {
		return fail(StageCompute, ErrNoCompute)
	}
	if d.Adapter == nil {
		return fail(StageSave, ErrNoAdapter)
	}

	values, snapshot, err := m.loadUpstreams(ctx, d, inputs)
	if err != nil {
		return fail(StageLoad, err)
	}

	value, err := m.compute(ctx, d, values)
	if err != nil {
		return fail(StageCompute, err)
	}

	fp, digest, err := m.strategy.Fingerprint(value, prev)
	if err != nil {
		return fail(StageFingerprint, err)
	}

	persistStart := m.now()
	next.PersistingStartedAt = asset.TimePtr(persistStart)
	if err := d.Adapter.Save(ctx, d.Key(), value); err != nil {
		next.PersistingStoppedAt = asset.TimePtr(m.now())
		return fail(StageSave, err)
	}
	stopped := m.now()
	next.PersistingStoppedAt = asset.TimePtr(stopped)

	next.Status = asset.StatusFresh
	next.LastMaterializedAt = asset.TimePtr(stopped)
	next.MaterializingStoppedAt = asset.TimePtr(stopped)
	next.UpdatedAt = asset.TimePtr(stopped)
	next.Fingerprint = fp
	next.Digest = digest
	next.UpstreamFingerprints = snapshot
	next.LastError = ""
	next.AppendLog(fmt.Sprintf("%s materialized %s", stopped.UTC().Format(time.RFC3339), fp))

	m.logger.Debug("materialized",
		slog.String("asset", d.Name),
		slog.String("fingerprint", fp),
		slog.Bool("changed", fp != prev.Fingerprint),
		slog.Duration("duration", stopped.Sub(started)))
	return next, nil
}

func (m *Materializer) loadUpstreams(ctx context.Context, d asset.Descriptor, inputs Inputs) (map[string]any, map[string]string, error) {
	ups := d.SortedUpstreams()
	values := make(map[string]any, len(ups))
	snapshot := make(map[string]string, len(ups))
	for _, name := range ups {
		in, ok := inputs[name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrNoInput, name)
		}
		v, err := m.load(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		values[name] = v
		snapshot[name] = in.State.Fingerprint
	}
	return values, snapshot, nil
}

// load reads one upstream value. Reads never modify upstream state. A missing
// value is an integrity error only while the upstream is recorded as FRESH.
func (m *Materializer) load(ctx context.Context, in Input) (any, error) {
	if in.Descriptor.Adapter == nil {
		return nil, fmt.Errorf("upstream %q: %w", in.Descriptor.Name, ErrNoAdapter)
	}
	key := in.Descriptor.Name + "@" + in.State.Fingerprint
	v, err, _ := m.loads.Do(key, func() (any, error) {
		return in.Descriptor.Adapter.Load(ctx, in.Descriptor.Key())
	})
	if errors.Is(err, persist.ErrNotFound) && in.State.Normalize().Status == asset.StatusFresh {
		return nil, &persist.IntegrityError{Asset: in.Descriptor.Name, Key: in.Descriptor.Key(), Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("upstream %q: %w", in.Descriptor.Name, err)
	}
	return v, nil
}

func (m *Materializer) compute(ctx context.Context, d asset.Descriptor, values map[string]any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return d.Compute(ctx, d.Name, values)
}
