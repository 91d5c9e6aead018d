// Package staleness decides whether an asset's persisted value is out of date.
package staleness

import (
	"errors"
	"fmt"
	"time"

	"sidas/internal/asset"
)

// Reason tags why an asset is (or is not) stale.
type Reason string

const (
	ReasonNeverMaterialized Reason = "never_materialized"
	ReasonUpstreamChanged   Reason = "upstream_changed"
	ReasonScheduleDue       Reason = "schedule_due"
	ReasonPreviousFailure   Reason = "previous_failure"
	ReasonInvalidated       Reason = "invalidated"
	ReasonFresh             Reason = "fresh"
)

type Decision struct {
	Stale  bool
	Reason Reason
}

// Schedule returns the next time expr is due after last.
type Schedule interface {
	NextDue(expr string, last, now time.Time) (time.Time, error)
}

var ErrNoSchedule = errors.New("asset declares a schedule but no schedule evaluator is configured")

type Evaluator struct {
	schedule Schedule
}

// New returns an Evaluator. schedule may be nil when no asset is scheduled.
func New(schedule Schedule) *Evaluator {
	return &Evaluator{schedule: schedule}
}

// Evaluate applies the staleness rules in priority order:
//
//  1. never materialized
//  2. an upstream fingerprint differs from the snapshot taken at the last
//     success (every upstream, under RefreshAllUpstream)
//  3. the schedule's next due time is at or before now
//  4. the last attempt failed, or the state was invalidated
//
// upstream holds the current state of each declared upstream.
func (e *Evaluator) Evaluate(d asset.Descriptor, st asset.State, upstream map[string]asset.State, now time.Time) (Decision, error) {
	st = st.Normalize()
	if st.Status == asset.StatusNever || !st.HasMaterialized() {
		return Decision{Stale: true, Reason: ReasonNeverMaterialized}, nil
	}

	if upstreamChanged(d, st, upstream) {
		return Decision{Stale: true, Reason: ReasonUpstreamChanged}, nil
	}

	if d.Schedule != "" {
		if e.schedule == nil {
			return Decision{}, fmt.Errorf("asset %q: %w", d.Name, ErrNoSchedule)
		}
		next, err := e.schedule.NextDue(d.Schedule, *st.LastMaterializedAt, now)
		if err != nil {
			return Decision{}, fmt.Errorf("asset %q: %w", d.Name, err)
		}
		if !next.After(now) {
			return Decision{Stale: true, Reason: ReasonScheduleDue}, nil
		}
	}

	switch st.Status {
	case asset.StatusFailed:
		return Decision{Stale: true, Reason: ReasonPreviousFailure}, nil
	case asset.StatusStale:
		return Decision{Stale: true, Reason: ReasonInvalidated}, nil
	}
	return Decision{Stale: false, Reason: ReasonFresh}, nil
}

// upstreamChanged compares current upstream fingerprints with the snapshot.
// An upstream without a fingerprint has nothing to compare and is ignored.
func upstreamChanged(d asset.Descriptor, st asset.State, upstream map[string]asset.State) bool {
	ups := d.SortedUpstreams()
	if len(ups) == 0 {
		return false
	}
	changed := 0
	for _, u := range ups {
		cur := upstream[u].Fingerprint
		if cur != "" && cur != st.UpstreamFingerprints[u] {
			changed++
		}
	}
	if d.RefreshPolicy() == asset.RefreshAllUpstream {
		return changed == len(ups)
	}
	return changed > 0
}
