package asset

import (
	"time"
)

// Status is the persisted materialization status of an asset.
type Status string

const (
	StatusNever  Status = "NEVER"
	StatusFresh  Status = "FRESH"
	StatusStale  Status = "STALE"
	StatusFailed Status = "FAILED"
)

// maxLogEntries bounds State.Log so long-lived states do not grow forever.
const maxLogEntries = 20

// State is the runtime status of one asset.
//
// Fingerprint and UpstreamFingerprints describe the last successful
// materialization; a failed attempt leaves them untouched.
type State struct {
	Status             Status     `json:"status"`
	LastMaterializedAt *time.Time `json:"last_materialized_at,omitempty"`
	Fingerprint        string     `json:"fingerprint,omitempty"`
	// Digest is the content digest behind Fingerprint; strategies that do not
	// hash content directly use it to detect unchanged values.
	Digest string `json:"digest,omitempty"`

	// UpstreamFingerprints is the snapshot of upstream fingerprints observed
	// when this asset last materialized successfully.
	UpstreamFingerprints map[string]string `json:"upstream_fingerprints,omitempty"`

	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`

	MaterializingStartedAt *time.Time `json:"materializing_started_at,omitempty"`
	MaterializingStoppedAt *time.Time `json:"materializing_stopped_at,omitempty"`
	PersistingStartedAt    *time.Time `json:"persisting_started_at,omitempty"`
	PersistingStoppedAt    *time.Time `json:"persisting_stopped_at,omitempty"`
	UpdatedAt              *time.Time `json:"updated_at,omitempty"`

	Log []string `json:"log,omitempty"`
}

// NeverState is the state of an asset that has not been encountered before.
func NeverState() State {
	return State{Status: StatusNever}
}

// Normalize fills defaults for states decoded from older or partial records.
func (s State) Normalize() State {
	if s.Status == "" {
		s.Status = StatusNever
	}
	return s
}

// HasMaterialized reports whether a successful materialization was ever recorded.
func (s State) HasMaterialized() bool {
	return s.LastMaterializedAt != nil && s.Fingerprint != ""
}

// Clone returns a deep copy so callers can mutate the result freely.
func (s State) Clone() State {
	out := s
	if s.UpstreamFingerprints != nil {
		out.UpstreamFingerprints = make(map[string]string, len(s.UpstreamFingerprints))
		for k, v := range s.UpstreamFingerprints {
			out.UpstreamFingerprints[k] = v
		}
	}
	if s.Log != nil {
		out.Log = append([]string(nil), s.Log...)
	}
	out.LastMaterializedAt = cloneTime(s.LastMaterializedAt)
	out.MaterializingStartedAt = cloneTime(s.MaterializingStartedAt)
	out.MaterializingStoppedAt = cloneTime(s.MaterializingStoppedAt)
	out.PersistingStartedAt = cloneTime(s.PersistingStartedAt)
	out.PersistingStoppedAt = cloneTime(s.PersistingStoppedAt)
	out.UpdatedAt = cloneTime(s.UpdatedAt)
	return out
}

// AppendLog records msg, keeping only the most recent entries.
func (s *State) AppendLog(msg string) {
	s.Log = append(s.Log, msg)
	if len(s.Log) > maxLogEntries {
		s.Log = append([]string(nil), s.Log[len(s.Log)-maxLogEntries:]...)
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TimePtr is a small helper for the optional timestamps on State.
func TimePtr(t time.Time) *time.Time {
	return &t
}
