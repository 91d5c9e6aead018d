package materialize

import (
	"errors"
	"fmt"
)

// Stage identifies where a materialization failed.
type Stage string

const (
	StageLoad        Stage = "load"
	StageCompute     Stage = "compute"
	StageFingerprint Stage = "fingerprint"
	StageSave        Stage = "save"
)

var (
	ErrNoCompute = errors.New("asset has no compute function")
	ErrNoAdapter = errors.New("asset has no persistence adapter")
	ErrNoInput   = errors.New("upstream input not provided")
)

// MaterializationError is a node-local failure. Err carries the cause,
// which may be a *persist.Error or *persist.IntegrityError.
type MaterializationError struct {
	Asset string
	Stage Stage
	Err   error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("materialize %q: %s: %v", e.Asset, e.Stage, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a compute function.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("compute panicked: %v", e.Value) }
