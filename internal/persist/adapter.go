// Package persist defines the storage contract every backend implements and
// the error taxonomy shared by all of them.
//
// Backends live in sub-packages (memory, localfs, objectstore, postgres,
// columnar). Callers depend only on Adapter.
package persist

import "context"

// Adapter is the uniform load/save/exists/delete contract.
//
// All methods block until the backend operation completes or fails.
//
//   - Load returns ErrNotFound (possibly wrapped) when key is absent.
//   - Save replaces the value atomically: on failure the previous value (or
//     absence) is preserved. Failures are *Error values.
//   - Exists reports absence as (false, nil), never as an error.
//   - Delete is idempotent; deleting an absent key succeeds.
type Adapter interface {
	Load(ctx context.Context, key string) (any, error)
	Save(ctx context.Context, key string, value any) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by adapters holding connections or file handles.
type Closer interface {
	Close() error
}

// Describer is implemented by adapters that can name their backend for
// display and error messages.
type Describer interface {
	Backend() string
}

// BackendName returns a's backend name, or "unknown".
func BackendName(a Adapter) string {
	if d, ok := a.(Describer); ok {
		return d.Backend()
	}
	return "unknown"
}
