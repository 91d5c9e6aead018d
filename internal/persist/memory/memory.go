// Package memory is the in-process persistence backend, used for tests,
// dry runs, and assets that are cheap to recompute.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"sidas/internal/persist"
)

const backendName = "memory"

// Adapter keeps values in a sync.Map. With a Codec configured it stores the
// encoded bytes, so callers never share mutable values with the store.
type Adapter struct {
	data  sync.Map
	codec persist.Codec

	loads   atomic.Int64
	saves   atomic.Int64
	deletes atomic.Int64
}

type Option func(*Adapter)

// WithCodec stores encoded copies instead of the values themselves.
func WithCodec(c persist.Codec) Option {
	return func(a *Adapter) { a.codec = c }
}

func New(opts ...Option) *Adapter {
	a := &Adapter{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Backend() string { return backendName }

func (a *Adapter) Load(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	a.loads.Add(1)
	v, ok := a.data.Load(key)
	if !ok {
		return nil, persist.NotFound(backendName, key)
	}
	if a.codec == nil {
		return v, nil
	}
	out, err := a.codec.Decode(v.([]byte))
	return out, persist.Wrap(backendName, "load", key, err)
}

// Save stores value in a single map operation; there is no partial state.
func (a *Adapter) Save(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	stored := value
	if a.codec != nil {
		b, err := a.codec.Encode(value)
		if err != nil {
			return persist.Wrap(backendName, "save", key, err)
		}
		stored = b
	}
	a.data.Store(key, stored)
	a.saves.Add(1)
	return nil
}

func (a *Adapter) Exists(_ context.Context, key string) (bool, error) {
	_, ok := a.data.Load(key)
	return ok, nil
}

func (a *Adapter) Delete(_ context.Context, key string) error {
	a.data.Delete(key)
	a.deletes.Add(1)
	return nil
}

// Stats reports how many operations reached the store.
type Stats struct {
	Loads   int64
	Saves   int64
	Deletes int64
}

func (a *Adapter) Stats() Stats {
	return Stats{Loads: a.loads.Load(), Saves: a.saves.Load(), Deletes: a.deletes.Load()}
}
