// Package state persists asset.State records between runs.
//
// Stores are keyed by asset name. A missing record reads as asset.NeverState.
package state

import (
	"context"
	"fmt"
	"strings"

	"sidas/internal/asset"
)

type Store interface {
	Get(ctx context.Context, name string) (asset.State, error)
	// GetMany returns a state for every requested name.
	GetMany(ctx context.Context, names []string) (map[string]asset.State, error)
	Put(ctx context.Context, name string, st asset.State) error
	Delete(ctx context.Context, name string) error
	Close() error
}

// Config selects a store implementation.
type Config struct {
	Type string `yaml:"type"` // memory, file, postgres
	Path string `yaml:"path"` // file
	DSN  string `yaml:"dsn"`  // postgres
}

// Open builds the store described by cfg. An empty type means memory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown state store type %q (must be one of: memory, file, postgres)", cfg.Type)
	}
}

func getEach(ctx context.Context, s Store, names []string) (map[string]asset.State, error) {
	out := make(map[string]asset.State, len(names))
	for _, n := range names {
		st, err := s.Get(ctx, n)
		if err != nil {
			return nil, err
		}
		out[n] = st
	}
	return out, nil
}
