// Package asset defines the static identity of data assets, their runtime
// state, and the explicit registry the rest of sidas resolves names through.
package asset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"sidas/internal/persist"
)

// ComputeFunc produces an asset's value from the loaded values of its
// declared upstreams (keyed by upstream name).
//
// Upstream values may be shared between concurrent computations and must be
// treated as read-only.
type ComputeFunc func(ctx context.Context, name string, upstream map[string]any) (any, error)

// RefreshPolicy controls how upstream changes mark a downstream asset stale.
type RefreshPolicy string

const (
	// RefreshAnyUpstream recomputes when at least one upstream changed.
	RefreshAnyUpstream RefreshPolicy = "any_upstream"
	// RefreshAllUpstream recomputes only once every upstream changed.
	RefreshAllUpstream RefreshPolicy = "all_upstream"
)

// Descriptor is the static definition of one asset.
type Descriptor struct {
	Name        string
	Upstreams   []string
	Schedule    string
	Refresh     RefreshPolicy
	Kind        string
	Group       string
	Description string

	// PersistenceKey is an opaque, backend-specific locator handed to Adapter.
	PersistenceKey string
	// AdapterName is the configured name of Adapter, for display only.
	AdapterName string
	// Adapter is shared across descriptors and runs; the descriptor does not own it.
	Adapter persist.Adapter

	Compute ComputeFunc
}

// Key returns the persistence key, defaulting to the asset name.
func (d Descriptor) Key() string {
	if d.PersistenceKey != "" {
		return d.PersistenceKey
	}
	return d.Name
}

// RefreshPolicy returns the configured policy, defaulting to RefreshAnyUpstream.
func (d Descriptor) RefreshPolicy() RefreshPolicy {
	if d.Refresh == "" {
		return RefreshAnyUpstream
	}
	return d.Refresh
}

// SortedUpstreams returns a sorted, de-duplicated copy of Upstreams.
func (d Descriptor) SortedUpstreams() []string {
	seen := make(map[string]struct{}, len(d.Upstreams))
	out := make([]string, 0, len(d.Upstreams))
	for _, u := range d.Upstreams {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

var (
	ErrEmptyName      = errors.New("asset name is required")
	ErrDuplicateAsset = errors.New("asset already registered")
	ErrInvalidRefresh = errors.New("invalid refresh policy")
)

// Validate checks the descriptor fields that do not depend on other assets.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	switch d.Refresh {
	case "", RefreshAnyUpstream, RefreshAllUpstream:
	default:
		return fmt.Errorf("%w for %q: %s", ErrInvalidRefresh, d.Name, d.Refresh)
	}
	for _, u := range d.Upstreams {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("asset %q declares an empty upstream name", d.Name)
		}
	}
	return nil
}
