package project

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sidas/internal/asset"
	"sidas/internal/compute"
	"sidas/internal/fingerprint"
	"sidas/internal/persist"
	"sidas/internal/schedule"
	"sidas/internal/state"
)

// Project is an opened project: descriptors are registered, adapters are
// connected, and the state store is open. Close releases all of them.
type Project struct {
	Name     string
	Dir      string
	Registry *asset.Registry
	Store    state.Store
	Strategy fingerprint.Strategy
	Location *time.Location

	adapters map[string]persist.Adapter
}

// Open loads path and builds everything a run needs.
func Open(ctx context.Context, path string) (*Project, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return Build(ctx, f, filepath.Dir(abs))
}

// Build turns a decoded File into a Project. Relative paths resolve against
// dir.
func Build(ctx context.Context, f *File, dir string) (*Project, error) {
	strategy, err := fingerprint.ByName(f.Fingerprint)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if f.Timezone != "" {
		if loc, err = time.LoadLocation(f.Timezone); err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
	}

	// Declarations are checked before anything connects to a backend.
	if err := checkAssets(f); err != nil {
		return nil, err
	}

	adapters, err := openAdapters(ctx, dir, f.Adapters)
	if err != nil {
		return nil, err
	}
	reg, err := register(f, dir, adapters)
	if err != nil {
		closeAdapters(adapters)
		return nil, err
	}

	store, err := state.Open(ctx, stateConfig(f.State, dir))
	if err != nil {
		closeAdapters(adapters)
		return nil, fmt.Errorf("state store: %w", err)
	}

	name := f.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	return &Project{
		Name:     name,
		Dir:      dir,
		Registry: reg,
		Store:    store,
		Strategy: strategy,
		Location: loc,
		adapters: adapters,
	}, nil
}

// stateConfig defaults the store to JSON files under <dir>/.sidas/state.
func stateConfig(s StateSpec, dir string) state.Config {
	cfg := state.Config{Type: s.Type, Path: s.Path, DSN: s.DSN}
	if cfg.Type == "" {
		cfg.Type = "file"
	}
	if cfg.Type == "file" {
		if cfg.Path == "" {
			cfg.Path = filepath.Join(".sidas", "state")
		}
		cfg.Path = resolve(dir, cfg.Path)
	}
	return cfg
}

// checkAssets validates names, kinds, schedules, adapter references, and
// storage locations. It reports every problem found, not just the first.
func checkAssets(f *File) error {
	var errs []error
	names := make(map[string]bool, len(f.Assets))
	// adapter + "\x00" + key -> asset stored there
	locations := make(map[string]string, len(f.Assets))
	for i, a := range f.Assets {
		label := a.Name
		if strings.TrimSpace(label) == "" {
			errs = append(errs, fmt.Errorf("assets[%d]: name is required", i))
			continue
		}
		// Repeated names are rejected by the registry.
		if !names[label] {
			names[label] = true
			adapter, key := a.Adapter, a.Key
			if adapter == "" {
				adapter = DefaultAdapter
			}
			if key == "" {
				key = a.Name
			}
			loc := adapter + "\x00" + key
			if other, ok := locations[loc]; ok {
				errs = append(errs, fmt.Errorf("asset %q: adapter %q key %q is already used by asset %q", label, adapter, key, other))
			} else {
				locations[loc] = label
			}
		}
		if a.Kind == "" {
			errs = append(errs, fmt.Errorf("asset %q: kind is required", label))
		} else if _, err := compute.Resolve(a.Kind); err != nil {
			errs = append(errs, fmt.Errorf("asset %q: %w", label, err))
		}
		if a.Schedule != "" {
			if err := schedule.Validate(a.Schedule); err != nil {
				errs = append(errs, fmt.Errorf("asset %q: %w", label, err))
			}
		}
		if a.Adapter != "" && a.Adapter != DefaultAdapter {
			if _, ok := f.Adapters[a.Adapter]; !ok {
				errs = append(errs, fmt.Errorf("asset %q: unknown adapter %q", label, a.Adapter))
			}
		}
	}
	return errors.Join(errs...)
}

func register(f *File, dir string, adapters map[string]persist.Adapter) (*asset.Registry, error) {
	reg := asset.NewRegistry()
	env := compute.Env{BaseDir: dir}
	var errs []error
	for _, a := range f.Assets {
		adapterName := a.Adapter
		if adapterName == "" {
			adapterName = DefaultAdapter
		}
		d := asset.Descriptor{
			Name:           a.Name,
			Upstreams:      a.Upstreams,
			Schedule:       a.Schedule,
			Refresh:        a.Refresh,
			Kind:           a.Kind,
			Group:          a.Group,
			Description:    a.Description,
			PersistenceKey: a.Key,
			AdapterName:    adapterName,
			Adapter:        adapters[adapterName],
		}
		kind, _ := compute.Resolve(a.Kind)
		fn, err := kind.Build(a.Params, d.SortedUpstreams(), env)
		if err != nil {
			errs = append(errs, fmt.Errorf("asset %q: %w", a.Name, err))
			continue
		}
		d.Compute = fn
		if err := reg.Register(d); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}

// Adapter returns the named adapter.
func (p *Project) Adapter(name string) (persist.Adapter, bool) {
	a, ok := p.adapters[name]
	return a, ok
}

// AdapterNames returns configured adapter names, including the implicit default.
func (p *Project) AdapterNames() []string {
	out := make([]string, 0, len(p.adapters))
	for n := range p.adapters {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (p *Project) Close() error {
	return errors.Join(p.Store.Close(), closeAdapters(p.adapters))
}
