package project

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sidas/internal/persist"
	"sidas/internal/persist/columnar"
	"sidas/internal/persist/localfs"
	"sidas/internal/persist/memory"
	"sidas/internal/persist/objectstore"
	"sidas/internal/persist/postgres"
)

// maxAdapterConnects bounds concurrent adapter construction. Remote
// backends dial and migrate while they are built.
const maxAdapterConnects = 4

// openAdapters builds every declared adapter, plus an implicit localfs
// "default" adapter under <dir>/.sidas/data when none is declared.
// On error, adapters already built are closed.
func openAdapters(ctx context.Context, dir string, specs map[string]AdapterSpec) (map[string]persist.Adapter, error) {
	if _, ok := specs[DefaultAdapter]; !ok {
		all := make(map[string]AdapterSpec, len(specs)+1)
		for k, v := range specs {
			all[k] = v
		}
		all[DefaultAdapter] = AdapterSpec{Type: "localfs", Root: filepath.Join(".sidas", "data")}
		specs = all
	}

	names := make([]string, 0, len(specs))
	for n := range specs {
		names = append(names, n)
	}
	sort.Strings(names)

	var (
		mu  sync.Mutex
		out = make(map[string]persist.Adapter, len(names))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxAdapterConnects)
	for _, name := range names {
		spec := specs[name]
		g.Go(func() error {
			a, err := openAdapter(gctx, dir, spec)
			if err != nil {
				return fmt.Errorf("adapter %q: %w", name, err)
			}
			mu.Lock()
			out[name] = a
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeAdapters(out)
		return nil, err
	}
	return out, nil
}

func openAdapter(ctx context.Context, dir string, spec AdapterSpec) (persist.Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case "memory":
		return memory.New(), nil
	case "localfs":
		codec, err := persist.CodecFor(spec.Format)
		if err != nil {
			return nil, err
		}
		return localfs.New(resolve(dir, spec.Root), codec)
	case "columnar":
		return columnar.New(resolve(dir, spec.Root))
	case "objectstore":
		return objectstore.New(ctx, objectstore.Config{
			Endpoint:  spec.Endpoint,
			Bucket:    spec.Bucket,
			Prefix:    spec.Prefix,
			AccessKey: spec.AccessKey,
			SecretKey: spec.SecretKey,
			Region:    spec.Region,
			UseSSL:    spec.UseSSL,
			Format:    spec.Format,
		})
	case "postgres":
		if spec.DSN == "" {
			return nil, fmt.Errorf("postgres adapter needs dsn")
		}
		if err := postgres.Migrate(ctx, spec.DSN); err != nil {
			return nil, err
		}
		db, err := postgres.Open(ctx, spec.DSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewAdapter(db), nil
	case "":
		return nil, fmt.Errorf("type is required")
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be one of: memory, localfs, columnar, objectstore, postgres)", spec.Type)
	}
}

func closeAdapters(as map[string]persist.Adapter) error {
	var first error
	for _, a := range as {
		if c, ok := a.(persist.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
