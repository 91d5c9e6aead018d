package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"sidas/internal/asset"
	"sidas/internal/persist/localfs"
)

// File keeps one JSON document per asset under a directory.
type File struct {
	dir string
	mu  sync.Mutex
}

func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("file state store: path is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file state store: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(name string) string {
	return filepath.Join(f.dir, url.PathEscape(name)+".json")
}

func (f *File) Get(_ context.Context, name string) (asset.State, error) {
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return asset.NeverState(), nil
	}
	if err != nil {
		return asset.State{}, fmt.Errorf("read state for %q: %w", name, err)
	}
	var st asset.State
	if err := json.Unmarshal(data, &st); err != nil {
		return asset.State{}, fmt.Errorf("decode state for %q: %w", name, err)
	}
	return st.Normalize(), nil
}

func (f *File) GetMany(ctx context.Context, names []string) (map[string]asset.State, error) {
	return getEach(ctx, f, names)
}

func (f *File) Put(_ context.Context, name string, st asset.State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state for %q: %w", name, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := localfs.WriteFileAtomic(f.path(name), data); err != nil {
		return fmt.Errorf("write state for %q: %w", name, err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, name string) error {
	err := os.Remove(f.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete state for %q: %w", name, err)
	}
	return nil
}

func (f *File) Close() error { return nil }
