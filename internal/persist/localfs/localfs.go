// Package localfs persists asset values as files under a root directory.
//
// Each key maps to <root>/<key>.<ext>, where the extension follows the codec.
// Writes go to a temporary file in the same directory and are renamed into
// place, so readers see either the old file or the new one.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sidas/internal/persist"
)

const backendName = "localfs"

type Adapter struct {
	root  string
	codec persist.Codec
}

// New creates root if needed. A nil codec means JSON.
func New(root string, codec persist.Codec) (*Adapter, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if codec == nil {
		codec = persist.JSONCodec{}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("localfs: create root: %w", err)
	}
	return &Adapter{root: root, codec: codec}, nil
}

func (a *Adapter) Backend() string { return backendName }

// Path returns the file a key is stored in.
func (a *Adapter) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(a.root, clean+"."+a.codec.Name()), nil
}

func (a *Adapter) Load(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	p, err := a.Path(key)
	if err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persist.NotFound(backendName, key)
	}
	if err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	v, err := a.codec.Decode(data)
	return v, persist.Wrap(backendName, "load", key, err)
}

func (a *Adapter) Save(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	p, err := a.Path(key)
	if err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	data, err := a.codec.Encode(value)
	if err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	return persist.Wrap(backendName, "save", key, writeAtomic(p, data))
}

func (a *Adapter) Exists(_ context.Context, key string) (bool, error) {
	p, err := a.Path(key)
	if err != nil {
		return false, persist.Wrap(backendName, "exists", key, err)
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, persist.Wrap(backendName, "exists", key, err)
	}
	return true, nil
}

func (a *Adapter) Delete(_ context.Context, key string) error {
	p, err := a.Path(key)
	if err != nil {
		return persist.Wrap(backendName, "delete", key, err)
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return persist.Wrap(backendName, "delete", key, err)
}

// writeAtomic stages data next to path and renames it into place.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteFileAtomic is the staging-and-rename helper, exported for other
// file-backed stores.
func WriteFileAtomic(path string, data []byte) error {
	return writeAtomic(path, data)
}
