// Package columnar persists record sets as Parquet files.
//
// Records are stored in long form, one cell per (row, column), so record sets
// with heterogeneous columns fit a single fixed schema. Cell values are
// JSON-encoded.
package columnar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"sidas/internal/dataset"
	"sidas/internal/persist"
	"sidas/internal/persist/localfs"
)

const (
	backendName = "columnar"
	ext         = ".parquet"
)

type cell struct {
	Row    int64  `parquet:"row"`
	Column string `parquet:"column"`
	Value  string `parquet:"value"`
}

type Adapter struct {
	root string
}

func New(root string) (*Adapter, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("columnar: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("columnar: create root: %w", err)
	}
	return &Adapter{root: root}, nil
}

func (a *Adapter) Backend() string { return backendName }

func (a *Adapter) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || clean == "." || clean == ".." || filepath.IsAbs(clean) ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(a.root, clean+ext), nil
}

func (a *Adapter) Load(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	p, err := a.path(key)
	if err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return nil, persist.NotFound(backendName, key)
	}
	cells, err := parquet.ReadFile[cell](p)
	if err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	rs, err := fromCells(cells)
	return rs, persist.Wrap(backendName, "load", key, err)
}

func (a *Adapter) Save(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	p, err := a.path(key)
	if err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	rs, err := dataset.From(value)
	if err != nil {
		return persist.Wrap(backendName, "save", key, fmt.Errorf("%w: %v", persist.ErrUnsupportedValue, err))
	}
	cells, err := toCells(rs)
	if err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[cell](&buf)
	if _, err := w.Write(cells); err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	if err := w.Close(); err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	return persist.Wrap(backendName, "save", key, localfs.WriteFileAtomic(p, buf.Bytes()))
}

func (a *Adapter) Exists(_ context.Context, key string) (bool, error) {
	p, err := a.path(key)
	if err != nil {
		return false, persist.Wrap(backendName, "exists", key, err)
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, persist.Wrap(backendName, "exists", key, err)
}

func (a *Adapter) Delete(_ context.Context, key string) error {
	p, err := a.path(key)
	if err != nil {
		return persist.Wrap(backendName, "delete", key, err)
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return persist.Wrap(backendName, "delete", key, err)
}

// toCells melts rows into cells. A row without columns is kept as a single
// cell with an empty column name.
func toCells(rs dataset.Records) ([]cell, error) {
	out := make([]cell, 0, len(rs))
	for i, r := range rs {
		if len(r) == 0 {
			out = append(out, cell{Row: int64(i)})
			continue
		}
		cols := make([]string, 0, len(r))
		for k := range r {
			cols = append(cols, k)
		}
		sort.Strings(cols)
		for _, c := range cols {
			if c == "" {
				return nil, fmt.Errorf("row %d: empty column name", i)
			}
			b, err := json.Marshal(r[c])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, c, err)
			}
			out = append(out, cell{Row: int64(i), Column: c, Value: string(b)})
		}
	}
	return out, nil
}

func fromCells(cells []cell) (dataset.Records, error) {
	var n int64
	for _, c := range cells {
		if c.Row+1 > n {
			n = c.Row + 1
		}
	}
	out := make(dataset.Records, n)
	for i := range out {
		out[i] = dataset.Record{}
	}
	for _, c := range cells {
		if c.Column == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(c.Value), &v); err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", c.Row, c.Column, err)
		}
		out[c.Row][c.Column] = v
	}
	return out, nil
}
