package kinds

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sidas/internal/asset"
	"sidas/internal/compute"
	"sidas/internal/dataset"
	"sidas/internal/persist"
)

type fileKind struct{}

func (fileKind) Name() string  { return "file" }
func (fileKind) Title() string { return "Read a local file" }
func (fileKind) Description() string {
	return "Reads records from a local file. The format follows the extension\n" +
		"(.json, .ndjson/.jsonl, .csv) unless set explicitly. Relative paths\n" +
		"resolve against the project file's directory.\n\n" +
		"CSV files must have a header row; every cell is read as a string."
}

func (fileKind) Options() []compute.Option {
	return []compute.Option{
		{Name: "path", Description: "File to read.", Required: true},
		{Name: "format", Description: "json, ndjson, or csv.", Default: "from extension"},
	}
}

func (k fileKind) Build(params map[string]any, _ []string, env compute.Env) (asset.ComputeFunc, error) {
	p := compute.Params(params)
	if err := rejectUnknown(k, p); err != nil {
		return nil, err
	}
	path, err := p.RequiredString("path")
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(path) && env.BaseDir != "" {
		path = filepath.Join(env.BaseDir, path)
	}
	format, err := p.String("format")
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = formatFromExt(path)
	}
	format = strings.ToLower(format)
	switch format {
	case "json", "ndjson", "jsonl", "csv":
	default:
		return nil, fmt.Errorf("unsupported file format %q (must be one of: json, ndjson, csv)", format)
	}

	return func(ctx context.Context, _ string, _ map[string]any) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if format == "csv" {
			return readCSV(f)
		}
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		codec, err := persist.CodecFor(format)
		if err != nil {
			return nil, err
		}
		v, err := codec.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if rs, err := dataset.From(v); err == nil {
			return rs, nil
		}
		return v, nil
	}, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ndjson", ".jsonl":
		return "ndjson"
	case ".csv":
		return "csv"
	default:
		return "json"
	}
}

func readCSV(r io.Reader) (dataset.Records, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return dataset.Records{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	out := dataset.Records{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rec := make(dataset.Record, len(header))
		for i, col := range header {
			rec[col] = row[i]
		}
		out = append(out, rec)
	}
	return out, nil
}

func init() {
	compute.Register(fileKind{})
}
