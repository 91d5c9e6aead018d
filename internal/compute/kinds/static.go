// Package kinds provides the built-in compute kinds. Importing it registers
// them with the compute registry.
package kinds

import (
	"context"
	"fmt"
	"strings"

	"sidas/internal/asset"
	"sidas/internal/compute"
	"sidas/internal/dataset"
)

type staticKind struct{}

func (staticKind) Name() string  { return "static" }
func (staticKind) Title() string { return "Static value" }
func (staticKind) Description() string {
	return "Emits the value given in params. Useful for seeds, reference data, and tests.\n\n" +
		"Example:\n" +
		"  - name: regions\n" +
		"    kind: static\n" +
		"    params:\n" +
		"      rows:\n" +
		"        - {code: eu, name: Europe}\n" +
		"        - {code: us, name: United States}"
}

func (staticKind) Options() []compute.Option {
	return []compute.Option{
		{Name: "rows", Description: "List of records to emit."},
		{Name: "value", Description: "Arbitrary value to emit when rows is not set."},
	}
}

func (k staticKind) Build(params map[string]any, upstreams []string, _ compute.Env) (asset.ComputeFunc, error) {
	p := compute.Params(params)
	if err := rejectUnknown(k, p); err != nil {
		return nil, err
	}
	if len(upstreams) > 0 {
		return nil, fmt.Errorf("static assets take no upstreams, got %s", strings.Join(upstreams, ", "))
	}
	var out any
	if rows, ok := p["rows"]; ok {
		rs, err := dataset.From(normalizeYAML(rows))
		if err != nil {
			return nil, fmt.Errorf("param \"rows\": %w", err)
		}
		out = rs
	} else {
		out = normalizeYAML(p["value"])
	}
	return func(context.Context, string, map[string]any) (any, error) {
		if rs, ok := out.(dataset.Records); ok {
			return rs.Clone(), nil
		}
		return out, nil
	}, nil
}

func rejectUnknown(k compute.Kind, p compute.Params) error {
	if unknown := p.Unknown(k.Options()); len(unknown) > 0 {
		return fmt.Errorf("unknown params for kind %s: %s", k.Name(), strings.Join(unknown, ", "))
	}
	return nil
}

// normalizeYAML converts map[any]any nodes, which some YAML decoders emit,
// into map[string]any so values stay JSON-encodable.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

func init() {
	compute.Register(staticKind{})
}
