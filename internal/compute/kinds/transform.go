package kinds

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sidas/internal/asset"
	"sidas/internal/compute"
	"sidas/internal/dataset"
)

// pick returns the record set of the single upstream a transform reads from.
func pick(param string, upstreams []string) (string, error) {
	if param != "" {
		for _, u := range upstreams {
			if u == param {
				return param, nil
			}
		}
		return "", fmt.Errorf("param \"from\": %q is not a declared upstream", param)
	}
	if len(upstreams) != 1 {
		return "", fmt.Errorf("param \"from\" is required with %d upstreams", len(upstreams))
	}
	return upstreams[0], nil
}

func input(up map[string]any, name string) (dataset.Records, error) {
	rs, err := dataset.From(up[name])
	if err != nil {
		return nil, fmt.Errorf("upstream %q: %w", name, err)
	}
	return rs, nil
}

type unionKind struct{}

func (unionKind) Name() string  { return "union" }
func (unionKind) Title() string { return "Concatenate upstream record sets" }
func (unionKind) Description() string {
	return "Appends the records of every upstream, in upstream name order.\n" +
		"With source_column set, each record gains a column naming its upstream."
}

func (unionKind) Options() []compute.Option {
	return []compute.Option{
		{Name: "source_column", Description: "Column receiving the upstream name."},
	}
}

func (k unionKind) Build(params map[string]any, upstreams []string, _ compute.Env) (asset.ComputeFunc, error) {
	p := compute.Params(params)
	if err := rejectUnknown(k, p); err != nil {
		return nil, err
	}
	if len(upstreams) == 0 {
		return nil, fmt.Errorf("union needs at least one upstream")
	}
	source, err := p.String("source_column")
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, _ string, up map[string]any) (any, error) {
		out := dataset.Records{}
		for _, u := range upstreams {
			rs, err := input(up, u)
			if err != nil {
				return nil, err
			}
			for _, r := range rs.Clone() {
				if source != "" {
					r[source] = u
				}
				out = append(out, r)
			}
		}
		return out, nil
	}, nil
}

type selectKind struct{}

func (selectKind) Name() string  { return "select" }
func (selectKind) Title() string { return "Project columns" }
func (selectKind) Description() string {
	return "Keeps only the listed columns of an upstream record set. Missing\n" +
		"columns are emitted as null."
}

func (selectKind) Options() []compute.Option {
	return []compute.Option{
		{Name: "columns", Description: "Columns to keep, in order.", Required: true},
		{Name: "from", Description: "Upstream to read; optional with a single upstream."},
	}
}

func (k selectKind) Build(params map[string]any, upstreams []string, _ compute.Env) (asset.ComputeFunc, error) {
	p := compute.Params(params)
	if err := rejectUnknown(k, p); err != nil {
		return nil, err
	}
	cols, err := p.StringSlice("columns")
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("param \"columns\" is required")
	}
	fromParam, err := p.String("from")
	if err != nil {
		return nil, err
	}
	from, err := pick(fromParam, upstreams)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, _ string, up map[string]any) (any, error) {
		rs, err := input(up, from)
		if err != nil {
			return nil, err
		}
		out := make(dataset.Records, len(rs))
		for i, r := range rs {
			rec := make(dataset.Record, len(cols))
			for _, c := range cols {
				rec[c] = r[c]
			}
			out[i] = rec
		}
		return out, nil
	}, nil
}

type filterKind struct{}

func (filterKind) Name() string  { return "filter" }
func (filterKind) Title() string { return "Filter records" }
func (filterKind) Description() string {
	return "Keeps records whose column satisfies a comparison.\n\n" +
		"Operators: eq, ne, gt, gte, lt, lte (numeric when both sides are numbers),\n" +
		"in (value is a list), exists (value ignored)."
}

func (filterKind) Options() []compute.Option {
	return []compute.Option{
		{Name: "column", Description: "Column to test.", Required: true},
		{Name: "op", Description: "Comparison operator.", Default: "eq"},
		{Name: "value", Description: "Right-hand side of the comparison."},
		{Name: "from", Description: "Upstream to read; optional with a single upstream."},
	}
}

func (k filterKind) Build(params map[string]any, upstreams []string, _ compute.Env) (asset.ComputeFunc, error) {
	p := compute.Params(params)
	if err := rejectUnknown(k, p); err != nil {
		return nil, err
	}
	col, err := p.RequiredString("column")
	if err != nil {
		return nil, err
	}
	op, err := p.String("op")
	if err != nil {
		return nil, err
	}
	if op == "" {
		op = "eq"
	}
	pred, err := predicate(strings.ToLower(op), normalizeYAML(p["value"]))
	if err != nil {
		return nil, err
	}
	fromParam, err := p.String("from")
	if err != nil {
		return nil, err
	}
	from, err := pick(fromParam, upstreams)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, _ string, up map[string]any) (any, error) {
		rs, err := input(up, from)
		if err != nil {
			return nil, err
		}
		out := dataset.Records{}
		for _, r := range rs {
			v, ok := r[col]
			if pred(v, ok) {
				out = append(out, r)
			}
		}
		return out.Clone(), nil
	}, nil
}

func predicate(op string, want any) (func(v any, present bool) bool, error) {
	switch op {
	case "exists":
		return func(_ any, present bool) bool { return present }, nil
	case "eq":
		return func(v any, present bool) bool { return present && compare(v, want) == 0 }, nil
	case "ne":
		return func(v any, present bool) bool { return !present || compare(v, want) != 0 }, nil
	case "gt":
		return func(v any, present bool) bool { return present && compare(v, want) > 0 }, nil
	case "gte":
		return func(v any, present bool) bool { return present && compare(v, want) >= 0 }, nil
	case "lt":
		return func(v any, present bool) bool { return present && compare(v, want) < 0 }, nil
	case "lte":
		return func(v any, present bool) bool { return present && compare(v, want) <= 0 }, nil
	case "in":
		list, ok := want.([]any)
		if !ok {
			return nil, fmt.Errorf("op \"in\" needs a list value, got %T", want)
		}
		return func(v any, present bool) bool {
			if !present {
				return false
			}
			for _, w := range list {
				if compare(v, w) == 0 {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, fmt.Errorf("unknown op %q (must be one of: eq, ne, gt, gte, lt, lte, in, exists)", op)
	}
}

// compare orders numbers numerically and everything else by string form.
func compare(a, b any) int {
	fa, aok := number(a)
	fb, bok := number(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

type countKind struct{}

func (countKind) Name() string  { return "count" }
func (countKind) Title() string { return "Count records" }
func (countKind) Description() string {
	return "Counts upstream records, optionally grouped by columns. Emits one\n" +
		"record per group with the group columns and a count column, sorted by group."
}

func (countKind) Options() []compute.Option {
	return []compute.Option{
		{Name: "group_by", Description: "Columns to group by."},
		{Name: "as", Description: "Name of the count column.", Default: "count"},
		{Name: "from", Description: "Upstream to read; optional with a single upstream."},
	}
}

func (k countKind) Build(params map[string]any, upstreams []string, _ compute.Env) (asset.ComputeFunc, error) {
	p := compute.Params(params)
	if err := rejectUnknown(k, p); err != nil {
		return nil, err
	}
	groupBy, err := p.StringSlice("group_by")
	if err != nil {
		return nil, err
	}
	as, err := p.String("as")
	if err != nil {
		return nil, err
	}
	if as == "" {
		as = "count"
	}
	fromParam, err := p.String("from")
	if err != nil {
		return nil, err
	}
	from, err := pick(fromParam, upstreams)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, _ string, up map[string]any) (any, error) {
		rs, err := input(up, from)
		if err != nil {
			return nil, err
		}
		type group struct {
			rec dataset.Record
			n   int
		}
		groups := map[string]*group{}
		for _, r := range rs {
			parts := make([]string, len(groupBy))
			rec := make(dataset.Record, len(groupBy)+1)
			for i, c := range groupBy {
				parts[i] = fmt.Sprint(r[c])
				rec[c] = r[c]
			}
			key := strings.Join(parts, "\x00")
			g, ok := groups[key]
			if !ok {
				g = &group{rec: rec}
				groups[key] = g
			}
			g.n++
		}
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(dataset.Records, 0, len(keys))
		for _, key := range keys {
			g := groups[key]
			g.rec[as] = g.n
			out = append(out, g.rec)
		}
		if len(groupBy) == 0 && len(out) == 0 {
			out = append(out, dataset.Record{as: 0})
		}
		return out, nil
	}, nil
}

func init() {
	compute.Register(unionKind{})
	compute.Register(selectKind{})
	compute.Register(filterKind{})
	compute.Register(countKind{})
}
