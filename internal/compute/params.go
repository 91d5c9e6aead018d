package compute

import (
	"fmt"
	"strconv"
)

// Params wraps a kind's raw YAML params with typed accessors.
type Params map[string]any

func (p Params) String(name string) (string, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return "", nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case int, int64, float64, bool:
		return fmt.Sprint(t), nil
	default:
		return "", fmt.Errorf("param %q must be a string, got %T", name, v)
	}
}

func (p Params) RequiredString(name string) (string, error) {
	s, err := p.String(name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("param %q is required", name)
	}
	return s, nil
}

func (p Params) StringSlice(name string) ([]string, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("param %q[%d] must be a string, got %T", name, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("param %q must be a list of strings, got %T", name, v)
	}
}

func (p Params) Bool(name string, def bool) (bool, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, fmt.Errorf("param %q: %w", name, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("param %q must be a boolean, got %T", name, v)
	}
}

// Unknown returns params not named by opts, for strict validation.
func (p Params) Unknown(opts []Option) []string {
	known := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		known[o.Name] = struct{}{}
	}
	var out []string
	for k := range p {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
