// Package dataset holds the tabular value shape shared by the built-in
// compute kinds and the tabular persistence backends.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Record is one row keyed by column name.
type Record = map[string]any

// Records is an ordered set of rows.
type Records []Record

var ErrNotTabular = errors.New("value is not a record set")

// Columns returns the union of column names across all rows, sorted.
func (rs Records) Columns() []string {
	seen := make(map[string]struct{})
	for _, r := range rs {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Clone copies the row maps; cell values are shared.
func (rs Records) Clone() Records {
	out := make(Records, len(rs))
	for i, r := range rs {
		cp := make(Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// From converts the value shapes produced by compute functions and codecs
// into Records.
func From(v any) (Records, error) {
	switch t := v.(type) {
	case nil:
		return Records{}, nil
	case Records:
		return t, nil
	case []map[string]any:
		return Records(t), nil
	case []any:
		out := make(Records, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: row %d is %T", ErrNotTabular, i, item)
			}
			out = append(out, m)
		}
		return out, nil
	case json.RawMessage:
		var out Records
		if err := json.Unmarshal(t, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotTabular, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotTabular, v)
	}
}
