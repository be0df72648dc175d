package table

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Row is an ordered column -> Value mapping. Rows are never mutated after
// construction; With and Without return copies, so datasets can share rows.
type Row struct {
	keys  []string
	cells map[string]Value
}

// NewRow builds a row from parallel key/value slices. Later duplicates win
// but keep the position of the first occurrence.
func NewRow(keys []string, vals []Value) Row {
	r := Row{keys: make([]string, 0, len(keys)), cells: make(map[string]Value, len(keys))}
	for i, k := range keys {
		v := Null()
		if i < len(vals) {
			v = vals[i]
		}
		if _, ok := r.cells[k]; !ok {
			r.keys = append(r.keys, k)
		}
		r.cells[k] = v
	}
	return r
}

// Keys returns a copy of the row's key order.
func (r Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r Row) Len() int { return len(r.keys) }

// Get returns the cell for key and whether the key is present.
func (r Row) Get(key string) (Value, bool) {
	v, ok := r.cells[key]
	return v, ok
}

// Value returns the cell for key, or null when absent.
func (r Row) Value(key string) Value {
	return r.cells[key]
}

// With returns a copy with key set to v. New keys are appended.
func (r Row) With(key string, v Value) Row {
	out := r.clone(1)
	if _, ok := out.cells[key]; !ok {
		out.keys = append(out.keys, key)
	}
	out.cells[key] = v
	return out
}

// Without returns a copy with key removed.
func (r Row) Without(key string) Row {
	if _, ok := r.cells[key]; !ok {
		return r
	}
	out := Row{keys: make([]string, 0, len(r.keys)), cells: make(map[string]Value, len(r.cells))}
	for _, k := range r.keys {
		if k == key {
			continue
		}
		out.keys = append(out.keys, k)
		out.cells[k] = r.cells[k]
	}
	return out
}

// IsBlank reports whether every cell is null or whitespace-only.
func (r Row) IsBlank() bool {
	for _, k := range r.keys {
		if !r.cells[k].IsBlank() {
			return false
		}
	}
	return true
}

// Equal compares key order and cells.
func (r Row) Equal(o Row) bool {
	if len(r.keys) != len(o.keys) {
		return false
	}
	for i, k := range r.keys {
		if o.keys[i] != k || !r.cells[k].Equal(o.cells[k]) {
			return false
		}
	}
	return true
}

func (r Row) clone(extra int) Row {
	out := Row{keys: make([]string, len(r.keys), len(r.keys)+extra), cells: make(map[string]Value, len(r.cells)+extra)}
	copy(out.keys, r.keys)
	for k, v := range r.cells {
		out.cells[k] = v
	}
	return out
}

// MarshalJSON writes the row as a JSON object in key order.
func (r Row) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := r.cells[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the document's key order.
func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("row must be a JSON object")
	}
	var keys []string
	var vals []Value
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected row key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("row field %q: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("row field %q: %w", key, err)
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = NewRow(keys, vals)
	return nil
}

// Dataset is an ordered sequence of rows. All rows are expected, not
// required, to share the first row's keys.
type Dataset []Row

// Headers returns the first row's key order, or nil for an empty dataset.
func (d Dataset) Headers() []string {
	if len(d) == 0 {
		return nil
	}
	return d[0].Keys()
}

// NonBlank returns the rows that carry at least one non-blank cell.
func (d Dataset) NonBlank() Dataset {
	out := make(Dataset, 0, len(d))
	for _, r := range d {
		if r.Len() == 0 || r.IsBlank() {
			continue
		}
		out = append(out, r)
	}
	return out
}
