package model

import (
	"bytes"
	"encoding/json"
)

// Field is one named scalar value inside a Record.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Record is an ordered, immutable mapping of field name to scalar value.
// Every modifying method returns a new Record and leaves the receiver untouched.
type Record struct {
	fields []Field
}

// NewRecord builds a record from fields in the given order. A repeated name
// overwrites the earlier value but keeps the earlier position.
func NewRecord(fields ...Field) Record {
	r := Record{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		if i := r.index(f.Name); i >= 0 {
			r.fields[i].Value = f.Value
			continue
		}
		r.fields = append(r.fields, f)
	}
	return r
}

// FromMap builds a record whose field order follows keys. Keys missing from m
// are stored with a nil value.
func FromMap(keys []string, m map[string]any) Record {
	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Name: k, Value: m[k]})
	}
	return NewRecord(fields...)
}

func (r Record) index(name string) int {
	for i, f := range r.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.fields) }

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	if i := r.index(name); i >= 0 {
		return r.fields[i].Value, true
	}
	return nil, false
}

// Keys returns the field names in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Name
	}
	return keys
}

// Fields returns a copy of the ordered fields.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Map returns the values keyed by field name. Order is lost.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		m[f.Name] = f.Value
	}
	return m
}

// With returns a copy of r with name set to value. An existing field keeps its
// position; a new field is appended.
func (r Record) With(name string, value any) Record {
	out := Record{fields: r.Fields()}
	if i := out.index(name); i >= 0 {
		out.fields[i].Value = value
		return out
	}
	out.fields = append(out.fields, Field{Name: name, Value: value})
	return out
}

// Without returns a copy of r without the named fields.
func (r Record) Without(names ...string) Record {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := Record{fields: make([]Field, 0, len(r.fields))}
	for _, f := range r.fields {
		if !drop[f.Name] {
			out.fields = append(out.fields, f)
		}
	}
	return out
}

// Rename returns a copy of r with field from renamed to to. If to already
// exists it is replaced by the renamed field.
func (r Record) Rename(from, to string) Record {
	i := r.index(from)
	if i < 0 || from == to {
		return r
	}
	out := Record{fields: make([]Field, 0, len(r.fields))}
	for j, f := range r.fields {
		switch {
		case j == i:
			out.fields = append(out.fields, Field{Name: to, Value: f.Value})
		case f.Name == to:
			// replaced by the renamed field
		default:
			out.fields = append(out.fields, f)
		}
	}
	return out
}

// MarshalJSON encodes the record as a JSON object with fields in order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
