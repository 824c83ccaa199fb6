package query

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row maps column names to scalar values and remembers column order. A
// repeated column name keeps its first position and its last value.
type Row struct {
	keys   []string
	values map[string]any
}

func NewRow(columns []string, values []any) Row {
	row := Row{keys: make([]string, 0, len(columns)), values: make(map[string]any, len(columns))}
	for i, column := range columns {
		var value any
		if i < len(values) {
			value = values[i]
		}
		row.Set(column, value)
	}
	return row
}

func (r *Row) Set(column string, value any) {
	if r.values == nil {
		r.values = map[string]any{}
	}
	if _, exists := r.values[column]; !exists {
		r.keys = append(r.keys, column)
	}
	r.values[column] = value
}

func (r Row) Get(column string) (any, bool) {
	value, ok := r.values[column]
	return value, ok
}

func (r Row) Columns() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Values returns the values in column order.
func (r Row) Values() []any {
	out := make([]any, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.values[key])
	}
	return out
}

func (r Row) Len() int {
	return len(r.keys)
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		encodedValue, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, fmt.Errorf("encode column %q: %w", key, err)
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}

	decoded := Row{keys: []string{}, values: map[string]any{}}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		key, ok := token.(string)
		if !ok {
			return fmt.Errorf("row key must be a string")
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("decode column %q: %w", key, err)
		}
		decoded.Set(key, value)
	}
	if _, err := decoder.Token(); err != nil {
		return err
	}
	*r = decoded
	return nil
}
