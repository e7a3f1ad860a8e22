// Package ratecsv converts delimited rate sheets into column-oriented records.
//
// A rate sheet is a comma/newline delimited text file whose first non-blank
// line names the columns. Parse pivots it into a ColumnRecord: one ordered
// value sequence per header, every sequence the same length. The pivot is
// positional and deliberately tolerant:
//
//   - blank lines (after trimming) are dropped, wherever they appear
//   - every field is whitespace-trimmed, so CRLF files behave like LF files
//   - rows shorter than the header are padded with ""
//   - fields beyond the header width are dropped
//   - a repeated header name keeps its first position, values come from the
//     last column carrying that name
//
// Quoting and embedded delimiters are not interpreted.
package ratecsv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// ColumnRecord maps header names to ordered value sequences, preserving the
// header order of the source file. The zero value is an empty record.
type ColumnRecord struct {
	headers []string
	columns map[string][]string
}

// FromColumns builds a record from an explicit header order and column map.
// Every header must have a column and all columns must have equal length.
func FromColumns(headers []string, columns map[string][]string) (ColumnRecord, error) {
	rec := ColumnRecord{columns: make(map[string][]string, len(headers))}
	rows := -1
	for _, h := range headers {
		if _, dup := rec.columns[h]; dup {
			return ColumnRecord{}, fmt.Errorf("invalid csv: duplicate column %q", h)
		}
		values, ok := columns[h]
		if !ok {
			return ColumnRecord{}, fmt.Errorf("invalid csv: column %q has no values", h)
		}
		if rows >= 0 && len(values) != rows {
			return ColumnRecord{}, fmt.Errorf("invalid csv: column %q has %d rows, want %d", h, len(values), rows)
		}
		rows = len(values)
		rec.headers = append(rec.headers, h)
		rec.columns[h] = slices.Clone(values)
	}
	if len(columns) != len(headers) {
		return ColumnRecord{}, fmt.Errorf("invalid csv: %d columns for %d headers", len(columns), len(headers))
	}
	return rec, nil
}

// Headers returns the column names in source order.
func (r ColumnRecord) Headers() []string {
	return slices.Clone(r.headers)
}

// Column returns the values of the named column.
func (r ColumnRecord) Column(name string) ([]string, bool) {
	values, ok := r.columns[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(values), true
}

// Value returns the value at row i of the named column, or "" when either
// the column or the row does not exist.
func (r ColumnRecord) Value(name string, i int) string {
	values := r.columns[name]
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}

// Len returns the number of data rows.
func (r ColumnRecord) Len() int {
	if len(r.headers) == 0 {
		return 0
	}
	return len(r.columns[r.headers[0]])
}

// Width returns the number of columns.
func (r ColumnRecord) Width() int {
	return len(r.headers)
}

// IsEmpty reports whether the record has no header at all. A record with a
// header but no data rows is not empty.
func (r ColumnRecord) IsEmpty() bool {
	return len(r.headers) == 0
}

// Clone returns a deep copy.
func (r ColumnRecord) Clone() ColumnRecord {
	if r.IsEmpty() {
		return ColumnRecord{}
	}
	out := ColumnRecord{
		headers: slices.Clone(r.headers),
		columns: make(map[string][]string, len(r.columns)),
	}
	for k, v := range r.columns {
		out.columns[k] = slices.Clone(v)
	}
	return out
}

// Equal reports whether two records have the same headers in the same order
// and identical values.
func (r ColumnRecord) Equal(o ColumnRecord) bool {
	if !slices.Equal(r.headers, o.headers) {
		return false
	}
	for _, h := range r.headers {
		if !slices.Equal(r.columns[h], o.columns[h]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as an object whose keys follow header order.
func (r ColumnRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range r.headers {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		values := r.columns[h]
		if values == nil {
			values = []string{}
		}
		val, err := json.Marshal(values)
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

// UnmarshalJSON decodes an object of string arrays, keeping key order.
// A key repeated in the object keeps its first position and its last value.
func (r *ColumnRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode record: expected object, got %v", tok)
	}

	var headers []string
	columns := make(map[string][]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode record: unexpected key %v", tok)
		}
		var values []string
		if err := dec.Decode(&values); err != nil {
			return fmt.Errorf("decode record column %q: %w", key, err)
		}
		if values == nil {
			values = []string{}
		}
		if _, seen := columns[key]; !seen {
			headers = append(headers, key)
		}
		columns[key] = values
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	rec, err := FromColumns(headers, columns)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
