package ratecsv

import "strings"

const (
	rowSep   = "\n"
	fieldSep = ","
)

// Parse pivots raw rate-sheet text into a ColumnRecord.
//
// Parse never fails: input without a header line yields the empty record,
// and ragged rows are padded or truncated to the header width. Callers
// should treat an empty result as "nothing to upload".
func Parse(raw string) ColumnRecord {
	lines := nonBlankLines(raw)
	if len(lines) == 0 {
		return ColumnRecord{}
	}

	header := splitFields(lines[0])
	body := lines[1:]

	// owner[name] is the last header position carrying that name.
	owner := make(map[string]int, len(header))
	for i, name := range header {
		owner[name] = i
	}

	rec := ColumnRecord{columns: make(map[string][]string, len(owner))}
	for _, name := range header {
		if _, seen := rec.columns[name]; seen {
			continue
		}
		rec.headers = append(rec.headers, name)
		rec.columns[name] = make([]string, 0, len(body))
	}

	for _, line := range body {
		fields := splitFields(line)
		for i, name := range header {
			if owner[name] != i {
				continue
			}
			var v string
			if i < len(fields) {
				v = fields[i]
			}
			rec.columns[name] = append(rec.columns[name], v)
		}
	}
	return rec
}

// Format writes the record back as rate-sheet text, one line per row with a
// trailing newline. Parse(Format(r)) reproduces r when no value contains a
// delimiter and no row is entirely blank.
func Format(rec ColumnRecord) string {
	if rec.IsEmpty() {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.Join(rec.headers, fieldSep))
	b.WriteString(rowSep)

	row := make([]string, len(rec.headers))
	for i := 0; i < rec.Len(); i++ {
		for j, h := range rec.headers {
			row[j] = rec.columns[h][i]
		}
		b.WriteString(strings.Join(row, fieldSep))
		b.WriteString(rowSep)
	}
	return b.String()
}

func nonBlankLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, rowSep) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func splitFields(line string) []string {
	fields := strings.Split(line, fieldSep)
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}
