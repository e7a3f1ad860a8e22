// Package table slices a vendor's rate record into fixed-size pages of
// row views.
package table

import "github.com/JonMunkholm/vendorrates/internal/ratecsv"

const (
	// DefaultPageSize is the number of rows shown per page.
	DefaultPageSize = 8

	// Placeholder is rendered in place of an empty rate.
	Placeholder = "-"

	// ZoneColumn identifies rows; its length is the record's row count.
	ZoneColumn = "COUNTRY/ZONE"
)

// Cell is one rate value in a row.
type Cell struct {
	Column string
	Value  string // Placeholder when Empty
	Empty  bool
}

// RowView is one data row ready for display.
type RowView struct {
	Index int // absolute row index in the record
	Zone  string
	Cells []Cell
}

// PageResult is a window of rows plus the numbers a pagination footer needs.
type PageResult struct {
	Rows       []RowView
	Columns    []string // rate columns in header order, zone column excluded
	TotalRows  int
	TotalPages int
	Page       int // 1-based, clamped
	PageSize   int
	StartIndex int
	HasPrev    bool
	HasNext    bool
}

// RowCount returns the length of the zone column, or 0 when the record has
// no zone column.
func RowCount(rec ratecsv.ColumnRecord) int {
	zones, ok := rec.Column(ZoneColumn)
	if !ok {
		return 0
	}
	return len(zones)
}

// TotalPages returns ceil(rows/size).
func TotalPages(rows, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	return (rows + size - 1) / size
}

// ClampPage keeps page within [1, max(1, total pages)].
func ClampPage(page, rows, size int) int {
	last := max(1, TotalPages(rows, size))
	return min(max(page, 1), last)
}

// Page returns the rows of the given 1-based page. Out-of-range pages are
// clamped rather than rejected.
func Page(rec ratecsv.ColumnRecord, page, size int) PageResult {
	if size <= 0 {
		size = DefaultPageSize
	}

	rows := RowCount(rec)
	page = ClampPage(page, rows, size)
	total := TotalPages(rows, size)

	columns := make([]string, 0, rec.Width())
	for _, h := range rec.Headers() {
		if h != ZoneColumn {
			columns = append(columns, h)
		}
	}

	start := (page - 1) * size
	end := min(start+size, rows)

	res := PageResult{
		Columns:    columns,
		TotalRows:  rows,
		TotalPages: total,
		Page:       page,
		PageSize:   size,
		StartIndex: start,
		HasPrev:    page > 1,
		HasNext:    page < total,
	}
	for i := start; i < end; i++ {
		res.Rows = append(res.Rows, buildRow(rec, columns, i))
	}
	return res
}

func buildRow(rec ratecsv.ColumnRecord, columns []string, i int) RowView {
	row := RowView{
		Index: i,
		Zone:  rec.Value(ZoneColumn, i),
		Cells: make([]Cell, len(columns)),
	}
	for j, col := range columns {
		v := rec.Value(col, i)
		if v == "" {
			row.Cells[j] = Cell{Column: col, Value: Placeholder, Empty: true}
			continue
		}
		row.Cells[j] = Cell{Column: col, Value: v}
	}
	return row
}
