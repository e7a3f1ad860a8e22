package table

import "github.com/JonMunkholm/vendorrates/internal/ratecsv"

// Source supplies vendor records. *rates.Cache implements it.
type Source interface {
	Lookup(name string) (ratecsv.ColumnRecord, bool)
}

// View is one operator's table: the selected vendor and the current page.
// It is not safe for concurrent use.
type View struct {
	source   Source
	size     int
	selected string
	page     int
	rec      ratecsv.ColumnRecord
	found    bool
	rows     int
}

// NewView returns a view on page 1 with nothing selected.
func NewView(source Source, size int) *View {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &View{source: source, size: size, page: 1}
}

// SelectVendor switches to name and resets to page 1. An unknown vendor is
// not an error; HasData reports false until the vendor appears.
func (v *View) SelectVendor(name string) {
	v.selected = name
	v.page = 1
	v.load()
}

// Selected returns the selected vendor name.
func (v *View) Selected() string {
	return v.selected
}

// PageSize returns the rows per page.
func (v *View) PageSize() int {
	return v.size
}

// HasData reports whether the selected vendor has a record.
func (v *View) HasData() bool {
	return v.found
}

// NextPage advances one page; a no-op on the last page.
func (v *View) NextPage() {
	v.page = ClampPage(v.page+1, v.rows, v.size)
}

// PreviousPage goes back one page; a no-op on page 1.
func (v *View) PreviousPage() {
	v.page = ClampPage(v.page-1, v.rows, v.size)
}

// Refresh re-reads the selected vendor. A change in row count, or the vendor
// appearing or disappearing, resets to page 1. It reports whether the page
// was reset.
func (v *View) Refresh() bool {
	return v.RefreshFrom(v.source)
}

// RefreshFrom is Refresh reading from src instead of the view's own source,
// so a caller holding one cache state renders the table from that state.
func (v *View) RefreshFrom(src Source) bool {
	wasFound, prevRows := v.found, v.rows
	v.loadFrom(src)
	if v.found != wasFound || v.rows != prevRows {
		v.page = 1
		return true
	}
	return false
}

// Current returns the visible page.
func (v *View) Current() PageResult {
	return Page(v.rec, v.page, v.size)
}

// VisibleRows returns the rows of the current page.
func (v *View) VisibleRows() []RowView {
	return v.Current().Rows
}

func (v *View) load() {
	v.loadFrom(v.source)
}

func (v *View) loadFrom(src Source) {
	v.rec, v.found = ratecsv.ColumnRecord{}, false
	if src != nil && v.selected != "" {
		v.rec, v.found = src.Lookup(v.selected)
	}
	v.rows = RowCount(v.rec)
}
