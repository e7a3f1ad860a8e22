// Package app holds the per-operator application state: which vendor is
// selected, which page is shown and the pending upload.
package app

import (
	"context"
	"slices"
	"sync"

	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/JonMunkholm/vendorrates/internal/table"
	"github.com/JonMunkholm/vendorrates/internal/upload"
)

// Catalog is the read side of the vendor cache.
type Catalog interface {
	table.Source
	Snapshot() *rates.State
}

// Screen is everything needed to render one operator's page.
type Screen struct {
	Vendors  []string
	Selected string
	HasData  bool
	Page     table.PageResult
	Draft    upload.DraftState
}

// State is one operator's view. The view is guarded by mu; the draft has its
// own lock so a running submit never blocks paging or vendor selection.
type State struct {
	id        string
	catalog   Catalog
	submitter *upload.Submitter

	mu   sync.Mutex
	view *table.View

	draft *upload.Draft
}

func newState(id string, catalog Catalog, submitter *upload.Submitter, pageSize int, initialVendor string) *State {
	st := &State{
		id:        id,
		catalog:   catalog,
		submitter: submitter,
		view:      table.NewView(catalog, pageSize),
		draft:     upload.NewDraft(),
	}
	st.view.SelectVendor(initialVendor)
	return st
}

// ID returns the session id.
func (s *State) ID() string {
	return s.id
}

// Screen refreshes the view from the cache and returns a render snapshot.
// Tabs and table come from the same cache state.
func (s *State) Screen() Screen {
	snap := s.catalog.Snapshot()

	s.mu.Lock()
	s.view.RefreshFrom(snap)
	scr := Screen{
		Vendors:  slices.Clone(snap.Names),
		Selected: s.view.Selected(),
		HasData:  s.view.HasData(),
		Page:     s.view.Current(),
	}
	s.mu.Unlock()

	scr.Draft = s.draft.State()
	return scr
}

// SelectVendor shows name from page 1.
func (s *State) SelectVendor(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SelectVendor(name)
}

// NextPage advances the table, stopping at the last page.
func (s *State) NextPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Refresh()
	s.view.NextPage()
}

// PreviousPage goes back, stopping at page 1.
func (s *State) PreviousPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Refresh()
	s.view.PreviousPage()
}

// Draft returns a copy of the upload draft.
func (s *State) Draft() upload.DraftState {
	return s.draft.State()
}

// OpenUpload shows the upload dialog.
func (s *State) OpenUpload() {
	s.draft.Open()
}

// CloseUpload hides the upload dialog.
func (s *State) CloseUpload() {
	s.draft.Close()
}

// AttachFile stores a parsed file in the draft.
func (s *State) AttachFile(name string, rec ratecsv.ColumnRecord) error {
	return s.draft.Attach(name, rec)
}

// RejectFile records a file that could not be read.
func (s *State) RejectFile(err error) {
	s.draft.Reject(err)
}

// Submit writes the draft to the store. It runs without holding the view
// lock.
func (s *State) Submit(ctx context.Context, vendorInput string) upload.Result {
	return s.submitter.Submit(ctx, s.draft, vendorInput)
}

// DefaultVendor is the vendor selected for new sessions.
func (s *State) DefaultVendor() string {
	if s.submitter == nil {
		return rates.DefaultName
	}
	return s.submitter.DefaultVendor()
}
