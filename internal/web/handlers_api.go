package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/JonMunkholm/vendorrates/internal/table"
	"github.com/JonMunkholm/vendorrates/internal/upload"
)

// VendorList is the body of GET /api/vendors.
type VendorList struct {
	Vendors   []string  `json:"vendors"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VendorPage is the body of GET /api/vendors/{vendor}.
type VendorPage struct {
	Vendor     string    `json:"vendor"`
	Columns    []string  `json:"columns"`
	Rows       []PageRow `json:"rows"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalRows  int       `json:"total_rows"`
	TotalPages int       `json:"total_pages"`
	Version    uint64    `json:"version"`
}

// PageRow is one table row; empty rates are rendered as the placeholder.
type PageRow struct {
	Index int      `json:"index"`
	Zone  string   `json:"zone"`
	Rates []string `json:"rates"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string               `json:"status"`
	Store   string               `json:"store"`
	Version uint64               `json:"version"`
	Uploads upload.LimiterStatus `json:"uploads"`
}

func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	snap := s.cache.Snapshot()
	names := snap.Names
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, VendorList{
		Vendors:   names,
		Version:   snap.Version,
		UpdatedAt: snap.UpdatedAt,
	})
}

// handleVendorPage returns one page of a vendor's table. The vendor name is
// resolved the way uploads resolve it, so "dhl" finds "DHL".
func (s *Server) handleVendorPage(w http.ResponseWriter, r *http.Request) {
	snap, name, rec, ok := s.lookupVendor(w, r)
	if !ok {
		return
	}

	page := parseIntParam(r, "page", 1)
	result := table.Page(rec, page, s.cfg.View.PageSize)

	rows := make([]PageRow, len(result.Rows))
	for i, row := range result.Rows {
		values := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			values[j] = c.Value
		}
		rows[i] = PageRow{Index: row.Index, Zone: row.Zone, Rates: values}
	}

	s.writeJSON(w, http.StatusOK, VendorPage{
		Vendor:     name,
		Columns:    result.Columns,
		Rows:       rows,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalRows:  result.TotalRows,
		TotalPages: result.TotalPages,
		Version:    snap.Version,
	})
}

// handleVendorCSV returns a vendor's table as rate-sheet text.
func (s *Server) handleVendorCSV(w http.ResponseWriter, r *http.Request) {
	_, _, rec, ok := s.lookupVendor(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Write([]byte(ratecsv.Format(rec)))
}

// lookupVendor resolves the {vendor} parameter against one cache snapshot.
// It writes the error response itself when ok is false.
func (s *Server) lookupVendor(w http.ResponseWriter, r *http.Request) (*rates.State, string, ratecsv.ColumnRecord, bool) {
	raw, err := vendorParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return nil, "", ratecsv.ColumnRecord{}, false
	}
	name := rates.ResolveKey(raw, "")
	if err := rates.ValidateKey(name); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return nil, "", ratecsv.ColumnRecord{}, false
	}

	snap := s.cache.Snapshot()
	rec, found := snap.Lookup(name)
	if !found {
		s.respondError(w, r, fmt.Errorf("%w: %q", rates.ErrNotFound, name), http.StatusNotFound)
		return nil, "", ratecsv.ColumnRecord{}, false
	}
	return snap, name, rec, true
}

// handleHealth pings the store. Load balancers get 503 while it is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Store:   "ok",
		Version: s.cache.Snapshot().Version,
	}
	if s.limiter != nil {
		resp.Uploads = s.limiter.Status()
	}

	status := http.StatusOK
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			resp.Status = "unavailable"
			resp.Store = upload.MapError(err).Code
			status = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, status, resp)
}

// parseIntParam extracts an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
