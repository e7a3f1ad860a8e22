package web

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/logging"
	"github.com/JonMunkholm/vendorrates/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// handleVendors renders the full page.
func (s *Server) handleVendors(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Page(st.Screen(), st.DefaultVendor()).Render(r.Context(), w)
}

// handleLive renders the tabs and table, the target of live refreshes.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.renderLive(w, r)
}

func (s *Server) handleSelectVendor(w http.ResponseWriter, r *http.Request) {
	name, err := vendorParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	stateFrom(r).SelectVendor(name)
	s.renderLive(w, r)
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	stateFrom(r).NextPage()
	s.renderLive(w, r)
}

func (s *Server) handlePreviousPage(w http.ResponseWriter, r *http.Request) {
	stateFrom(r).PreviousPage()
	s.renderLive(w, r)
}

// renderLive answers htmx with the live region and sends plain form posts
// back to the page.
func (s *Server) renderLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && !isHTMX(r) {
		http.Redirect(w, r, "/vendors", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Live(stateFrom(r).Screen()).Render(r.Context(), w)
}

// handleEvents streams a "snapshot" event carrying the cache version every
// time a new snapshot is applied. Idle streams get a comment line every
// ping interval so proxies keep the connection open.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	changes, release := s.cache.Changes()
	defer release()

	log := logging.FromContext(r.Context())
	send := func(format string, args ...any) bool {
		if _, err := fmt.Fprintf(w, format, args...); err != nil {
			return false
		}
		if err := rc.Flush(); err != nil {
			log.Debug("event stream flush failed", "error", err)
			return false
		}
		return true
	}

	if !send("event: snapshot\ndata: %d\n\n", s.cache.Snapshot().Version) {
		return
	}

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case v, ok := <-changes:
			if !ok {
				return
			}
			if !send("event: snapshot\ndata: %d\n\n", v) {
				return
			}
		case <-ticker.C:
			if !send(": ping\n\n") {
				return
			}
		}
	}
}

// vendorParam returns the decoded {vendor} route parameter. chi matches on
// r.URL.RawPath when it is set, so only then is the value still escaped.
func vendorParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "vendor")
	if r.URL.RawPath == "" {
		return name, nil
	}
	name, err := url.PathUnescape(name)
	if err != nil {
		return "", fmt.Errorf("invalid vendor name: %w", err)
	}
	return name, nil
}
