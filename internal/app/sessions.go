package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/metrics"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/JonMunkholm/vendorrates/internal/table"
	"github.com/JonMunkholm/vendorrates/internal/upload"
	"github.com/google/uuid"
)

// DefaultIdleTimeout expires sessions nobody has touched for this long.
const DefaultIdleTimeout = 2 * time.Hour

// Options configures a Sessions registry.
type Options struct {
	PageSize      int
	InitialVendor string
	IdleTimeout   time.Duration
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

type session struct {
	state    *State
	lastSeen time.Time
}

// Sessions tracks operator states by id.
type Sessions struct {
	catalog   Catalog
	submitter *upload.Submitter
	opts      Options
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions returns an empty registry.
func NewSessions(catalog Catalog, submitter *upload.Submitter, opts Options) *Sessions {
	if opts.PageSize <= 0 {
		opts.PageSize = table.DefaultPageSize
	}
	if opts.InitialVendor == "" {
		opts.InitialVendor = rates.DefaultName
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sessions{
		catalog:   catalog,
		submitter: submitter,
		opts:      opts,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// Create starts a new session showing the initial vendor.
func (r *Sessions) Create() *State {
	id := uuid.NewString()
	st := newState(id, r.catalog, r.submitter, r.opts.PageSize, r.opts.InitialVendor)

	r.mu.Lock()
	r.sessions[id] = &session{state: st, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()

	r.opts.Metrics.SetSessions(n)
	r.opts.Logger.Debug("session created", "session_id", id)
	return st
}

// Get returns the session and marks it as used.
func (r *Sessions) Get(id string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.now()
	return s.state, true
}

// GetOrCreate returns the session for id, or a new one when id is unknown.
// created reports which happened.
func (r *Sessions) GetOrCreate(id string) (st *State, created bool) {
	if id != "" {
		if st, ok := r.Get(id); ok {
			return st, false
		}
	}
	return r.Create(), true
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle longer than the idle timeout. Sessions with an
// upload in flight are kept.
func (r *Sessions) Sweep() int {
	cutoff := r.now().Add(-r.opts.IdleTimeout)

	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) && !s.state.Draft().InFlight() {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if removed > 0 {
		r.opts.Metrics.SetSessions(n)
		r.opts.Logger.Debug("idle sessions expired", "removed", removed, "remaining", n)
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (r *Sessions) Run(ctx context.Context) error {
	interval := r.opts.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}
