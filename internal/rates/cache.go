package rates

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/metrics"
	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
)

// State is one immutable view of the store. It is never modified after it
// has been published by the cache.
type State struct {
	Names     []string            // vendor names in snapshot order
	Docs      map[string]Document // vendor name -> document
	Version   uint64              // incremented on every applied snapshot
	UpdatedAt time.Time
}

// Lookup returns the record for name.
func (s *State) Lookup(name string) (ratecsv.ColumnRecord, bool) {
	if s == nil {
		return ratecsv.ColumnRecord{}, false
	}
	doc, ok := s.Docs[name]
	if !ok {
		return ratecsv.ColumnRecord{}, false
	}
	return doc.Record, true
}

// Cache mirrors a Store in memory.
type Cache struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	state atomic.Pointer[State]

	mu        sync.Mutex // serializes apply and guards listeners
	listeners map[chan uint64]struct{}
}

// NewCache returns an empty cache. m may be nil.
func NewCache(logger *slog.Logger, m *metrics.Metrics) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		logger:    logger,
		metrics:   m,
		listeners: make(map[chan uint64]struct{}),
	}
	c.state.Store(&State{Docs: map[string]Document{}})
	return c
}

// Snapshot returns the current state. Callers must not modify it.
func (c *Cache) Snapshot() *State {
	return c.state.Load()
}

// Lookup returns the record currently cached for name.
func (c *Cache) Lookup(name string) (ratecsv.ColumnRecord, bool) {
	return c.Snapshot().Lookup(name)
}

// Names returns the known vendor names in arrival order.
func (c *Cache) Names() []string {
	return slices.Clone(c.Snapshot().Names)
}

// Subscribe starts consuming store.Watch. Every snapshot replaces the cached
// state and then calls onChange (which may be nil) from the consumer
// goroutine. Error events are logged and the cached state is kept.
//
// The returned function cancels the subscription and blocks until the
// consumer has exited; once it returns no further onChange call happens. It
// is safe to call more than once, but not from inside onChange.
func (c *Cache) Subscribe(ctx context.Context, store Store, onChange func(*State)) (func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)

	events, err := store.Watch(watchCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch vendor rates: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-watchCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if watchCtx.Err() != nil {
					return
				}
				if ev.Err != nil {
					c.metrics.SubscriptionError()
					c.logger.Error("vendor rates subscription error, keeping last snapshot",
						"error", ev.Err,
						"version", c.Snapshot().Version,
					)
					continue
				}
				st := c.Apply(ev.Snapshot)
				if onChange != nil {
					onChange(st)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// Apply rebuilds the state from a full snapshot and publishes it. A name that
// appears twice keeps its first position and its last document.
func (c *Cache) Apply(snapshot []Document) *State {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state.Load()
	next := &State{
		Names:     make([]string, 0, len(snapshot)),
		Docs:      make(map[string]Document, len(snapshot)),
		Version:   prev.Version + 1,
		UpdatedAt: time.Now(),
	}
	for _, doc := range snapshot {
		if _, seen := next.Docs[doc.Name]; !seen {
			next.Names = append(next.Names, doc.Name)
		}
		next.Docs[doc.Name] = Document{Name: doc.Name, Record: doc.Record.Clone()}
	}
	c.state.Store(next)

	c.metrics.SnapshotApplied(len(next.Names))
	c.logger.Debug("vendor rates snapshot applied",
		"vendors", len(next.Names),
		"version", next.Version,
	)

	for ch := range c.listeners {
		offerLatest(ch, next.Version)
	}
	return next
}

// Changes returns a channel that receives the cache version after every
// applied snapshot. Slow readers only see the latest version. The release
// function closes the channel and is safe to call more than once.
func (c *Cache) Changes() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	c.mu.Lock()
	c.listeners[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// offerLatest sends v without blocking, replacing an unread older value.
func offerLatest(ch chan uint64, v uint64) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
