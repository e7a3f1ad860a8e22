// Package memory is an in-process rates.Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JonMunkholm/vendorrates/internal/rates"
)

// PutHook runs before a Put is applied. A non-nil error aborts the Put.
type PutHook func(ctx context.Context, doc rates.Document) error

// Store keeps documents in a map and notifies watchers after every change.
type Store struct {
	mu       sync.Mutex
	docs     map[string]rates.Document
	watchers map[*watcher]struct{}
	hook     PutHook
	done     chan struct{}
	closed   bool
}

// watcher coalesces notifications so a slow reader only sees the latest
// snapshot, while injected errors are delivered one by one.
type watcher struct {
	wake  chan struct{}
	dirty bool
	errs  []error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		docs:     make(map[string]rates.Document),
		watchers: make(map[*watcher]struct{}),
		done:     make(chan struct{}),
	}
}

// SetPutHook installs h; nil removes it.
func (s *Store) SetPutHook(h PutHook) {
	s.mu.Lock()
	s.hook = h
	s.mu.Unlock()
}

// Put replaces the document named doc.Name.
func (s *Store) Put(ctx context.Context, doc rates.Document) error {
	s.mu.Lock()
	hook := s.hook
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return rates.ErrClosed
	}
	if hook != nil {
		if err := hook(ctx, doc); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return rates.ErrClosed
	}
	s.docs[doc.Name] = rates.Document{Name: doc.Name, Record: doc.Record.Clone()}
	for w := range s.watchers {
		w.dirty = true
		signal(w.wake)
	}
	return nil
}

// InjectError delivers err to every active watcher, as a transient
// connectivity failure would.
func (s *Store) InjectError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.watchers {
		w.errs = append(w.errs, err)
		signal(w.wake)
	}
}

// Get returns the stored document.
func (s *Store) Get(name string) (rates.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[name]
	return doc, ok
}

// Watch implements rates.Store.
func (s *Store) Watch(ctx context.Context) (<-chan rates.Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, rates.ErrClosed
	}
	w := &watcher{wake: make(chan struct{}, 1), dirty: true}
	s.watchers[w] = struct{}{}
	signal(w.wake)
	s.mu.Unlock()

	out := make(chan rates.Event)
	go s.run(ctx, w, out)
	return out, nil
}

func (s *Store) run(ctx context.Context, w *watcher, out chan<- rates.Event) {
	defer func() {
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
		close(out)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-w.wake:
		}

		s.mu.Lock()
		errs := w.errs
		w.errs = nil
		var snapshot []rates.Document
		if w.dirty {
			snapshot = s.snapshotLocked()
			w.dirty = false
		}
		s.mu.Unlock()

		for _, err := range errs {
			if !send(ctx, s.done, out, rates.Event{Err: err}) {
				return
			}
		}
		if snapshot != nil {
			if !send(ctx, s.done, out, rates.Event{Snapshot: snapshot}) {
				return
			}
		}
	}
}

func (s *Store) snapshotLocked() []rates.Document {
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	sort.Strings(names)

	snapshot := make([]rates.Document, 0, len(names))
	for _, name := range names {
		d := s.docs[name]
		snapshot = append(snapshot, rates.Document{Name: d.Name, Record: d.Record.Clone()})
	}
	return snapshot
}

// Ping implements rates.Store.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return rates.ErrClosed
	}
	return nil
}

// Close stops all watchers. Further calls are no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func send(ctx context.Context, done <-chan struct{}, out chan<- rates.Event, ev rates.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-done:
		return false
	}
}
