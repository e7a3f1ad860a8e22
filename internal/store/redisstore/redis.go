// Package redisstore keeps vendor rate documents in a Redis hash and uses
// pub/sub for change notification.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/redis/go-redis/v9"
)

const (
	// HashKey holds one field per vendor; the value is the JSON record.
	HashKey = "vendor_rates"

	// Channel receives the vendor id after every write.
	Channel = "vendor_rates:changed"
)

// Store is a rates.Store backed by go-redis.
type Store struct {
	client         *redis.Client
	logger         *slog.Logger
	reconnectDelay time.Duration
	load           func(ctx context.Context) ([]rates.Document, error)
}

// subscription is the part of *redis.PubSub the watcher uses.
type subscription interface {
	ReceiveMessage(ctx context.Context) (*redis.Message, error)
	Close() error
}

// New wraps a connected client.
func New(client *redis.Client, logger *slog.Logger, reconnectDelay time.Duration) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 2 * time.Second
	}
	s := &Store{client: client, logger: logger, reconnectDelay: reconnectDelay}
	s.load = s.snapshot
	return s
}

// Put writes the document and publishes its id in one MULTI/EXEC block.
func (s *Store) Put(ctx context.Context, doc rates.Document) error {
	body, err := json.Marshal(doc.Record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Name, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, HashKey, doc.Name, body)
	pipe.Publish(ctx, Channel, doc.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put %s: %w", doc.Name, err)
	}
	return nil
}

// Watch subscribes before reading the first snapshot so no write made in
// between is missed.
func (s *Store) Watch(ctx context.Context) (<-chan rates.Event, error) {
	sub := s.client.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	out := make(chan rates.Event)
	go s.watchLoop(ctx, sub, out)
	return out, nil
}

func (s *Store) watchLoop(ctx context.Context, sub subscription, out chan<- rates.Event) {
	defer close(out)
	defer sub.Close()

	for {
		if !s.emitSnapshot(ctx, out) {
			return
		}

		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("vendor rates subscription interrupted", "error", err)
			if !send(ctx, out, rates.Event{Err: fmt.Errorf("receive %s: %w", Channel, err)}) {
				return
			}
			// Messages may have been lost while disconnected.
			if !sleep(ctx, s.reconnectDelay) {
				return
			}
			continue
		}
		s.logger.Debug("vendor rates changed", "vendor", msg.Payload)
	}
}

// emitSnapshot sends the current collection, retrying failed reads every
// reconnectDelay. It returns false once ctx is done.
func (s *Store) emitSnapshot(ctx context.Context, out chan<- rates.Event) bool {
	for {
		snapshot, err := s.load(ctx)
		if ctx.Err() != nil {
			return false
		}
		if err == nil {
			return send(ctx, out, rates.Event{Snapshot: snapshot})
		}
		s.logger.Warn("vendor rates snapshot failed", "error", err)
		if !send(ctx, out, rates.Event{Err: err}) {
			return false
		}
		if !sleep(ctx, s.reconnectDelay) {
			return false
		}
	}
}

func (s *Store) snapshot(ctx context.Context) ([]rates.Document, error) {
	fields, err := s.client.HGetAll(ctx, HashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load vendor rates: %w", err)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	snapshot := make([]rates.Document, 0, len(names))
	for _, name := range names {
		doc := rates.Document{Name: name}
		if err := json.Unmarshal([]byte(fields[name]), &doc.Record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		snapshot = append(snapshot, doc)
	}
	return snapshot, nil
}

// Ping implements rates.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements rates.Store.
func (s *Store) Close() error {
	return s.client.Close()
}

func send(ctx context.Context, out chan<- rates.Event, ev rates.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
