package redisstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscription struct {
	msgs   chan *redis.Message
	errs   chan error
	closed atomic.Bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{msgs: make(chan *redis.Message, 1), errs: make(chan error, 1)}
}

func (f *fakeSubscription) ReceiveMessage(ctx context.Context) (*redis.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case err := <-f.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSubscription) Close() error {
	f.closed.Store(true)
	return nil
}

// scriptedLoader fails the first failures calls and then returns docs.
func scriptedLoader(failures int32, docs []rates.Document) (func(context.Context) ([]rates.Document, error), *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context) ([]rates.Document, error) {
		if calls.Add(1) <= failures {
			return nil, errors.New("connection refused")
		}
		return docs, nil
	}, &calls
}

func newWatchStore(load func(context.Context) ([]rates.Document, error)) *Store {
	return &Store{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		reconnectDelay: 10 * time.Millisecond,
		load:           load,
	}
}

func TestWatchLoop_RetriesFailedSnapshot(t *testing.T) {
	docs := []rates.Document{{Name: "DHL", Record: ratecsv.Parse("COUNTRY/ZONE,Zone1\nDE,7\n")}}
	load, calls := scriptedLoader(2, docs)
	s := newWatchStore(load)
	sub := newFakeSubscription()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan rates.Event)
	go s.watchLoop(ctx, sub, out)

	// No message is ever published; the reads are retried on their own.
	assert.Error(t, nextEvent(t, out).Err)
	assert.Error(t, nextEvent(t, out).Err)
	ev := nextEvent(t, out)
	require.NoError(t, ev.Err)
	require.Len(t, ev.Snapshot, 1)
	assert.Equal(t, "DHL", ev.Snapshot[0].Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWatchLoop_ReloadsOnMessage(t *testing.T) {
	load, calls := scriptedLoader(0, nil)
	s := newWatchStore(load)
	sub := newFakeSubscription()

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan rates.Event)
	go s.watchLoop(ctx, sub, out)

	require.NoError(t, nextEvent(t, out).Err)
	sub.msgs <- &redis.Message{Channel: Channel, Payload: "UPS"}
	require.NoError(t, nextEvent(t, out).Err)
	assert.Equal(t, int32(2), calls.Load())

	cancel()
	for range out {
	}
	assert.True(t, sub.closed.Load(), "subscription closed on exit")
}

func TestWatchLoop_ReloadsAfterReceiveError(t *testing.T) {
	load, calls := scriptedLoader(0, nil)
	s := newWatchStore(load)
	sub := newFakeSubscription()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan rates.Event)
	go s.watchLoop(ctx, sub, out)

	require.NoError(t, nextEvent(t, out).Err)
	sub.errs <- errors.New("i/o timeout")
	assert.ErrorContains(t, nextEvent(t, out).Err, "i/o timeout")
	require.NoError(t, nextEvent(t, out).Err)
	assert.Equal(t, int32(2), calls.Load())
}
