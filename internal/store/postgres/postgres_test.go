package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable database:
//
//	VENDORRATES_TEST_DATABASE_URL=postgres://localhost/vendorrates_test go test ./internal/store/postgres
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("VENDORRATES_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("VENDORRATES_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)

	s := New(pool, slog.New(slog.NewTextHandler(io.Discard, nil)), 100*time.Millisecond)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	_, err = pool.Exec(ctx, "TRUNCATE vendor_rates")
	require.NoError(t, err)
	return s
}

func nextEvent(t *testing.T, ch <-chan rates.Event) rates.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event from listener")
		return rates.Event{}
	}
}

func TestStore_PutAndWatch(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Watch(ctx)
	require.NoError(t, err)

	initial := nextEvent(t, events)
	require.NoError(t, initial.Err)
	assert.Empty(t, initial.Snapshot)

	rec := ratecsv.Parse("COUNTRY/ZONE,Zone9,Zone1\nUS,1,2\nCA,,3\n")
	require.NoError(t, s.Put(ctx, rates.Document{Name: "DHL", Record: rec}))

	ev := nextEvent(t, events)
	require.NoError(t, ev.Err)
	require.Len(t, ev.Snapshot, 1)
	assert.Equal(t, "DHL", ev.Snapshot[0].Name)
	assert.True(t, rec.Equal(ev.Snapshot[0].Record), "column order and values survive storage")

	replacement := ratecsv.Parse("COUNTRY/ZONE,Express\nMX,9\n")
	require.NoError(t, s.Put(ctx, rates.Document{Name: "DHL", Record: replacement}))

	ev = nextEvent(t, events)
	require.Len(t, ev.Snapshot, 1)
	assert.True(t, replacement.Equal(ev.Snapshot[0].Record), "put is a full replace")
}

func TestStore_WatchClosesOnCancel(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := s.Watch(ctx)
	require.NoError(t, err)
	nextEvent(t, events)

	cancel()
	for range events {
	}
}
