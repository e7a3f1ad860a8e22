package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/metrics"
	"github.com/JonMunkholm/vendorrates/internal/ratecsv"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/JonMunkholm/vendorrates/internal/store/memory"
	"github.com/JonMunkholm/vendorrates/internal/upload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sheet(n int) ratecsv.ColumnRecord {
	var b strings.Builder
	b.WriteString("COUNTRY/ZONE,Zone1\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Z%02d,%d\n", i, i)
	}
	return ratecsv.Parse(b.String())
}

type fixture struct {
	store    *memory.Store
	cache    *rates.Cache
	sessions *Sessions
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	store := memory.New()
	cache := rates.NewCache(nil, m)
	sub := upload.NewSubmitter(store, upload.NewLimiter(1, time.Second), m, upload.SubmitterConfig{})
	return &fixture{
		store:    store,
		cache:    cache,
		metrics:  m,
		sessions: NewSessions(cache, sub, Options{IdleTimeout: time.Minute, Metrics: m}),
	}
}

// splitCatalog answers Lookup from a newer state than Snapshot, as happens
// when the cache swaps states in the middle of a render.
type splitCatalog struct {
	pinned *rates.State
	newer  *rates.State
}

func (c splitCatalog) Snapshot() *rates.State { return c.pinned }

func (c splitCatalog) Lookup(name string) (ratecsv.ColumnRecord, bool) {
	return c.newer.Lookup(name)
}

func TestState_ScreenUsesOneCacheState(t *testing.T) {
	pinned := &rates.State{
		Names: []string{"DHL"},
		Docs:  map[string]rates.Document{"DHL": {Name: "DHL", Record: sheet(3)}},
	}
	newer := &rates.State{
		Names: []string{"DHL", "UPS"},
		Docs: map[string]rates.Document{
			"DHL": {Name: "DHL", Record: sheet(10)},
			"UPS": {Name: "UPS", Record: sheet(1)},
		},
	}
	sessions := NewSessions(splitCatalog{pinned: pinned, newer: newer}, nil, Options{IdleTimeout: time.Minute})
	st := sessions.Create()

	scr := st.Screen()
	assert.Equal(t, []string{"DHL"}, scr.Vendors)
	require.True(t, scr.HasData)
	assert.Equal(t, 3, scr.Page.TotalRows)
}

func TestState_InitialVendorIsDefault(t *testing.T) {
	f := newFixture(t)
	st := f.sessions.Create()

	scr := st.Screen()
	assert.Equal(t, rates.DefaultName, scr.Selected)
	assert.False(t, scr.HasData)
	assert.Empty(t, scr.Vendors)
}

func TestState_ScreenFollowsCache(t *testing.T) {
	f := newFixture(t)
	st := f.sessions.Create()

	f.cache.Apply([]rates.Document{{Name: "DHL", Record: sheet(20)}, {Name: "UPS", Record: sheet(3)}})
	scr := st.Screen()
	require.True(t, scr.HasData)
	assert.Equal(t, []string{"DHL", "UPS"}, scr.Vendors)
	assert.Equal(t, 3, scr.Page.TotalPages)

	st.NextPage()
	st.NextPage()
	assert.Equal(t, 3, st.Screen().Page.Page)

	// Row count changes while the operator is on page 3.
	f.cache.Apply([]rates.Document{{Name: "DHL", Record: sheet(9)}})
	scr = st.Screen()
	assert.Equal(t, 1, scr.Page.Page)
	assert.Equal(t, []string{"DHL"}, scr.Vendors)

	st.SelectVendor("UPS")
	assert.False(t, st.Screen().HasData, "UPS vanished from the last snapshot")
}

func TestState_SubmitEndToEnd(t *testing.T) {
	f := newFixture(t)
	unsubscribe, err := f.cache.Subscribe(context.Background(), f.store, nil)
	require.NoError(t, err)
	defer unsubscribe()

	st := f.sessions.Create()
	st.OpenUpload()
	require.NoError(t, st.AttachFile("fedex.csv", ratecsv.Parse("COUNTRY/ZONE,Zone1\nUS,10\nCA,\n")))

	res := st.Submit(context.Background(), "fedex")
	require.NoError(t, res.Err)
	assert.False(t, st.Draft().DialogOpen)

	st.SelectVendor("FEDEX")
	require.Eventually(t, func() bool { return st.Screen().HasData }, 2*time.Second, 10*time.Millisecond)

	rows := st.Screen().Page.Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "CA", rows[1].Zone)
	assert.Equal(t, "-", rows[1].Cells[0].Value)
}

func TestState_PagingNotBlockedBySubmit(t *testing.T) {
	f := newFixture(t)
	f.cache.Apply([]rates.Document{{Name: "DHL", Record: sheet(20)}})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.store.SetPutHook(func(context.Context, rates.Document) error {
		close(entered)
		<-release
		return nil
	})

	st := f.sessions.Create()
	require.NoError(t, st.AttachFile("ups.csv", sheet(2)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		st.Submit(context.Background(), "UPS")
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		st.NextPage()
		st.SelectVendor("DHL")
		st.Screen()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("view operations blocked while submit in flight")
	}
	assert.True(t, st.Draft().InFlight())

	close(release)
	wg.Wait()
	assert.Equal(t, upload.StatusSucceeded, st.Draft().Status)
}

func TestSessions_GetOrCreate(t *testing.T) {
	f := newFixture(t)

	a, created := f.sessions.GetOrCreate("")
	require.True(t, created)

	b, created := f.sessions.GetOrCreate(a.ID())
	assert.False(t, created)
	assert.Same(t, a, b)

	_, created = f.sessions.GetOrCreate("unknown")
	assert.True(t, created)
	assert.Equal(t, 2, f.sessions.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ActiveSessions))
}

func TestSessions_SweepExpiresIdle(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.sessions.now = func() time.Time { return now }

	idle := f.sessions.Create()
	active := f.sessions.Create()

	now = now.Add(45 * time.Second)
	_, ok := f.sessions.Get(active.ID())
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, f.sessions.Sweep())

	_, ok = f.sessions.Get(idle.ID())
	assert.False(t, ok)
	_, ok = f.sessions.Get(active.ID())
	assert.True(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveSessions))
}

func TestSessions_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sessions.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
