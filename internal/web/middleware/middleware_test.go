package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/vendorrates/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRemote() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.RemoteAddr))
	})
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"no proxies ignores headers", nil, "203.0.113.5:4411", map[string]string{"X-Real-IP": "10.9.9.9"}, "203.0.113.5"},
		{"trusted cidr uses X-Real-IP", []string{"10.0.0.0/8"}, "10.1.2.3:80", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"trusted address uses first forwarded", []string{"10.1.2.3"}, "10.1.2.3:80", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.1.2.3"}, "198.51.100.7"},
		{"untrusted peer", []string{"10.0.0.0/8"}, "192.0.2.1:80", map[string]string{"X-Real-IP": "198.51.100.7"}, "192.0.2.1"},
		{"bad header keeps peer", []string{"10.0.0.0/8"}, "10.1.2.3:80", map[string]string{"X-Real-IP": "nope"}, "10.1.2.3"},
		{"invalid entry skipped", []string{"garbage", "10.0.0.0/8"}, "10.1.2.3:80", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			TrustedRealIP(tt.trusted)(echoRemote()).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per client")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("a"), "one token refills every 30s")
}

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewRateLimiter(1)
	h := rl.Handler(echoRemote())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(visitorTTL - time.Minute)
	rl.Allow("recent")
	now = now.Add(2 * time.Minute)

	rl.Sweep()
	assert.Equal(t, 1, rl.Len())
}

func TestLogger_CountsRequests(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := Logger(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "418")))
}

func TestLogger_Flushes(t *testing.T) {
	h := Logger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
		require.NoError(t, http.NewResponseController(w).Flush())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, rec.Flushed)
}
