package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveOutcome(t *testing.T) {
	t.Parallel()

	m := NewWith(prometheus.NewRegistry(), prometheus.NewRegistry())

	m.ObserveOutcome("login", "ok")
	m.ObserveOutcome("login", "ok")
	m.ObserveOutcome("refresh", "unauthenticated")

	require.InDelta(t, 2, testutil.ToFloat64(m.outcomes.WithLabelValues("login", "ok")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.outcomes.WithLabelValues("refresh", "unauthenticated")), 0)
}

func TestInFlightAndJanitor(t *testing.T) {
	t.Parallel()

	m := NewWith(prometheus.NewRegistry(), prometheus.NewRegistry())

	done := m.InFlight()
	require.InDelta(t, 1, testutil.ToFloat64(m.inflight), 0)
	done()
	require.InDelta(t, 0, testutil.ToFloat64(m.inflight), 0)

	m.ExpiredTokensDeleted(0)
	m.ExpiredTokensDeleted(3)
	require.InDelta(t, 3, testutil.ToFloat64(m.janitor), 0)
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveOutcome("register", "ok")
	m.ObserveRequest(http.MethodPost, "/api/auth/register", http.StatusCreated, 12*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, `auth_operations_total{operation="register",outcome="ok"} 1`)
	require.Contains(t, body, "auth_http_request_duration_seconds_bucket")
	require.Contains(t, body, "go_goroutines")
}
