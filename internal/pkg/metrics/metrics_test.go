package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)

	m.OrderCreated(10 * time.Millisecond)
	m.OrderCreated(20 * time.Millisecond)
	m.OrderRejected("insufficient_stock", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Created))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Rejected.WithLabelValues("persistence")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Duration))
}

func TestServerMetricsAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg)
	m.Observe("/orders", http.StatusCreated, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders", "201")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{route="/orders",status="201"} 1`)
}

func TestRegisterTwicePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewOrderMetrics(reg)
	assert.Panics(t, func() { NewOrderMetrics(reg) })
}
