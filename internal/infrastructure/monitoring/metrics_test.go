package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolated(t *testing.T) {
	// Two collectors must not clash on registration.
	a := NewMetrics()
	b := NewMetrics()

	a.RecordPublished("arm/get/joint_states")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.MessagesPublished.WithLabelValues("arm/get/joint_states")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MessagesPublished.WithLabelValues("arm/get/joint_states")))
}

func TestRecorders(t *testing.T) {
	m := NewMetrics()

	m.RecordReceived("t")
	m.RecordReceived("t")
	m.RecordMalformed("t")
	m.RecordPublishFailure("t")
	m.SetReady("consumer", "arm/", true)
	m.IncWSConnections()
	m.AddBusSubscriptions(2)
	m.SetBreakerState("bus", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesReceived.WithLabelValues("t")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MalformedPayloads.WithLabelValues("t")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues("t")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ready.WithLabelValues("consumer", "arm/")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSConnections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BusSubscriptions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("bus")))

	m.SetReady("consumer", "arm/", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Ready.WithLabelValues("consumer", "arm/")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPublished("t")
		m.RecordReceived("t")
		m.RecordMalformed("t")
		m.RecordPublishFailure("t")
		m.SetReady("provider", "", true)
		m.RecordHTTPRequest("GET", "/", "200", 0)
		m.IncWSConnections()
		m.DecWSConnections()
		m.AddBusSubscriptions(1)
		m.SetBreakerState("bus", 0)
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/v1/robot/:field", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/robot/state", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/v1/robot/:field", "418")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "robotdriver_uptime_seconds")
	assert.Contains(t, rec.Body.String(), "robotdriver_http_requests_total")
}
