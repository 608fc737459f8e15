package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadflow/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(config.MetricsConfig{Namespace: "test"})

	m.Admission("quiz_submit", "accepted")
	m.Admission("quiz_submit", "accepted")
	m.AsyncTask("start_workflow", errors.New("boom"))
	m.Purged("leads", 3)
	m.Purged("leads", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.admissionCnt.WithLabelValues("quiz_submit", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchCnt.WithLabelValues("start_workflow", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.purgedRowsCnt.WithLabelValues("leads")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Admission("x", "y")
		m.LeadCreated("quiz", "hot")
		m.AsyncTask("x", nil)
		m.Notification("slack", nil)
		m.Purged("leads", 1)
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(config.MetricsConfig{Namespace: "test"})

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `test_http_requests_total{method="GET",route="/ping",status="200"} 1`))
}
