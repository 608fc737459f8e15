package metrics

import (
	"net/http"
	"strconv"
	"time"

	"leadflow/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 进程内的全部指标；nil 接收者上的方法都是空操作
type Metrics struct {
	registry      *prometheus.Registry
	httpReqCnt    *prometheus.CounterVec
	httpDur       *prometheus.HistogramVec
	httpInfl      *prometheus.GaugeVec
	admissionCnt  *prometheus.CounterVec
	leadsCreated  *prometheus.CounterVec
	dispatchCnt   *prometheus.CounterVec
	notifyCnt     *prometheus.CounterVec
	purgedRowsCnt *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	admissionCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "admission_decisions_total"}, []string{"operation", "outcome"})
	leadsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "leads_created_total"}, []string{"source", "tier"})
	dispatchCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "async_tasks_total"}, []string{"task", "status"})
	notifyCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "notifications_total"}, []string{"channel", "status"})
	purgedRowsCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "retention_purged_rows_total"}, []string{"entity"})
	r.MustRegister(admissionCnt, leadsCreated, dispatchCnt, notifyCnt, purgedRowsCnt)

	return &Metrics{
		registry:      r,
		httpReqCnt:    httpReqCnt,
		httpDur:       httpDur,
		httpInfl:      httpInfl,
		admissionCnt:  admissionCnt,
		leadsCreated:  leadsCreated,
		dispatchCnt:   dispatchCnt,
		notifyCnt:     notifyCnt,
		purgedRowsCnt: purgedRowsCnt,
	}
}

// Admission 记录一次准入判定，outcome 为 accepted 或错误分类
func (m *Metrics) Admission(operation, outcome string) {
	if m == nil {
		return
	}
	m.admissionCnt.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) LeadCreated(source, tier string) {
	if m == nil {
		return
	}
	m.leadsCreated.WithLabelValues(source, tier).Inc()
}

// AsyncTask 记录异步任务结果
func (m *Metrics) AsyncTask(task string, err error) {
	if m == nil {
		return
	}
	m.dispatchCnt.WithLabelValues(task, outcome(err)).Inc()
}

func (m *Metrics) Notification(channel string, err error) {
	if m == nil {
		return
	}
	m.notifyCnt.WithLabelValues(channel, outcome(err)).Inc()
}

func (m *Metrics) Purged(entity string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.purgedRowsCnt.WithLabelValues(entity).Add(float64(rows))
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
