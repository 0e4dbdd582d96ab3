package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"minute/internal/ordering"
)

// Monitor collects service metrics in its own Prometheus registry.
type Monitor struct {
	registry  *prometheus.Registry
	startTime time.Time

	ordersCreated        prometheus.Counter
	orderRejections      *prometheus.CounterVec
	statusChanges        *prometheus.CounterVec
	transitionRejections *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
}

// NewMonitor creates a monitor with runtime collectors registered.
func NewMonitor() *Monitor {
	m := &Monitor{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),

		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minute_orders_created_total",
			Help: "Orders admitted after reserving a portion",
		}),
		orderRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minute_order_rejections_total",
			Help: "Order requests turned away",
		}, []string{"reason"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minute_order_status_changes_total",
			Help: "Applied order status transitions",
		}, []string{"from", "to"}),
		transitionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minute_order_transition_rejections_total",
			Help: "Status changes refused by the lifecycle",
		}, []string{"from", "to"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "minute_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "minute_uptime_seconds",
		Help: "Seconds since the process started",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		uptime,
		m.ordersCreated,
		m.orderRejections,
		m.statusChanges,
		m.transitionRejections,
		m.requestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Notify counts order events.
func (m *Monitor) Notify(_ context.Context, ev ordering.Event) {
	switch ev.Type {
	case ordering.EventOrderCreated:
		m.ordersCreated.Inc()
	case ordering.EventOrderRejected:
		m.orderRejections.WithLabelValues(ev.Reason).Inc()
	case ordering.EventOrderStatusChanged:
		m.statusChanges.WithLabelValues(string(ev.From), string(ev.To)).Inc()
	case ordering.EventTransitionRejected:
		m.transitionRejections.WithLabelValues(string(ev.From), string(ev.To)).Inc()
	}
}

// Middleware records request latency per route template.
func (m *Monitor) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
