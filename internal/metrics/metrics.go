package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for the queue server on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	QueueOps      *prometheus.CounterVec
	Notifications prometheus.Counter
	Subscribers   prometheus.Gauge
	RateLimited   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		reg: reg,
		QueueOps: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "barbershop_operations_total",
			Help: "Queue and login operations by name and outcome.",
		}, []string{"op", "result"}),
		Notifications: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "queue_notifications_total",
			Help: "Queue change notifications sent to the broadcaster.",
		}),
		Subscribers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "queue_stream_subscribers",
			Help: "Streaming connections currently registered.",
		}),
		RateLimited: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "queue_join_rate_limited_total",
			Help: "Join requests rejected by the rate limiter.",
		}),
	}
}

// Observe records one finished operation.
func (m *Metrics) Observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.QueueOps.WithLabelValues(op, result).Inc()
}

// SetSubscribers matches the broadcaster's gauge callback.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// CountingNotifier counts notifications before passing them on.
type CountingNotifier struct {
	next    interface{ Notify() }
	counter prometheus.Counter
}

func (m *Metrics) CountNotifications(next interface{ Notify() }) *CountingNotifier {
	return &CountingNotifier{next: next, counter: m.Notifications}
}

func (n *CountingNotifier) Notify() {
	n.counter.Inc()
	n.next.Notify()
}
