// metrics описывает Prometheus-метрики auth-сервиса.
// Метрики регистрируются в переданном Registerer, глобальный реестр не используется.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auth"

// Metrics - набор метрик сервиса.
type Metrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	janitor  prometheus.Counter

	gatherer prometheus.Gatherer
}

// New создаёт и регистрирует метрики в собственном реестре.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return NewWith(reg, reg)
}

// NewWith регистрирует метрики в reg; gatherer отдаётся через Handler.
func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Auth operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		janitor: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_refresh_tokens_deleted_total",
			Help:      "Expired refresh tokens removed by the janitor.",
		}),
		gatherer: gatherer,
	}

	reg.MustRegister(m.outcomes, m.duration, m.inflight, m.janitor)

	return m
}

// ObserveOutcome учитывает исход операции (register/login/refresh/me).
// outcome - код ошибки ответа или "ok".
func (m *Metrics) ObserveOutcome(operation, outcome string) {
	m.outcomes.WithLabelValues(operation, outcome).Inc()
}

// ObserveRequest учитывает длительность HTTP-запроса.
func (m *Metrics) ObserveRequest(method, route string, status int, dur time.Duration) {
	m.duration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(dur.Seconds())
}

// InFlight увеличивает счётчик активных запросов; возвращённая функция уменьшает его.
func (m *Metrics) InFlight() func() {
	m.inflight.Inc()
	return m.inflight.Dec
}

// ExpiredTokensDeleted учитывает токены, удалённые фоновой очисткой.
func (m *Metrics) ExpiredTokensDeleted(n int64) {
	if n > 0 {
		m.janitor.Add(float64(n))
	}
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
