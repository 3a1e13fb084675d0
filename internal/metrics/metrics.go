// metrics — коллекторы Prometheus для сессии, медиатора и исходящих запросов.
// Все методы безопасны на nil-получателе: без метрик компоненты работают так же.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ams"

type Metrics struct {
	logins            *prometheus.CounterVec
	refreshFlights    *prometheus.CounterVec
	refreshShared     prometheus.Counter
	refreshWaiters    prometheus.Gauge
	proactiveFailures prometheus.Counter
	sessionEnds       *prometheus.CounterVec

	recoveries *prometheus.CounterVec
	forbidden  prometheus.Counter

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// New регистрирует коллекторы в reg (nil — prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	f := promauto.With(reg)

	return &Metrics{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session",
			Name: "logins_total", Help: "Login attempts by result.",
		}, []string{"result"}),
		refreshFlights: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session",
			Name: "refresh_flights_total", Help: "Refresh calls actually sent to the backend, by result.",
		}, []string{"result"}),
		refreshShared: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session",
			Name: "refresh_shared_total", Help: "Refresh callers served by an already running refresh.",
		}),
		refreshWaiters: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session",
			Name: "refresh_waiters", Help: "Callers currently waiting for a refresh result.",
		}),
		proactiveFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session",
			Name: "proactive_refresh_failures_total", Help: "Scheduled refreshes that failed and ended the session.",
		}),
		sessionEnds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session",
			Name: "ends_total", Help: "Sessions ended, by reason.",
		}, []string{"reason"}),
		recoveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mediator",
			Name: "recoveries_total", Help: "Reactions to an unauthorized response, by outcome.",
		}, []string{"outcome"}),
		forbidden: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mediator",
			Name: "forbidden_total", Help: "Forbidden responses redirected to the insufficient privilege view.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "client",
			Name: "requests_total", Help: "Outgoing backend requests by method and status code.",
		}, []string{"method", "code"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "client",
			Name: "request_duration_seconds", Help: "Outgoing backend request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "client",
			Name: "grpc_calls_total", Help: "Outgoing gRPC calls by full method and status code.",
		}, []string{"method", "code"}),
		callDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "client",
			Name: "grpc_call_duration_seconds", Help: "Outgoing gRPC call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) RefreshFlight(result string) {
	if m == nil {
		return
	}
	m.refreshFlights.WithLabelValues(result).Inc()
}

func (m *Metrics) RefreshShared() {
	if m == nil {
		return
	}
	m.refreshShared.Inc()
}

// RefreshWaiting учитывает ожидающего результат; возвращённую функцию вызвать по завершении.
func (m *Metrics) RefreshWaiting() func() {
	if m == nil {
		return func() {}
	}
	m.refreshWaiters.Inc()
	return m.refreshWaiters.Dec
}

func (m *Metrics) ProactiveFailure() {
	if m == nil {
		return
	}
	m.proactiveFailures.Inc()
}

func (m *Metrics) SessionEnded(reason string) {
	if m == nil {
		return
	}
	m.sessionEnds.WithLabelValues(reason).Inc()
}

func (m *Metrics) Recovery(outcome string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Forbidden() {
	if m == nil {
		return
	}
	m.forbidden.Inc()
}

// Request учитывает исходящий запрос; code 0 — ответа не было.
func (m *Metrics) Request(method string, code int, dur time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(dur.Seconds())
}

// Call учитывает исходящий gRPC-вызов.
func (m *Metrics) Call(method, code string, dur time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method, code).Inc()
	m.callDuration.WithLabelValues(method).Observe(dur.Seconds())
}
