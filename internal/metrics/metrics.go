package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics groups the collectors exported on /metrics. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	roundsStarted   prometheus.Counter
	roundsSettled   *prometheus.CounterVec
	amountWagered   prometheus.Counter
	amountPaid      prometheus.Counter
	paymentRequests *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	activeSessions  prometheus.Gauge
	wsConnections   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		roundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scratch_rounds_started_total", Help: "rounds started",
		}),
		roundsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scratch_rounds_settled_total", Help: "rounds settled by outcome",
		}, []string{"outcome"}),
		amountWagered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scratch_amount_wagered_total", Help: "sum of stakes",
		}),
		amountPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scratch_amount_paid_total", Help: "sum of amounts credited at settlement",
		}),
		paymentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scratch_payment_requests_total", Help: "payment requests by kind, method and status",
		}, []string{"kind", "method", "status"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scratch_commands_rejected_total", Help: "commands rejected by reason",
		}, []string{"reason"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scratch_dispatcher_queue_depth", Help: "commands waiting for the dispatcher",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scratch_active_sessions", Help: "sessions held in memory",
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scratch_ws_connections", Help: "open websocket connections",
		}),
	}
	reg.MustRegister(
		m.roundsStarted, m.roundsSettled, m.amountWagered, m.amountPaid,
		m.paymentRequests, m.rejected, m.queueDepth, m.activeSessions, m.wsConnections,
	)
	return m
}

// Handler serves the default registry through fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

func (m *Metrics) RoundStarted(bet decimal.Decimal) {
	if m == nil {
		return
	}
	m.roundsStarted.Inc()
	m.amountWagered.Add(bet.InexactFloat64())
}

func (m *Metrics) RoundSettled(won bool, credited decimal.Decimal) {
	if m == nil {
		return
	}
	outcome := "loss"
	if won {
		outcome = "win"
	}
	m.roundsSettled.WithLabelValues(outcome).Inc()
	m.amountPaid.Add(credited.InexactFloat64())
}

func (m *Metrics) PaymentRequest(kind, method, status string) {
	if m == nil {
		return
	}
	m.paymentRequests.WithLabelValues(kind, method, status).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) ActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) WSConnections(n int) {
	if m == nil {
		return
	}
	m.wsConnections.Set(float64(n))
}
