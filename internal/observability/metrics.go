// Package observability provides Prometheus metrics for the engine.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. All methods are safe on a nil receiver so
// engines can run without metrics wired.
type Metrics struct {
	registry *prometheus.Registry

	GamesCreated        *prometheus.CounterVec
	GamesClosed         *prometheus.CounterVec
	PredictionsResolved *prometheus.CounterVec
	PointsAwarded       prometheus.Counter
	PriceFeedErrors     *prometheus.CounterVec
	AirdropsSent        *prometheus.CounterVec
	AirdropAmount       *prometheus.CounterVec
	JobRuns             *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
	ActiveGames         prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "updown"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		GamesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "created_total",
			Help:      "Games created by symbol",
		}, []string{"symbol"}),
		GamesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "closed_total",
			Help:      "Game close outcomes by status",
		}, []string{"status"}),
		PredictionsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prediction",
			Name:      "resolved_total",
			Help:      "Predictions resolved by outcome",
		}, []string{"outcome"}),
		PointsAwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "points_awarded_total",
			Help:      "Points written to the score ledger",
		}),
		PriceFeedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "errors_total",
			Help:      "Price lookups that failed by symbol",
		}, []string{"symbol"}),
		AirdropsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "airdrop",
			Name:      "transfers_total",
			Help:      "Airdrop transfers by period and result",
		}, []string{"period", "result"}),
		AirdropAmount: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "airdrop",
			Name:      "amount_total",
			Help:      "Airdrop amount paid by period",
		}, []string{"period"}),
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Scheduled job runs by job and status",
		}, []string{"job", "status"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "duration_seconds",
			Help:      "Scheduled job duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		ActiveGames: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "active",
			Help:      "Games currently ACTIVE",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) GameCreated(symbol string) {
	if m == nil {
		return
	}
	m.GamesCreated.WithLabelValues(symbol).Inc()
}

func (m *Metrics) GameClosed(status string) {
	if m == nil {
		return
	}
	m.GamesClosed.WithLabelValues(status).Inc()
}

func (m *Metrics) PredictionResolved(win bool, points float64) {
	if m == nil {
		return
	}
	outcome := "lose"
	if win {
		outcome = "win"
		m.PointsAwarded.Add(points)
	}
	m.PredictionsResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PriceFeedError(symbol string) {
	if m == nil {
		return
	}
	m.PriceFeedErrors.WithLabelValues(symbol).Inc()
}

func (m *Metrics) AirdropSent(period string, ok bool, amount float64) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "completed"
		m.AirdropAmount.WithLabelValues(period).Add(amount)
	}
	m.AirdropsSent.WithLabelValues(period, result).Inc()
}

func (m *Metrics) SetActiveGames(n int) {
	if m == nil {
		return
	}
	m.ActiveGames.Set(float64(n))
}

// ObserveJob records one scheduled run that started at start.
func (m *Metrics) ObserveJob(job string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.JobRuns.WithLabelValues(job, status).Inc()
	m.JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}
