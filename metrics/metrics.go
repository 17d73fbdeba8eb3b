// Package metrics exports simulator and scorer activity to Prometheus.
package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/momentum/portfolio"
)

const namespace = "momentum"

// Metrics holds the collectors for one process. It implements
// portfolio.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	WeeksTotal     prometheus.Counter
	ActionsTotal   *prometheus.CounterVec // labels: type, reason, status
	AnomaliesTotal *prometheus.CounterVec // labels: kind
	PortfolioValue prometheus.Gauge
	Cash           prometheus.Gauge
	CapitalRisk    prometheus.Gauge
	Holdings       prometheus.Gauge
	DrawdownPct    prometheus.Gauge
	DrawdownState  prometheus.Gauge // 0=normal, 1=reduced, 2=paused
	ScoringSeconds prometheus.Histogram
	ScoredSymbols  prometheus.Gauge
	RankingRuns    *prometheus.CounterVec // labels: result
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		WeeksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weeks_total",
			Help:      "Simulated weeks committed",
		}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Portfolio actions by type, reason and status",
		}, []string{"type", "reason", "status"}),
		AnomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Non-fatal anomalies by kind",
		}, []string{"kind"}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value",
			Help:      "Cash plus marked holdings after the last week",
		}),
		Cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cash",
			Help:      "Remaining capital after the last week",
		}),
		CapitalRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capital_risk",
			Help:      "Open risk to current stops",
		}),
		Holdings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "holdings",
			Help:      "Open positions",
		}),
		DrawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drawdown_percent",
			Help:      "Drawdown from peak value",
		}),
		DrawdownState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "drawdown_state",
			Help:      "Drawdown posture (0=normal, 1=reduced, 2=paused)",
		}),
		ScoringSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_duration_seconds",
			Help:      "Time to score one universe",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ScoredSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scored_symbols",
			Help:      "Universe size of the last scoring pass",
		}),
		RankingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_runs_total",
			Help:      "Scheduled ranking jobs by result",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		m.WeeksTotal,
		m.ActionsTotal,
		m.AnomaliesTotal,
		m.PortfolioValue,
		m.Cash,
		m.CapitalRisk,
		m.Holdings,
		m.DrawdownPct,
		m.DrawdownState,
		m.ScoringSeconds,
		m.ScoredSymbols,
		m.RankingRuns,
	)
	return m
}

// ObserveWeek updates the gauges from a committed week and counts its
// actions and anomalies.
func (m *Metrics) ObserveWeek(w portfolio.WeeklySummary) {
	m.WeeksTotal.Inc()
	m.PortfolioValue.Set(w.PortfolioValue)
	m.Cash.Set(w.Ledger.Remaining)
	m.CapitalRisk.Set(w.Ledger.CapitalRisk)
	m.Holdings.Set(float64(len(w.Holdings)))
	m.DrawdownPct.Set(w.Drawdown.DrawdownPct)
	m.DrawdownState.Set(float64(w.Drawdown.State))

	for _, a := range w.Actions {
		m.ActionsTotal.WithLabelValues(a.Type.String(), string(a.Reason), a.Status.String()).Inc()
	}
	for _, an := range w.Anomalies {
		m.AnomaliesTotal.WithLabelValues(string(an.Kind)).Inc()
	}
}

// ObserveScoring matches scoring.WithObserver.
func (m *Metrics) ObserveScoring(symbols int, took time.Duration) {
	m.ScoredSymbols.Set(float64(symbols))
	m.ScoringSeconds.Observe(took.Seconds())
}

// ObserveRanking counts a scheduled ranking job.
func (m *Metrics) ObserveRanking(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RankingRuns.WithLabelValues(result).Inc()
}

// Router serves /metrics from the registry and /healthz. Extra routes can
// be added to the returned router.
func (m *Metrics) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
