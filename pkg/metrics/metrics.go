package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/shopspring/decimal"
)

// Recorder holds the Prometheus metrics of simulation runs. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	Runs                *prometheus.CounterVec
	OrdersExecuted      prometheus.Counter
	OrdersDropped       prometheus.Counter
	SimulationErrors    *prometheus.CounterVec
	MalformedIndicators *prometheus.CounterVec
	FinalValue          prometheus.Gauge
	RunDuration         prometheus.Histogram
}

// New creates a Recorder with its own registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_runs_total",
				Help: "Total number of simulation runs by result",
			},
			[]string{"result"},
		),

		OrdersExecuted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketsim_orders_executed_total",
				Help: "Total number of orders applied to the ledger",
			},
		),

		OrdersDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketsim_orders_dropped_total",
				Help: "Total number of orders dated outside the trading calendar",
			},
		),

		SimulationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_simulation_errors_total",
				Help: "Total number of fatal simulation errors by kind",
			},
			[]string{"kind"},
		),

		MalformedIndicators: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_malformed_indicators_total",
				Help: "Total number of indicator rows with out of order bands",
			},
			[]string{"symbol"},
		),

		FinalValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketsim_final_portfolio_value",
				Help: "Portfolio value on the last simulated date",
			},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketsim_run_duration_seconds",
				Help:    "Wall time of a simulation run in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
		),
	}

	r.registry.MustRegister(
		r.Runs,
		r.OrdersExecuted,
		r.OrdersDropped,
		r.SimulationErrors,
		r.MalformedIndicators,
		r.FinalValue,
		r.RunDuration,
	)

	return r
}

// Registry returns the registry holding the recorder's metrics
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordRun records the outcome of one run. kind is empty for a run that
// completed.
func (r *Recorder) RecordRun(executed, dropped int, finalValue decimal.Decimal, seconds float64, kind string) {
	if r == nil {
		return
	}

	r.OrdersExecuted.Add(float64(executed))
	r.OrdersDropped.Add(float64(dropped))
	r.RunDuration.Observe(seconds)

	if kind != "" {
		r.Runs.WithLabelValues("failed").Inc()
		r.SimulationErrors.WithLabelValues(kind).Inc()
		return
	}
	r.Runs.WithLabelValues("completed").Inc()
	r.FinalValue.Set(finalValue.InexactFloat64())
}

// RecordMalformed counts indicator rows whose bands were out of order
func (r *Recorder) RecordMalformed(symbol string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.MalformedIndicators.WithLabelValues(symbol).Add(float64(n))
}

// Push sends the recorder's metrics to a Prometheus Pushgateway
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
