package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StrategiesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "strategies_processed_total", Help: "Strategies run through the validation pipeline"},
		[]string{"outcome"},
	)
	PhaseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "phase_failures_total", Help: "Validation failures by pipeline phase"},
		[]string{"phase"},
	)
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "queue_depth", Help: "Strategies per lifecycle state"},
		[]string{"state"},
	)
	WorkersBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "workers_busy", Help: "Workers currently validating a strategy"},
	)
	ThrottleSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "throttle_seconds_total", Help: "Seconds spent sleeping on downstream backpressure"},
	)
)

func init() {
	prometheus.MustRegister(StrategiesProcessed, PhaseFailures, QueueDepth, WorkersBusy, ThrottleSeconds)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
