package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики Integrator. Регистрируются в default registry
// и отдаются через promhttp.Handler() на /metrics.
var (
	// RunsTriggered — созданные runs по типу запуска.
	RunsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integrator_runs_triggered_total",
		Help: "Runs created, by trigger type",
	}, []string{"trigger_type"})

	// RunsFinished — завершённые runs по финальному статусу.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integrator_runs_finished_total",
		Help: "Runs that reached a terminal status",
	}, []string{"status"})

	// RunsRecovered — runs, переведённые в FAILED при старте сервиса.
	RunsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "integrator_runs_recovered_total",
		Help: "Pending runs marked as failed during startup recovery",
	})

	// ActiveRuns — runs, выполняющиеся в фоне прямо сейчас.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "integrator_active_runs",
		Help: "Runs currently executing in background tasks",
	})

	// StepDuration — длительность шагов.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "integrator_step_duration_seconds",
		Help:    "Step handler execution time",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"step", "result"})

	// ConfigLoads — загрузки конфиг-файлов из источника (cache miss).
	ConfigLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integrator_config_loads_total",
		Help: "Business config file loads from the backing source",
	}, []string{"file", "result"})

	// SCMRequests — запросы к GitLab API.
	SCMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integrator_scm_requests_total",
		Help: "Requests sent to the source control API",
	}, []string{"operation", "status"})

	// HTTPRequests — запросы к API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "integrator_http_requests_total",
		Help: "HTTP API requests, by route and status code",
	}, []string{"method", "path", "status"})
)

// Result — значение label "result".
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
