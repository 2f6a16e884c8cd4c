package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — набор метрик сервиса дашборда.
type Metrics struct {
	// Traffic: запросы отчета по статусу ответа
	ReportRequests *prometheus.CounterVec

	// Latency: время построения отчета (без похода в источник)
	PipelineDuration prometheus.Histogram

	// Latency: время обращения к источнику сводок
	SourceFetchDuration *prometheus.HistogramVec

	// Cache: попадания и промахи кэша сводок
	CacheResults *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Размер выдачи после поиска
	SitesAfterSearch prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	// Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ReportRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sitesboard_report_requests_total",
			Help: "Total number of dashboard report requests by outcome.",
		}, []string{"transport", "status"}), // статусы: ok, bad_request, unavailable, canceled, error

		PipelineDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "sitesboard_pipeline_duration_seconds",
			Help:    "Histogram of group/search/flatten/paginate pipeline latencies.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),

		SourceFetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitesboard_source_fetch_duration_seconds",
			Help:    "Histogram of summary source call latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"call", "status"}),

		CacheResults: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sitesboard_cache_results_total",
			Help: "Summary cache lookups by result.",
		}, []string{"result"}), // hit, miss, error

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "sitesboard_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),

		SitesAfterSearch: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "sitesboard_sites_after_search",
			Help:    "Number of visible rows (groups and sites) after search.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}
