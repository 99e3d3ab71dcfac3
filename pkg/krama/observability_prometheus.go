package krama

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver implements Observer using Prometheus metrics.
// This is useful if you're already using Prometheus for monitoring.
//
// Example:
//
//	observer := krama.NewPrometheusObserver("my_service", prometheus.DefaultRegisterer)
//	pipe := krama.New(krama.WithObserver(observer))
type PrometheusObserver struct {
	runDuration       *prometheus.HistogramVec
	stageDuration     *prometheus.HistogramVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	cacheCheckLatency *prometheus.HistogramVec
	notCacheable      *prometheus.CounterVec
	intercepts        *prometheus.CounterVec
	errors            *prometheus.CounterVec
}

// NewPrometheusObserver creates a Prometheus observer with the given namespace.
// All metrics will be prefixed with "{namespace}_krama_".
//
// Example:
//
//	observer := NewPrometheusObserver("myapp", prometheus.DefaultRegisterer)
//	// Creates metrics like: myapp_krama_run_duration_seconds
func NewPrometheusObserver(namespace string, registerer prometheus.Registerer) *PrometheusObserver {
	if namespace == "" {
		namespace = "krama"
	}

	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "krama",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   prometheus.DefBuckets, // [0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
		},
		[]string{"status"},
	)

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "krama",
			Name:      "stage_duration_seconds",
			Help:      "Duration of stage execution in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)

	cacheHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "krama",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"callable"},
	)

	cacheMisses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "krama",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"callable"},
	)

	cacheCheckLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "krama",
			Name:      "cache_check_latency_seconds",
			Help:      "Latency of cache lookups in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"callable"},
	)

	notCacheable := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "krama",
			Name:      "not_cacheable_total",
			Help:      "Total number of invocations that could not be cached",
		},
		[]string{"callable"},
	)

	intercepts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "krama",
			Name:      "intercepts_total",
			Help:      "Total number of callables wrapped for memoization",
		},
		[]string{"stage"},
	)

	errors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "krama",
			Name:      "stage_errors_total",
			Help:      "Total number of stage errors",
		},
		[]string{"stage"},
	)

	// Register all metrics
	registerer.MustRegister(
		runDuration,
		stageDuration,
		cacheHits,
		cacheMisses,
		cacheCheckLatency,
		notCacheable,
		intercepts,
		errors,
	)

	return &PrometheusObserver{
		runDuration:       runDuration,
		stageDuration:     stageDuration,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		cacheCheckLatency: cacheCheckLatency,
		notCacheable:      notCacheable,
		intercepts:        intercepts,
		errors:            errors,
	}
}

func (o *PrometheusObserver) OnRunStart(ctx context.Context, event *RunStartEvent) {
	// Nothing to do on start for Prometheus
}

func (o *PrometheusObserver) OnRunEnd(ctx context.Context, event *RunEndEvent) {
	status := "success"
	if event.Error != nil {
		status = "error"
	}

	o.runDuration.WithLabelValues(status).Observe(event.Duration.Seconds())
}

func (o *PrometheusObserver) OnStageStart(ctx context.Context, event *StageStartEvent) {
	// Nothing to do on start for Prometheus
}

func (o *PrometheusObserver) OnStageEnd(ctx context.Context, event *StageEndEvent) {
	status := "success"
	if event.Panicked {
		status = "panic"
	} else if event.Error != nil {
		status = "error"
	}

	o.stageDuration.WithLabelValues(event.Stage, status).Observe(event.Duration.Seconds())

	if event.Error != nil {
		o.errors.WithLabelValues(event.Stage).Inc()
	}
}

func (o *PrometheusObserver) OnIntercept(ctx context.Context, event *InterceptEvent) {
	o.intercepts.WithLabelValues(event.Stage).Inc()
}

func (o *PrometheusObserver) OnCacheCheck(ctx context.Context, event *CacheCheckEvent) {
	if event.NotCacheable {
		o.notCacheable.WithLabelValues(event.Callable).Inc()
		return
	}

	labels := prometheus.Labels{"callable": event.Callable}

	if event.Hit {
		o.cacheHits.With(labels).Inc()
	} else {
		o.cacheMisses.With(labels).Inc()
	}

	o.cacheCheckLatency.With(labels).Observe(event.Latency.Seconds())
}
