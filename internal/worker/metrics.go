package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry           *prometheus.Registry
	publishTotal       *prometheus.CounterVec
	publishDuration    *prometheus.HistogramVec
	activeTasks        prometheus.Gauge
	uploadedBytesTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixeledit_worker_publish_total",
			Help: "Publish tasks by output format and outcome.",
		}, []string{"format", "outcome"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixeledit_worker_publish_duration_seconds",
			Help:    "Duration of each publish task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format", "outcome"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixeledit_worker_active_tasks",
			Help: "Publish tasks currently running in the worker.",
		}),
		uploadedBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixeledit_worker_uploaded_bytes_total",
			Help: "Bytes uploaded to object storage.",
		}),
	}

	registry.MustRegister(
		m.publishTotal,
		m.publishDuration,
		m.activeTasks,
		m.uploadedBytesTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
