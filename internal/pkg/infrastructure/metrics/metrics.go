package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// StorageMetrics are the counters exported by the write path. A nil *StorageMetrics records nothing.
type StorageMetrics struct {
	Writes          *prometheus.CounterVec // labels: backend, op, result
	CleanupFailures *prometheus.CounterVec // labels: step
	Mismatches      prometheus.Counter
	IngestDropped   prometheus.Counter
	IngestPending   prometheus.Gauge
	Pruned          prometheus.Counter
	StoredRecords   prometheus.Gauge
	Queued          prometheus.Gauge
	Replayed        *prometheus.CounterVec // labels: result
}

func NewStorageMetrics(reg prometheus.Registerer) *StorageMetrics {
	m := &StorageMetrics{
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensor_storage_writes_total",
			Help: "Storage writes by backend, operation and result.",
		}, []string{"backend", "op", "result"}),
		CleanupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensor_storage_cleanup_failures_total",
			Help: "Failed cleanup steps after sensor deletion.",
		}, []string{"step"}),
		Mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensor_storage_backend_mismatch_total",
			Help: "Updates that found the sensor in the other backend.",
		}),
		IngestDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensor_ingest_dropped_total",
			Help: "Pending records replaced by a newer record before they were written.",
		}),
		IngestPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensor_ingest_pending",
			Help: "Sensors with a record waiting to be written.",
		}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensor_retention_pruned_sensors_total",
			Help: "Sensors whose history was pruned by retention.",
		}),
		StoredRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensor_storage_records",
			Help: "Records held across both backends at the last retention run.",
		}),
		Queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensor_queued_requests",
			Help: "Cloud requests waiting to be replayed.",
		}),
		Replayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensor_queued_requests_replayed_total",
			Help: "Replayed cloud requests by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Writes, m.CleanupFailures, m.Mismatches, m.IngestDropped, m.IngestPending, m.Pruned, m.StoredRecords, m.Queued, m.Replayed)

	return m
}

func (m *StorageMetrics) Write(backend, op string, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	m.Writes.WithLabelValues(backend, op, result).Inc()
}

func (m *StorageMetrics) CleanupFailed(step string) {
	if m == nil {
		return
	}
	m.CleanupFailures.WithLabelValues(step).Inc()
}

func (m *StorageMetrics) Mismatch() {
	if m == nil {
		return
	}
	m.Mismatches.Inc()
}

func (m *StorageMetrics) Dropped() {
	if m == nil {
		return
	}
	m.IngestDropped.Inc()
}

func (m *StorageMetrics) Pending(n int) {
	if m == nil {
		return
	}
	m.IngestPending.Set(float64(n))
}

func (m *StorageMetrics) PrunedSensors(n int) {
	if m == nil {
		return
	}
	m.Pruned.Add(float64(n))
}

func (m *StorageMetrics) Stored(n int64) {
	if m == nil {
		return
	}
	m.StoredRecords.Set(float64(n))
}

func (m *StorageMetrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.Queued.Set(float64(n))
}

func (m *StorageMetrics) Replay(err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	m.Replayed.WithLabelValues(result).Inc()
}
