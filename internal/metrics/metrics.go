// Package metrics defines custom Prometheus metrics for flowstore.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// sizeBuckets are exponential buckets for object size histograms (bytes).
var sizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864}

// Repository operation metrics.
var (
	// OperationsTotal counts repository backend operations by backend kind
	// and operation name.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstore_repository_operations_total",
			Help: "Total repository backend operations",
		},
		[]string{"backend", "operation"},
	)

	// OperationErrorsTotal counts failed repository backend operations by
	// backend kind and operation name.
	OperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstore_repository_operation_errors_total",
			Help: "Total failed repository backend operations",
		},
		[]string{"backend", "operation"},
	)

	// ObjectSize observes the size in bytes of objects written to the
	// repository.
	ObjectSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowstore_repository_object_size_bytes",
			Help:    "Size in bytes of objects written to the repository",
			Buckets: sizeBuckets,
		},
		[]string{"backend"},
	)
)

// Register registers all flowstore metrics with the default Prometheus
// registry. Safe to call multiple times.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OperationsTotal,
			OperationErrorsTotal,
			ObjectSize,
		)
	})
}

// ObserveOperation records one repository operation and, when err is non-nil,
// one operation failure.
func ObserveOperation(backend, operation string, err error) {
	OperationsTotal.WithLabelValues(backend, operation).Inc()
	if err != nil {
		OperationErrorsTotal.WithLabelValues(backend, operation).Inc()
	}
}
