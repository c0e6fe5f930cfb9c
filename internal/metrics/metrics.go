package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gallery metrics. Package-level so the gallery and jobs packages can record
// without threading a registry through every constructor.
var (
	Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_operations_total",
		Help: "Gallery operations by name and result",
	}, []string{"op", "result"}) // result: ok|error

	OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gallery_operation_duration_seconds",
		Help:    "Latency of gallery operations including lock wait",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	BlobWriteRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gallery_blob_write_retries_total",
		Help: "Blob writes that were retried after a failure",
	})

	BlobDeleteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gallery_blob_delete_failures_total",
		Help: "Blob deletes that failed and left an orphan behind",
	})

	Rollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gallery_upload_rollbacks_total",
		Help: "Uploads whose written blobs were removed after a later step failed",
	})

	ReconcileIssues = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_reconcile_issues_total",
		Help: "Inconsistencies found by reconciliation",
	}, []string{"kind"}) // kind: orphan_blob|dangling_row|missing_thumbnail
)

// Register registers the gallery metrics on reg (or the default registerer
// if nil). Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		Operations, OperationDuration, BlobWriteRetries, BlobDeleteFailures, Rollbacks, ReconcileIssues,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observe records the outcome of a gallery operation.
func Observe(op string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Operations.WithLabelValues(op, result).Inc()
	OperationDuration.WithLabelValues(op).Observe(seconds)
}
