// Package metrics records Prometheus metrics for repository operations.
//
// Every service operation is counted by outcome and timed:
//
//	metastore_operations_total{operation="link.create", outcome="ok"}
//	metastore_operations_total{operation="link.create", outcome="duplicate_name"}
//	metastore_operation_duration_seconds{operation="link.create"}
//
// The outcome label is the apperrors code of the returned error.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
)

// OutcomeOK labels operations that returned no error.
const OutcomeOK = "ok"

// Recorder records operation metrics. A nil *Recorder records nothing.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metastore",
			Name:      "operations_total",
			Help:      "Repository operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "metastore",
			Name:      "operation_duration_seconds",
			Help:      "Repository operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(r.operations, r.duration)
	}
	return r
}

// Observe records one finished operation.
func (r *Recorder) Observe(operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = apperrors.Code(err)
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Track starts timing an operation. Defer the returned func with a pointer
// to the operation's named error result:
//
//	defer s.metrics.Track("link.create")(&err)
func (r *Recorder) Track(operation string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		r.Observe(operation, start, err)
	}
}
