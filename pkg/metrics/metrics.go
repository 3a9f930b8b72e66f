// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sss.
//
// go-sss is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics records Prometheus metrics for split and reconstruct
// runs. A Recorder owns a private registry, so nothing is exported unless
// the caller writes it out; the CLI does so as a node_exporter textfile.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all go-sss metrics
	Namespace = "sss"

	// Label names
	LabelOperation  = "operation"
	LabelStatus     = "status"
	LabelErrorClass = "error_class"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSplit   = "split"
	OpCombine = "combine"
	OpConfirm = "confirm"
	OpCheck   = "check"
)

// Recorder holds the metric vectors for one process.
type Recorder struct {
	registry *prometheus.Registry

	operationsTotal      *prometheus.CounterVec
	operationDuration    *prometheus.HistogramVec
	secretBytesTotal     *prometheus.CounterVec
	shareValuesTotal     *prometheus.CounterVec
	errorsTotal          *prometheus.CounterVec
	verificationFailures prometheus.Counter

	goroutines       prometheus.Gauge
	memoryAllocBytes prometheus.Gauge
	memorySysBytes   prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		// Total split/combine runs by outcome.
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Total number of split and combine operations by status",
			},
			[]string{LabelOperation, LabelStatus},
		),

		// Wall time of whole operations, including key derivation.
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of split and combine operations in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{LabelOperation},
		),

		secretBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "secret_bytes_total",
				Help:      "Secret bytes split or reconstructed, excluding the digest",
			},
			[]string{LabelOperation},
		),

		shareValuesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "share_values_total",
				Help:      "Share values written or read across all shares",
			},
			[]string{LabelOperation},
		),

		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by operation and error class",
			},
			[]string{LabelOperation, LabelErrorClass},
		),

		verificationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "verification_failures_total",
				Help:      "Reconstructions rejected by digest or range checks",
			},
		),

		goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines at collection time",
		}),
		memoryAllocBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Bytes of allocated heap objects at collection time",
		}),
		memorySysBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Bytes of memory obtained from the OS at collection time",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordOperation counts a finished operation and observes its duration.
func (r *Recorder) RecordOperation(operation, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.operationsTotal.WithLabelValues(operation, status).Inc()
	r.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddSecretBytes adds n secret bytes processed by operation.
func (r *Recorder) AddSecretBytes(operation string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.secretBytesTotal.WithLabelValues(operation).Add(float64(n))
}

// AddShareValues adds n share values written or read by operation.
func (r *Recorder) AddShareValues(operation string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.shareValuesTotal.WithLabelValues(operation).Add(float64(n))
}

// RecordError counts an error of class during operation.
func (r *Recorder) RecordError(operation, class string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(operation, class).Inc()
}

// RecordVerificationFailure counts a rejected reconstruction.
func (r *Recorder) RecordVerificationFailure() {
	if r == nil {
		return
	}
	r.verificationFailures.Inc()
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// The file is written atomically for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	r.CollectResources()
	return prometheus.WriteToTextfile(path, r.registry)
}
