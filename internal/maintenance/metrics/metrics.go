// Package metrics exposes Prometheus instruments for the maintenance lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registry *prometheus.Registry

	transitions         *prometheus.CounterVec
	requestsCreated     *prometheus.CounterVec
	scrapCascadeFailure prometheus.Counter
	dbOperationDuration *prometheus.HistogramVec
}

// New registers every instrument on a fresh registry under prefix.
func New(prefix string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_transitions_total",
				Help: "Total number of maintenance request status transitions",
			},
			[]string{"from", "to"},
		),
		requestsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_created_total",
				Help: "Total number of maintenance requests created",
			},
			[]string{"type"},
		),
		scrapCascadeFailure: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_scrap_cascade_failures_total",
				Help: "Total number of equipment scrap writes that failed after a scrap transition",
			},
		),
		dbOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTransition counts a status change. Safe on a nil receiver.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordRequestCreated(requestType string) {
	if m == nil {
		return
	}
	m.requestsCreated.WithLabelValues(requestType).Inc()
}

func (m *Metrics) RecordScrapCascadeFailure() {
	if m == nil {
		return
	}
	m.scrapCascadeFailure.Inc()
}

// TrackDBOperation returns a function that records the duration of a store operation.
//
//	defer m.TrackDBOperation("create_request")(time.Now())
func (m *Metrics) TrackDBOperation(operation string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		m.dbOperationDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}
}
