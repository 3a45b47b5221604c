// Package metrics provides Prometheus instrumentation for the synergy store.
//
// # Overview
//
// The store records one sample per operation, labelled by operation
// (initialize, put, get, query, close), backend state (uninitialized, live,
// mock, failed) and status (success, not_found, error). Only get reports
// not_found. Degradations from the live backend to the
// in-memory one are counted separately and the current mode is exported as
// a gauge so dashboards can alert on a store silently running in memory.
//
// # Basic Usage
//
//	timer := metrics.NewTimer("put")
//	err := backend.Write(ctx, collection, key, fields, now)
//	metrics.ObserveOperation("put", "live", metrics.Status(err), timer.Stop())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts store operations.
	// Labels: operation, mode (uninitialized/live/mock/failed), status (success/not_found/error)
	//
	// Example:
	//	metrics.OperationsTotal.WithLabelValues("put", "mock", "success").Inc()
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synergy_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "mode", "status"},
	)

	// OperationDuration tracks store operation latency in seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "synergy_store_operation_duration_seconds",
			Help: "Store operation latency in seconds",
			Buckets: []float64{
				0.0001, // 100μs - in-memory operations
				0.001,  // 1ms
				0.01,   // 10ms - local network round trip
				0.1,    // 100ms
				1,      // 1s
				10,     // 10s - default operation timeout
			},
		},
		[]string{"operation", "mode"},
	)

	// Degradations counts one-way switches from the live backend to the in-memory store.
	Degradations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "synergy_store_degradations_total",
			Help: "Number of live to mock backend degradations",
		},
	)

	// Mode exports the active backend; the active label is set to 1, the others to 0.
	Mode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "synergy_store_mode",
			Help: "Active store backend (1 for the current state)",
		},
		[]string{"state"},
	)

	// ActiveConnections tracks open shared backend client handles.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "synergy_store_active_connections",
			Help: "Number of open backend client handles",
		},
	)
)

// Operation status labels
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// Status labels an operation outcome
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// LookupStatus labels a keyed read: not_found when it succeeded without a record.
func LookupStatus(found bool, err error) string {
	if err == nil && !found {
		return StatusNotFound
	}
	return Status(err)
}

// ObserveOperation records one operation sample
func ObserveOperation(operation, mode, status string, d time.Duration) {
	OperationsTotal.WithLabelValues(operation, mode, status).Inc()
	OperationDuration.WithLabelValues(operation, mode).Observe(d.Seconds())
}

// SetMode marks state as the active backend state.
func SetMode(state string, all ...string) {
	for _, s := range all {
		if s == state {
			Mode.WithLabelValues(s).Set(1)
		} else {
			Mode.WithLabelValues(s).Set(0)
		}
	}
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation.
// The timer can be stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
