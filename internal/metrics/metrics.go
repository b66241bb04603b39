package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for ofertabot
type Metrics struct {
	// Dispatch
	DispatchOutcomesTotal       *prometheus.CounterVec
	GatewaySendsTotal           *prometheus.CounterVec
	DispatchPassDurationSeconds prometheus.Histogram
	DispatchLastPassTimestamp   prometheus.Gauge
	RotationConflictsTotal      prometheus.Counter

	// Manual scheduling
	ScheduleAdvancedTotal       prometheus.Counter
	ScheduleSlotsAllocatedTotal prometheus.Counter
	ScheduleUnscheduledTotal    prometheus.Counter

	// API
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		DispatchOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofertabot_dispatch_outcomes_total",
				Help: "Per-user dispatch outcomes by reason",
			},
			[]string{"outcome"},
		),
		GatewaySendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofertabot_gateway_sends_total",
				Help: "Messages handed to the WhatsApp gateway, by result",
			},
			[]string{"result"},
		),
		DispatchPassDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ofertabot_dispatch_pass_duration_seconds",
				Help:    "Duration of a dispatch pass over all users",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		DispatchLastPassTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ofertabot_dispatch_last_pass_timestamp",
				Help: "Unix time of the last finished dispatch pass",
			},
		),
		RotationConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ofertabot_dispatch_rotation_conflicts_total",
				Help: "Rotation saves rejected because another pass changed the config",
			},
		),
		ScheduleAdvancedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ofertabot_schedule_advanced_total",
				Help: "Recurring entries rolled forward to their next occurrence",
			},
		),
		ScheduleSlotsAllocatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ofertabot_schedule_slots_allocated_total",
				Help: "Entries created by batch slot allocation",
			},
		),
		ScheduleUnscheduledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ofertabot_schedule_unscheduled_total",
				Help: "Products left without a slot after the allocation attempt cap",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofertabot_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ofertabot_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofertabot_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.DispatchOutcomesTotal,
		m.GatewaySendsTotal,
		m.DispatchPassDurationSeconds,
		m.DispatchLastPassTimestamp,
		m.RotationConflictsTotal,
		m.ScheduleAdvancedTotal,
		m.ScheduleSlotsAllocatedTotal,
		m.ScheduleUnscheduledTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncDispatchOutcome counts a per-user dispatch outcome
func IncDispatchOutcome(outcome string) {
	if m := Global(); m != nil {
		m.DispatchOutcomesTotal.WithLabelValues(outcome).Inc()
	}
}

// IncGatewaySend counts one destination send; result is "ok" or "error"
func IncGatewaySend(result string) {
	if m := Global(); m != nil {
		m.GatewaySendsTotal.WithLabelValues(result).Inc()
	}
}

// ObservePass records a finished dispatch pass
func ObservePass(d time.Duration, finished time.Time) {
	if m := Global(); m != nil {
		m.DispatchPassDurationSeconds.Observe(d.Seconds())
		m.DispatchLastPassTimestamp.Set(float64(finished.Unix()))
	}
}

// IncRotationConflict counts a rejected rotation save
func IncRotationConflict() {
	if m := Global(); m != nil {
		m.RotationConflictsTotal.Inc()
	}
}

// AddScheduleAdvanced counts rolled-forward recurring entries
func AddScheduleAdvanced(n int) {
	if m := Global(); m != nil && n > 0 {
		m.ScheduleAdvancedTotal.Add(float64(n))
	}
}

// AddSlotsAllocated counts batch allocation results
func AddSlotsAllocated(allocated, unscheduled int) {
	if m := Global(); m != nil {
		m.ScheduleSlotsAllocatedTotal.Add(float64(allocated))
		m.ScheduleUnscheduledTotal.Add(float64(unscheduled))
	}
}

// IncAPIErrors increments API errors counter
func IncAPIErrors(errorType string) {
	if m := Global(); m != nil {
		m.APIErrorsTotal.WithLabelValues(errorType).Inc()
	}
}
