package observability

import (
	"github.com/aretw0/trialkit/pkg/domain"
	"github.com/aretw0/trialkit/pkg/phase"
	"github.com/aretw0/trialkit/pkg/sim"
	"github.com/aretw0/trialkit/pkg/trigger"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an audit sink exporting counters and latency histograms.
type Metrics struct {
	records       *prometheus.CounterVec
	sendErrors    *prometheus.CounterVec
	sendLatency   *prometheus.HistogramVec
	validations   *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trialkit_audit_records_total",
				Help: "Total number of audit records by type",
			},
			[]string{"type"},
		),
		sendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trialkit_trigger_send_errors_total",
				Help: "Trigger sends that failed at the driver",
			},
			[]string{"driver"},
		),
		sendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trialkit_trigger_send_latency_seconds",
				Help:    "Delay between planning and sending a trigger",
				Buckets: []float64{.0005, .001, .002, .005, .01, .02, .05, .1},
			},
			[]string{"driver", "when"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trialkit_responder_validations_total",
				Help: "Responder actions by validation status and reason",
			},
			[]string{"status", "reason"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trialkit_phase_duration_seconds",
				Help:    "Presented phase duration, close minus onset",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"label", "verb"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trialkit_phase_outcomes_total",
				Help: "Phase outcomes: responded, timeout or presented",
			},
			[]string{"label", "outcome"},
		),
	}
	reg.MustRegister(m.records, m.sendErrors, m.sendLatency, m.validations, m.phaseDuration, m.outcomes)
	return m
}

// Log implements ports.AuditSink.
func (m *Metrics) Log(rec domain.Record) {
	if rec == nil {
		return
	}
	m.records.WithLabelValues(string(rec.Header().Type)).Inc()

	switch r := rec.(type) {
	case *trigger.Record:
		if r.Type != domain.RecordTriggerExecuted {
			return
		}
		if r.Error != "" {
			m.sendErrors.WithLabelValues(r.Driver).Inc()
		}
		if r.TSent != nil {
			m.sendLatency.WithLabelValues(r.Driver, string(r.When)).Observe(max(0, *r.TSent-r.TPlanned))
		}
	case *sim.ActionRecord:
		reason := string(r.Validation.Reason)
		if reason == "" {
			reason = "none"
		}
		m.validations.WithLabelValues(string(r.Validation.Status), reason).Inc()
	case *phase.Record:
		m.phaseDuration.WithLabelValues(r.Label, r.Verb).Observe(r.Duration().Seconds())
		outcome := "presented"
		switch {
		case r.Responded:
			outcome = "responded"
		case r.TimedOut:
			outcome = "timeout"
		}
		m.outcomes.WithLabelValues(r.Label, outcome).Inc()
	}
}
