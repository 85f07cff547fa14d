package metrics

import "github.com/prometheus/client_golang/prometheus"

// OnboardingMetrics exposes counters/histograms for the onboarding flow.
type OnboardingMetrics struct {
	stepAdvances *prometheus.CounterVec
	stepFailures *prometheus.CounterVec
	domainChecks *prometheus.CounterVec
	completions  prometheus.Counter
	opLatency    *prometheus.HistogramVec
}

func NewOnboardingMetrics(reg prometheus.Registerer) *OnboardingMetrics {
	m := &OnboardingMetrics{
		stepAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orthopulse",
			Subsystem: "onboarding",
			Name:      "step_advances_total",
			Help:      "Total onboarding step advances",
		}, []string{"from_step"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orthopulse",
			Subsystem: "onboarding",
			Name:      "step_failures_total",
			Help:      "Total onboarding operation failures",
		}, []string{"operation"}),
		domainChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orthopulse",
			Subsystem: "onboarding",
			Name:      "domain_checks_total",
			Help:      "Total domain reachability checks by result status",
		}, []string{"status"}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orthopulse",
			Subsystem: "onboarding",
			Name:      "completions_total",
			Help:      "Total completed onboarding flows",
		}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orthopulse",
			Subsystem: "onboarding",
			Name:      "operation_latency_seconds",
			Help:      "Latency of side-effecting onboarding operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stepAdvances, m.stepFailures, m.domainChecks, m.completions, m.opLatency)
	return m
}

func (m *OnboardingMetrics) ObserveAdvance(fromStep string) {
	if m == nil {
		return
	}
	m.stepAdvances.WithLabelValues(fromStep).Inc()
}

func (m *OnboardingMetrics) ObserveFailure(operation string) {
	if m == nil {
		return
	}
	m.stepFailures.WithLabelValues(operation).Inc()
}

func (m *OnboardingMetrics) ObserveDomainCheck(status string) {
	if m == nil {
		return
	}
	m.domainChecks.WithLabelValues(status).Inc()
}

func (m *OnboardingMetrics) ObserveCompletion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

func (m *OnboardingMetrics) ObserveOperationLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.opLatency.WithLabelValues(operation).Observe(seconds)
}
