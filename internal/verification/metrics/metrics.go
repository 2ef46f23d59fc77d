package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification flow. All methods are
// safe on a nil receiver so components can run without metrics in tests.
type Metrics struct {
	// Scan cycles by applied transition: accept, retry, escalate, stale
	ScanCycles *prometheus.CounterVec

	// Cycles the scheduler skipped: in_flight, not_ready
	CyclesSkipped *prometheus.CounterVec

	// Round trip of the recognition call
	RecognitionLatency prometheus.Histogram

	// Camera acquisition results by outcome code
	CameraAcquire *prometheus.CounterVec

	// Finished verifications by outcome and method
	Verifications *prometheus.CounterVec

	// Queue token requests by result
	TokenRequests *prometheus.CounterVec

	// Time from entering face-scan to leaving the flow
	VerificationDuration prometheus.Histogram
}

// New registers all verification metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ScanCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "patientflow_scan_cycles_total",
			Help: "Scan cycles by the transition they produced",
		}, []string{"transition"}),

		CyclesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "patientflow_scan_cycles_skipped_total",
			Help: "Scan cycles skipped by the scheduler",
		}, []string{"reason"}),

		RecognitionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "patientflow_recognition_duration_seconds",
			Help:    "Duration of recognition service calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}),

		CameraAcquire: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "patientflow_camera_acquire_total",
			Help: "Camera acquisition attempts by result",
		}, []string{"result"}),

		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "patientflow_verifications_total",
			Help: "Finished verification sessions by outcome and method",
		}, []string{"outcome", "method"}),

		TokenRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "patientflow_queue_token_requests_total",
			Help: "Queue token requests by result",
		}, []string{"result"}),

		VerificationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "patientflow_verification_duration_seconds",
			Help:    "Time spent in automatic face-scan before leaving it",
			Buckets: []float64{1, 3, 6, 10, 20, 30, 45, 60, 90},
		}),
	}
}

func (m *Metrics) IncScanCycle(transition string) {
	if m != nil {
		m.ScanCycles.WithLabelValues(transition).Inc()
	}
}

func (m *Metrics) IncCycleSkipped(reason string) {
	if m != nil {
		m.CyclesSkipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveRecognitionLatency(d time.Duration) {
	if m != nil {
		m.RecognitionLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncCameraAcquire(result string) {
	if m != nil {
		m.CameraAcquire.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncVerification(outcome, method string) {
	if m != nil {
		m.Verifications.WithLabelValues(outcome, method).Inc()
	}
}

func (m *Metrics) IncTokenRequest(result string) {
	if m != nil {
		m.TokenRequests.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveVerificationDuration(d time.Duration) {
	if m != nil {
		m.VerificationDuration.Observe(d.Seconds())
	}
}
