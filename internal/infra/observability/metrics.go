package observability

import (
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics of the presence service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration  *prometheus.HistogramVec
	checkIns           *prometheus.CounterVec
	checkOuts          *prometheus.CounterVec
	geofenceRejections *prometheus.CounterVec
	stressScore        prometheus.Histogram
	stressLevels       *prometheus.CounterVec
	cancellations      *prometheus.CounterVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "presenca_operation_duration_seconds",
				Help:    "Duration of ledger and analytics operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		checkIns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presenca_check_ins_total",
				Help: "Check-in attempts by result.",
			},
			[]string{"result"},
		),
		checkOuts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presenca_check_outs_total",
				Help: "Check-out attempts by result.",
			},
			[]string{"result"},
		),
		geofenceRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presenca_geofence_rejections_total",
				Help: "Location fixes rejected for being outside the geofence tolerance.",
			},
			[]string{"operation"},
		),
		stressScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "presenca_stress_score",
				Help:    "Stress score of completed check-outs.",
				Buckets: []float64{10, 20, 36, 45, 58, 66, 75, 85, 100},
			},
		),
		stressLevels: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presenca_stress_risk_level_total",
				Help: "Completed check-outs by stress risk level.",
			},
			[]string{"level"},
		),
		cancellations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presenca_cancellations_total",
				Help: "Shift cancellations recorded.",
			},
			[]string{"last_minute"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presenca_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presenca_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presenca_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordOperationDuration records the duration of an operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrCheckIn counts a check-in attempt.
func (m *Metrics) IncrCheckIn(result string) {
	m.checkIns.WithLabelValues(result).Inc()
}

// IncrCheckOut counts a check-out attempt.
func (m *Metrics) IncrCheckOut(result string) {
	m.checkOuts.WithLabelValues(result).Inc()
}

// IncrGeofenceRejection counts a fix outside the geofence.
func (m *Metrics) IncrGeofenceRejection(operation string) {
	m.geofenceRejections.WithLabelValues(operation).Inc()
}

// ObserveStress records the score and band of a completed check-out.
func (m *Metrics) ObserveStress(score int, level domain.RiskLevel) {
	m.stressScore.Observe(float64(score))
	m.stressLevels.WithLabelValues(string(level)).Inc()
}

// IncrCancellation counts a recorded cancellation.
func (m *Metrics) IncrCancellation(lastMinute bool) {
	label := "false"
	if lastMinute {
		label = "true"
	}
	m.cancellations.WithLabelValues(label).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// Snapshot returns the counters suitable for GET /v1/metrics/presence.
func (m *Metrics) Snapshot() *domain.PresenceMetrics {
	// Prometheus counters expose cumulative values.
	cancelled := getCounterValue(m.cancellations, "true") + getCounterValue(m.cancellations, "false")
	lastMinute := getCounterValue(m.cancellations, "true")
	hits := getCounterValue(m.cacheHits, "analytics")
	misses := getCounterValue(m.cacheMisses, "analytics")

	lastMinuteRate := float64(0)
	if cancelled > 0 {
		lastMinuteRate = lastMinute / cancelled
	}
	cacheHitRate := float64(0)
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	rejectedIn := int64(0)
	rejectedOut := int64(0)
	for _, result := range []string{"out_of_geofence", "conflict", "invalid"} {
		rejectedIn += int64(getCounterValue(m.checkIns, result))
		rejectedOut += int64(getCounterValue(m.checkOuts, result))
	}

	return &domain.PresenceMetrics{
		CheckInsAccepted:     int64(getCounterValue(m.checkIns, "accepted")),
		CheckInsRejected:     rejectedIn,
		CheckOutsAccepted:    int64(getCounterValue(m.checkOuts, "accepted")),
		CheckOutsRejected:    rejectedOut,
		GeofenceRejections:   int64(getCounterValue(m.geofenceRejections, "check_in") + getCounterValue(m.geofenceRejections, "check_out")),
		CriticalStressEvents: int64(getCounterValue(m.stressLevels, string(domain.RiskCritical))),
		Cancellations:        int64(cancelled),
		LastMinuteRate:       lastMinuteRate,
		CacheHitRate:         cacheHitRate,
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
