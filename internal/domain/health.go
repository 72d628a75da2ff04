package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// PresenceMetrics is returned by GET /v1/metrics/presence.
type PresenceMetrics struct {
	CheckInsAccepted     int64   `json:"checkInsAccepted"`
	CheckInsRejected     int64   `json:"checkInsRejected"`
	CheckOutsAccepted    int64   `json:"checkOutsAccepted"`
	CheckOutsRejected    int64   `json:"checkOutsRejected"`
	GeofenceRejections   int64   `json:"geofenceRejections"`
	CriticalStressEvents int64   `json:"criticalStressEvents"`
	Cancellations        int64   `json:"cancellations"`
	LastMinuteRate       float64 `json:"lastMinuteRate"`
	CacheHitRate         float64 `json:"cacheHitRate"`
	Period               string  `json:"period"`
}

// SeedPendingResponse is returned by POST /v1/orgs/{orgId}/attendance/pending.
type SeedPendingResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}
