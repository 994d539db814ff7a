package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual backend.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// UsageMetrics is returned by GET /v1/metrics/summary.
type UsageMetrics struct {
	UsageComputations   int64   `json:"usageComputations"`
	UsageFailures       int64   `json:"usageFailures"`
	DevicesMatched      int64   `json:"devicesMatched"`
	DevicesUnmatched    int64   `json:"devicesUnmatched"`
	AmbiguousMatches    int64   `json:"ambiguousMatches"`
	PaymentsCompleted   int64   `json:"paymentsCompleted"`
	PaymentsRejected    int64   `json:"paymentsRejected"`
	AmountCollectedPHP  float64 `json:"amountCollectedPhp"`
	AlertsPublished     int64   `json:"alertsPublished"`
	ActiveSubscriptions int64   `json:"activeSubscriptions"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	StoreErrors         int64   `json:"storeErrors"`
	Period              string  `json:"period"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
