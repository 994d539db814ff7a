package domain

// ============================================================
// Dev Tools — request/response types for testing helpers
// ============================================================

// DevDeviceResponse is returned by PUT /v1/dev/devices/{deviceId}. Device
// is the record as the dashboard will see it after normalization.
type DevDeviceResponse struct {
	Success bool   `json:"success"`
	Device  Device `json:"device"`
	Message string `json:"message"`
}

// DevHistoryRequest is the body of POST /v1/dev/history/{uid}.
type DevHistoryRequest struct {
	Date  string  `json:"date"`
	Usage float64 `json:"usage"`
	Cost  float64 `json:"cost"`
}

// DevHistoryResponse is returned by POST /v1/dev/history/{uid}.
type DevHistoryResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
	Message string `json:"message"`
}
