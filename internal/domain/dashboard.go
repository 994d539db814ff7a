package domain

// ConnectionStatus drives the dashboard status indicator.
type ConnectionStatus string

const (
	StatusConnecting ConnectionStatus = "connecting"
	StatusConnected  ConnectionStatus = "connected"
	StatusNoData     ConnectionStatus = "no-data"
	StatusError      ConnectionStatus = "error"
)

// Text is the indicator label shown next to the status dot.
func (s ConnectionStatus) Text() string {
	switch s {
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Live"
	case StatusNoData:
		return "No Data"
	case StatusError:
		return "Error"
	}
	return ""
}

// DashboardSnapshot is one immutable rendering of the dashboard. The live
// stream emits a new snapshot on every device-registry change.
type DashboardSnapshot struct {
	Status      ConnectionStatus `json:"status"`
	StatusText  string           `json:"statusText"`
	Message     string           `json:"message,omitempty"`
	Device      *Device          `json:"device,omitempty"`
	Consumption string           `json:"consumption"`
	RateDisplay string           `json:"rate"`
	Bill        Bill             `json:"bill"`
	Usage       UsageSummary     `json:"usage"`
	Ambiguous   []string         `json:"ambiguousDevices,omitempty"`
	GeneratedAt string           `json:"generatedAt"`
}

// ============================================================
// Usage alerts
// ============================================================

// MsgInvalidThreshold is returned for non-positive or non-numeric thresholds.
const MsgInvalidThreshold = "Please enter a valid positive number for the threshold."

// UsageAlert is stored at alerts/<uid>.
type UsageAlert struct {
	UserID    string  `json:"userId"`
	Threshold float64 `json:"threshold"`
	Active    bool    `json:"active"`
	Timestamp int64   `json:"timestamp"`
}

// UsageAlertRequest is the body of PUT /v1/alerts. Threshold is accepted as
// text so that "abc" and "" can be rejected with the user-facing message.
type UsageAlertRequest struct {
	Threshold string `json:"threshold"`
	Active    *bool  `json:"active,omitempty"`
}

// AlertEvent is published when today's usage crosses the threshold.
type AlertEvent struct {
	UserID     string  `json:"userId"`
	Email      string  `json:"email,omitempty"`
	DeviceID   string  `json:"deviceId"`
	Date       string  `json:"date"`
	TodayUsage float64 `json:"todayUsage"`
	Threshold  float64 `json:"threshold"`
	Timestamp  int64   `json:"timestamp"`
}
