package domain

// TrendWindowDays is the fixed length of the trends window.
const TrendWindowDays = 7

// NoTrendData is shown for peak/low when no day has positive usage.
const NoTrendData = "No data"

// TrendDay is one day of the 7-day window, oldest first.
type TrendDay struct {
	Label string  `json:"label"`
	Date  string  `json:"date"`
	Usage float64 `json:"usage"`
}

// TrendStats is computed over days with usage > 0 only.
type TrendStats struct {
	Average      float64   `json:"average"`
	Total        float64   `json:"total"`
	Peak         *TrendDay `json:"peak,omitempty"`
	Low          *TrendDay `json:"low,omitempty"`
	AverageLabel string    `json:"averageLabel"`
	PeakLabel    string    `json:"peakLabel"`
	LowLabel     string    `json:"lowLabel"`
	TotalLabel   string    `json:"totalLabel"`
}

// ChartBar is one bar of the consumption chart. Height is a percentage of
// the chart area.
type ChartBar struct {
	Label  string  `json:"label"`
	Value  string  `json:"value"`
	Height float64 `json:"height"`
}

// ChartPoint is a polyline vertex in a 100×100 viewBox.
type ChartPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Chart is the render-ready geometry of the trends chart.
type Chart struct {
	Max    float64      `json:"max"`
	Min    float64      `json:"min"`
	YAxis  []string     `json:"yAxis"`
	Bars   []ChartBar   `json:"bars"`
	Points []ChartPoint `json:"points"`
}

// TrendReport is returned by GET /v1/trends.
type TrendReport struct {
	Days        []TrendDay `json:"days"`
	Stats       TrendStats `json:"stats"`
	Chart       Chart      `json:"chart"`
	Degraded    bool       `json:"degraded"`
	GeneratedAt string     `json:"generatedAt"`
}

// HistoryEntry is one row of the usage history list. Values are
// pre-formatted to 2 decimals.
type HistoryEntry struct {
	Date  string `json:"date"`
	Usage string `json:"usage"`
	Cost  string `json:"cost"`
}

// HistoryLimit caps the usage history list.
const HistoryLimit = 7

// HistoryRecord is one item of history/<uid> as written by the external
// producer. Date may be empty when only Timestamp is set.
type HistoryRecord struct {
	Key       string  `json:"-"`
	Date      string  `json:"date,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Usage     float64 `json:"usage"`
	Cost      float64 `json:"cost"`
}
