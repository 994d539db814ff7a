package domain

// DefaultFirstDayUsage is reported as today's usage when no checkpoint
// exists for yesterday (first day of tracking).
const DefaultFirstDayUsage = 2.0

// Checkpoint is a cumulative meter reading persisted at
// meter_readings/<uid>/<date> or month_readings/<uid>/<month>.
type Checkpoint struct {
	Reading   float64 `json:"reading"`
	Timestamp int64   `json:"timestamp"`
}

// DailyUsage is persisted at daily_usage/<uid>/<date> and feeds the trends page.
type DailyUsage struct {
	Usage     float64 `json:"usage"`
	Timestamp int64   `json:"timestamp"`
}

// UsageWriteKind names an intended checkpoint write.
type UsageWriteKind string

const (
	WriteMonthStart      UsageWriteKind = "month-start"
	WriteDailyCheckpoint UsageWriteKind = "daily-checkpoint"
	WriteDailyUsage      UsageWriteKind = "daily-usage"
)

// UsageWrite is one write the delta engine wants performed. Key is a date
// (YYYY-MM-DD) or a month (YYYY-MM) depending on Kind.
type UsageWrite struct {
	Kind  UsageWriteKind `json:"kind"`
	Key   string         `json:"key"`
	Value float64        `json:"value"`
}

// UsageDelta is the pure result of the usage computation.
type UsageDelta struct {
	Today        string       `json:"today"`
	Yesterday    string       `json:"yesterday"`
	Month        string       `json:"month"`
	TodayUsage   float64      `json:"todayUsage"`
	MonthUsage   float64      `json:"monthUsage"`
	FirstDay     bool         `json:"firstDay"`
	MonthStarted bool         `json:"monthStarted"`
	Writes       []UsageWrite `json:"writes"`
}

// UsageSummary is the usage block of the dashboard.
type UsageSummary struct {
	TodayKWh    float64 `json:"todayKwh"`
	MonthKWh    float64 `json:"monthKwh"`
	Today       string  `json:"today"`
	Month       string  `json:"month"`
	Updated     bool    `json:"updated"`
	Status      string  `json:"status"`
	LastUpdated string  `json:"lastUpdated"`
}

// Usage summary statuses.
const (
	UsageStatusUpdated        = "updated"
	UsageStatusCouldNotUpdate = "could not update"
)
