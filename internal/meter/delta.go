package meter

import (
	"math"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
)

// Date layouts of checkpoint keys.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// DayKeys are the checkpoint keys for one computation.
type DayKeys struct {
	Today     string
	Yesterday string
	Month     string
}

// KeysFor derives the keys from calendar dates in loc. Yesterday is the
// previous calendar day, so month, year and DST boundaries are handled.
func KeysFor(now time.Time, loc *time.Location) DayKeys {
	t := now.In(loc)
	return DayKeys{
		Today:     t.Format(DateLayout),
		Yesterday: t.AddDate(0, 0, -1).Format(DateLayout),
		Month:     t.Format(MonthLayout),
	}
}

// ComputeDelta derives today's and the month's usage from the current
// cumulative reading. yesterday and monthStart are nil when absent. The
// returned writes are in execution order: month start (only when absent),
// today's checkpoint, today's usage.
func ComputeDelta(current float64, keys DayKeys, yesterday, monthStart *domain.Checkpoint) domain.UsageDelta {
	d := domain.UsageDelta{
		Today:     keys.Today,
		Yesterday: keys.Yesterday,
		Month:     keys.Month,
	}

	if yesterday != nil {
		d.TodayUsage = math.Max(0, current-yesterday.Reading)
	} else {
		d.TodayUsage = domain.DefaultFirstDayUsage
		d.FirstDay = true
	}

	if monthStart != nil {
		d.MonthUsage = math.Max(0, current-monthStart.Reading)
	} else {
		d.MonthUsage = d.TodayUsage
		d.MonthStarted = true
		d.Writes = append(d.Writes, domain.UsageWrite{Kind: domain.WriteMonthStart, Key: keys.Month, Value: current})
	}

	d.Writes = append(d.Writes,
		domain.UsageWrite{Kind: domain.WriteDailyCheckpoint, Key: keys.Today, Value: current},
		domain.UsageWrite{Kind: domain.WriteDailyUsage, Key: keys.Today, Value: d.TodayUsage},
	)
	return d
}
