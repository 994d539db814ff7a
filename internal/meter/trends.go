package meter

import (
	"sort"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
)

// BuildWeek returns the 7 days ending today in loc, oldest first, with
// usage overlaid from the stored daily records.
func BuildWeek(now time.Time, loc *time.Location, usage map[string]domain.DailyUsage) []domain.TrendDay {
	t := now.In(loc)
	days := make([]domain.TrendDay, 0, domain.TrendWindowDays)
	for i := domain.TrendWindowDays - 1; i >= 0; i-- {
		d := t.AddDate(0, 0, -i)
		day := domain.TrendDay{
			Label: d.Weekday().String()[:3],
			Date:  d.Format(DateLayout),
		}
		if rec, ok := usage[day.Date]; ok {
			day.Usage = rec.Usage
		}
		days = append(days, day)
	}
	return days
}

// ComputeStats computes average, peak and low over days with usage > 0.
// Ties resolve to the oldest day. Total is the sum of all days.
func ComputeStats(days []domain.TrendDay) domain.TrendStats {
	var st domain.TrendStats
	var positive []int
	for i, d := range days {
		st.Total += d.Usage
		if d.Usage > 0 {
			positive = append(positive, i)
		}
	}
	st.TotalLabel = Fixed(st.Total, 1) + " kWh"

	if len(positive) == 0 {
		st.Total = 0
		st.TotalLabel = Fixed(0, 1) + " kWh"
		st.AverageLabel = Fixed(0, 1) + " kWh"
		st.PeakLabel = domain.NoTrendData
		st.LowLabel = domain.NoTrendData
		return st
	}

	var sum float64
	peak, low := positive[0], positive[0]
	for _, i := range positive {
		sum += days[i].Usage
		if days[i].Usage > days[peak].Usage {
			peak = i
		}
		if days[i].Usage < days[low].Usage {
			low = i
		}
	}
	st.Average = sum / float64(len(positive))
	st.AverageLabel = Fixed(st.Average, 1) + " kWh"

	p, l := days[peak], days[low]
	st.Peak, st.Low = &p, &l
	st.PeakLabel = dayLabel(p)
	st.LowLabel = dayLabel(l)
	return st
}

func dayLabel(d domain.TrendDay) string {
	return d.Label + " (" + Fixed(d.Usage, 1) + " kWh)"
}

// BuildChart lays the days out in a 100×100 box. Bars span 10% to 90% of
// the height between the week's min and max.
func BuildChart(days []domain.TrendDay) domain.Chart {
	var c domain.Chart
	if len(days) == 0 {
		return c
	}

	c.Max, c.Min = days[0].Usage, days[0].Usage
	for _, d := range days[1:] {
		if d.Usage > c.Max {
			c.Max = d.Usage
		}
		if d.Usage < c.Min {
			c.Min = d.Usage
		}
	}
	rng := c.Max - c.Min
	if rng == 0 {
		rng = 1
	}

	c.YAxis = []string{Fixed(c.Max, 1), Fixed((c.Max+c.Min)/2, 1), Fixed(c.Min, 1)}
	n := len(days)
	for i, d := range days {
		height := (d.Usage-c.Min)/rng*80 + 10
		c.Bars = append(c.Bars, domain.ChartBar{Label: d.Label, Value: Fixed(d.Usage, 1), Height: height})

		x := 0.0
		if n > 1 {
			x = float64(i) / float64(n-1) * 100
		}
		c.Points = append(c.Points, domain.ChartPoint{X: x, Y: 100 - height})
	}
	return c
}

// BuildHistory formats history items newest first, at most HistoryLimit.
// Items without a date use their timestamp's calendar date in loc.
func BuildHistory(records []domain.HistoryRecord, loc *time.Location) []domain.HistoryEntry {
	type row struct {
		entry domain.HistoryEntry
		at    time.Time
		ok    bool
	}

	rows := make([]row, 0, len(records))
	for _, rec := range records {
		date := rec.Date
		if date == "" && rec.Timestamp > 0 {
			date = time.UnixMilli(rec.Timestamp).In(loc).Format(DateLayout)
		}
		at, ok := parseHistoryDate(date, loc)
		rows = append(rows, row{
			entry: domain.HistoryEntry{Date: date, Usage: Fixed(rec.Usage, 2), Cost: Fixed(rec.Cost, 2)},
			at:    at,
			ok:    ok,
		})
	}

	// Unparseable dates sort last.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ok != rows[j].ok {
			return rows[i].ok
		}
		return rows[i].at.After(rows[j].at)
	})

	if len(rows) > domain.HistoryLimit {
		rows = rows[:domain.HistoryLimit]
	}
	out := make([]domain.HistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry
	}
	return out
}

var historyLayouts = []string{DateLayout, time.RFC3339, "1/2/2006", "2006/01/02"}

func parseHistoryDate(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range historyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
