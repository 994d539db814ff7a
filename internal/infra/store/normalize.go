package store

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
)

// Registry field names, in precedence order.
var (
	contactFields = []string{"Contact Number", "phone", "contactNumber"}
	kwhFields     = []string{"kwh", "kwhr"}
	priceFields   = []string{"Price", "price"}
	nameFields    = []string{"Name", "name"}
	addressFields = []string{"Address", "address"}
)

// NormalizeDevice maps a free-form registry record to the canonical Device.
// For each attribute the first truthy field wins, even if its value turns
// out to be unusable; later fields are not consulted.
func NormalizeDevice(id string, raw map[string]any, now time.Time) domain.Device {
	d := domain.Device{
		ID:        id,
		Contact:   strings.TrimSpace(SelectContact(id, raw)),
		KWh:       0,
		Price:     domain.DefaultPricePerKWh,
		Name:      fmt.Sprintf(domain.DefaultDeviceNameTmpl, id),
		Address:   domain.DefaultDeviceAddress,
		Timestamp: now.UnixMilli(),
	}

	if v, ok := firstTruthy(raw, kwhFields); ok {
		d.KWh = toNumber(v)
	}
	if v, ok := firstTruthy(raw, priceFields); ok {
		d.Price = toNumber(v)
	}
	if v, ok := firstTruthy(raw, nameFields); ok {
		d.Name = toString(v)
	}
	if v, ok := firstTruthy(raw, addressFields); ok {
		d.Address = toString(v)
	}
	if v, ok := firstTruthy(raw, []string{"timestamp"}); ok {
		if ts := toNumber(v); ts > 0 {
			d.Timestamp = int64(ts)
		}
	}
	return d
}

// SelectContact returns the selected contact candidate, untrimmed:
// "Contact Number", then phone, then contactNumber, then the device key.
func SelectContact(id string, raw map[string]any) string {
	if v, ok := firstTruthy(raw, contactFields); ok {
		return toString(v)
	}
	return id
}

func firstTruthy(raw map[string]any, fields []string) (any, bool) {
	for _, f := range fields {
		if v, ok := raw[f]; ok && truthy(v) {
			return v, true
		}
	}
	return nil, false
}

// truthy: present, not null, not "", not numeric 0 and not false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	return true
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return formatNumber(f)
		}
		return t.String()
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case map[string]any:
		return "[object Object]"
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = toString(e)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	if math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// toNumber converts like a strict numeric cast; unconvertible values are 0.
func toNumber(v any) float64 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		f, _ = t.Float64()
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case bool:
		if t {
			f = 1
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

var leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseLeadingFloat reads the numeric prefix of v ("12.5kWh" is 12.5) and
// returns 0 when there is none. Used for externally written history items.
func ParseLeadingFloat(v any) float64 {
	switch t := v.(type) {
	case nil, bool:
		return 0
	case string:
		m := leadingFloat.FindString(strings.TrimSpace(t))
		if m == "" {
			return 0
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return toNumber(v)
}
