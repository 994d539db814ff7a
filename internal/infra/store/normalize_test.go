package store_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/infra/store"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func rawDevice(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	dec := json.NewDecoder(stringsReader(s))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestSelectContact_Precedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"contact number wins", `{"Contact Number":"0917","phone":"0918","contactNumber":"0919"}`, "0917"},
		{"phone when contact number empty", `{"Contact Number":"","phone":"0918"}`, "0918"},
		{"contactNumber when others null", `{"Contact Number":null,"phone":null,"contactNumber":"0919"}`, "0919"},
		{"zero is not truthy", `{"Contact Number":0,"phone":"0918"}`, "0918"},
		{"false is not truthy", `{"phone":false,"contactNumber":"0919"}`, "0919"},
		{"device key fallback", `{"kwh":10}`, "1001"},
		{"numbers are stringified", `{"phone":9171234567}`, "9171234567"},
		{"whitespace string is selected", `{"Contact Number":"  ","phone":"0918"}`, "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := store.SelectContact("1001", rawDevice(t, tt.raw))
			if got != tt.want {
				t.Errorf("SelectContact = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeDevice_Defaults(t *testing.T) {
	d := store.NormalizeDevice("1001", map[string]any{}, fixedNow)

	if d.KWh != 0 || d.Price != 12.50 {
		t.Errorf("expected kwh 0 and price 12.50, got %v %v", d.KWh, d.Price)
	}
	if d.Name != "Device 1001" || d.Address != "Unknown Location" {
		t.Errorf("unexpected name/address %q %q", d.Name, d.Address)
	}
	if d.Contact != "1001" {
		t.Errorf("expected contact fallback to key, got %q", d.Contact)
	}
	if d.Timestamp != fixedNow.UnixMilli() {
		t.Errorf("expected timestamp now, got %d", d.Timestamp)
	}
}

func TestNormalizeDevice_Fields(t *testing.T) {
	raw := rawDevice(t, `{
		"Contact Number": " 09171234567 ",
		"kwhr": "105.5",
		"price": 11,
		"name": "Kitchen",
		"Address": "Quezon City",
		"timestamp": 1710460800000
	}`)
	d := store.NormalizeDevice("1001", raw, fixedNow)

	if d.Contact != "09171234567" {
		t.Errorf("contact = %q", d.Contact)
	}
	if d.KWh != 105.5 {
		t.Errorf("kwh = %v", d.KWh)
	}
	if d.Price != 11 {
		t.Errorf("price = %v", d.Price)
	}
	if d.Name != "Kitchen" || d.Address != "Quezon City" {
		t.Errorf("name/address = %q %q", d.Name, d.Address)
	}
	if d.Timestamp != 1710460800000 {
		t.Errorf("timestamp = %d", d.Timestamp)
	}
}

func TestNormalizeDevice_SelectedButUnusable(t *testing.T) {
	// kwh is truthy so kwhr is never consulted; the unparseable value is 0.
	raw := rawDevice(t, `{"kwh":"n/a","kwhr":50,"Price":0,"price":9}`)
	d := store.NormalizeDevice("7", raw, fixedNow)

	if d.KWh != 0 {
		t.Errorf("expected kwh 0, got %v", d.KWh)
	}
	if d.Price != 9 {
		t.Errorf("expected zero Price to fall through to price, got %v", d.Price)
	}
}

func TestParseLeadingFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{"12.5kWh", 12.5},
		{"abc", 0},
		{nil, 0},
		{json.Number("3.25"), 3.25},
		{" 7 ", 7},
	}
	for _, tt := range tests {
		if got := store.ParseLeadingFloat(tt.in); got != tt.want {
			t.Errorf("ParseLeadingFloat(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
