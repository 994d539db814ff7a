package service_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/meter"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"
)

func meterDevice(id, contact string, kwh float64) domain.Device {
	return domain.Device{ID: id, Contact: contact, KWh: kwh, Price: 12.5, Name: "Device " + id}
}

func TestSnapshot_Connected(t *testing.T) {
	f := newDashboardFixture(" 09171234567 ", meterDevice("m1", "09171234567", 100))
	keys := meter.KeysFor(time.Now(), time.UTC)
	f.usage.daily[keys.Yesterday] = domain.Checkpoint{Reading: 95}
	f.usage.month[keys.Month] = domain.Checkpoint{Reading: 60}

	snap := f.svc.Snapshot(context.Background(), testUser)

	if snap.Status != domain.StatusConnected || snap.StatusText != "Live" {
		t.Fatalf("expected connected/Live, got %s/%s (%s)", snap.Status, snap.StatusText, snap.Message)
	}
	if snap.Device == nil || snap.Device.ID != "m1" {
		t.Fatalf("expected device m1, got %+v", snap.Device)
	}
	if snap.Consumption != "100.00" || snap.RateDisplay != "₱12.50" {
		t.Errorf("unexpected display values %q %q", snap.Consumption, snap.RateDisplay)
	}
	if snap.Bill.Amount != "1250.00" {
		t.Errorf("expected bill 1250.00, got %s", snap.Bill.Amount)
	}
	if snap.Usage.TodayKWh != 5 || snap.Usage.MonthKWh != 40 {
		t.Errorf("expected today 5 / month 40, got %v / %v", snap.Usage.TodayKWh, snap.Usage.MonthKWh)
	}
	if !snap.Usage.Updated || snap.Usage.Status != domain.UsageStatusUpdated {
		t.Errorf("expected updated usage, got %+v", snap.Usage)
	}

	wantWrites := []domain.UsageWriteKind{domain.WriteDailyCheckpoint, domain.WriteDailyUsage}
	if !reflect.DeepEqual(f.usage.writes, wantWrites) {
		t.Errorf("writes = %v, want %v", f.usage.writes, wantWrites)
	}
	if got := f.usage.daily[keys.Today].Reading; got != 100 {
		t.Errorf("today's checkpoint = %v, want 100", got)
	}
	if got := f.usage.usage[keys.Today].Usage; got != 5 {
		t.Errorf("today's usage record = %v, want 5", got)
	}
}

func TestSnapshot_FirstDayWritesMonthStartFirst(t *testing.T) {
	f := newDashboardFixture("0917", meterDevice("m1", "0917", 100))

	snap := f.svc.Snapshot(context.Background(), testUser)

	if snap.Usage.TodayKWh != domain.DefaultFirstDayUsage || snap.Usage.MonthKWh != domain.DefaultFirstDayUsage {
		t.Errorf("expected seed usage, got %+v", snap.Usage)
	}
	want := []domain.UsageWriteKind{domain.WriteMonthStart, domain.WriteDailyCheckpoint, domain.WriteDailyUsage}
	if !reflect.DeepEqual(f.usage.writes, want) {
		t.Errorf("writes = %v, want %v", f.usage.writes, want)
	}
}

func TestSnapshot_IdempotentSameDay(t *testing.T) {
	f := newDashboardFixture("0917", meterDevice("m1", "0917", 100))
	keys := meter.KeysFor(time.Now(), time.UTC)
	f.usage.daily[keys.Yesterday] = domain.Checkpoint{Reading: 97}

	first := f.svc.Snapshot(context.Background(), testUser)
	cp := f.usage.daily[keys.Today].Reading
	second := f.svc.Snapshot(context.Background(), testUser)

	if first.Usage.TodayKWh != second.Usage.TodayKWh {
		t.Errorf("today usage changed between runs: %v vs %v", first.Usage.TodayKWh, second.Usage.TodayKWh)
	}
	if f.usage.daily[keys.Today].Reading != cp {
		t.Errorf("checkpoint changed: %v vs %v", f.usage.daily[keys.Today].Reading, cp)
	}
}

func TestSnapshot_PhoneMissing(t *testing.T) {
	f := newDashboardFixture("   ", meterDevice("m1", "0917", 100))

	snap := f.svc.Snapshot(context.Background(), testUser)

	if snap.Status != domain.StatusNoData || snap.Message != domain.MsgPhoneMissing {
		t.Errorf("expected phone missing, got %s %q", snap.Status, snap.Message)
	}
	if snap.Bill.Amount != "0.00" || snap.Usage.LastUpdated != "Error loading data" {
		t.Errorf("expected zeroed snapshot, got %+v", snap)
	}
	if len(f.usage.writes) != 0 {
		t.Errorf("expected no writes, got %v", f.usage.writes)
	}
}

func TestSnapshot_NoProfile(t *testing.T) {
	f := newDashboardFixture("")
	f.profiles.profile = nil

	snap := f.svc.Snapshot(context.Background(), testUser)
	if snap.Message != domain.MsgPhoneMissing {
		t.Errorf("expected phone missing, got %q", snap.Message)
	}
}

func TestSnapshot_NoMatchingDevice(t *testing.T) {
	f := newDashboardFixture("0999", meterDevice("m1", "0917", 100))

	snap := f.svc.Snapshot(context.Background(), testUser)

	if snap.Status != domain.StatusNoData {
		t.Fatalf("expected no-data, got %s", snap.Status)
	}
	if !strings.Contains(snap.Message, "No device found matching your phone number: 0999.") {
		t.Errorf("unexpected message %q", snap.Message)
	}
}

func TestSnapshot_EmptyRegistry(t *testing.T) {
	f := newDashboardFixture("0917")

	snap := f.svc.Snapshot(context.Background(), testUser)
	if snap.Message != domain.MsgNoDeviceData {
		t.Errorf("expected %q, got %q", domain.MsgNoDeviceData, snap.Message)
	}
}

func TestSnapshot_RegistryError(t *testing.T) {
	f := newDashboardFixture("0917")
	f.devices.err = errors.New("permission denied")

	snap := f.svc.Snapshot(context.Background(), testUser)

	if snap.Status != domain.StatusError || snap.StatusText != "Error" {
		t.Fatalf("expected error status, got %s", snap.Status)
	}
	if snap.Message != "Failed to connect to device database: permission denied" {
		t.Errorf("unexpected message %q", snap.Message)
	}
}

func TestSnapshot_ProfileError(t *testing.T) {
	f := newDashboardFixture("0917")
	f.profiles.err = errors.New("unreachable")

	snap := f.svc.Snapshot(context.Background(), testUser)
	if snap.Status != domain.StatusError || !strings.HasPrefix(snap.Message, "Failed to load user profile: ") {
		t.Errorf("expected profile failure, got %s %q", snap.Status, snap.Message)
	}
}

func TestSnapshot_UsageFailureDegrades(t *testing.T) {
	f := newDashboardFixture("0917", meterDevice("m1", "0917", 100))
	f.usage.readErr = errors.New("read failed")

	snap := f.svc.Snapshot(context.Background(), testUser)

	if snap.Status != domain.StatusConnected {
		t.Fatalf("device is still connected, got %s", snap.Status)
	}
	if snap.Bill.Amount != "1250.00" {
		t.Errorf("bill should not depend on usage, got %s", snap.Bill.Amount)
	}
	if snap.Usage.Updated || snap.Usage.Status != domain.UsageStatusCouldNotUpdate || snap.Usage.TodayKWh != 0 {
		t.Errorf("expected degraded usage, got %+v", snap.Usage)
	}
	if snap.Usage.LastUpdated == "" {
		t.Error("expected update timestamp on degraded usage")
	}
}

func TestSnapshot_WriteFailureDegrades(t *testing.T) {
	f := newDashboardFixture("0917", meterDevice("m1", "0917", 100))
	f.usage.writeErr = errors.New("write failed")

	snap := f.svc.Snapshot(context.Background(), testUser)
	if snap.Usage.Status != domain.UsageStatusCouldNotUpdate || snap.Usage.Today != "0.00" {
		t.Errorf("expected degraded usage, got %+v", snap.Usage)
	}
}

func TestSnapshot_AmbiguousDevices(t *testing.T) {
	f := newDashboardFixture("0917",
		meterDevice("2", "0917", 10),
		meterDevice("10", "0917", 20),
		meterDevice("meter-x", "0917", 30),
	)

	snap := f.svc.Snapshot(context.Background(), testUser)

	if snap.Device.ID != "2" {
		t.Errorf("expected first match to win, got %s", snap.Device.ID)
	}
	if !reflect.DeepEqual(snap.Ambiguous, []string{"10", "meter-x"}) {
		t.Errorf("ambiguous = %v", snap.Ambiguous)
	}
	if got := f.metrics.GetUsageSnapshot().AmbiguousMatches; got != 1 {
		t.Errorf("expected 1 ambiguous match counted, got %d", got)
	}
}

func TestSnapshot_AlertPublishedOncePerDay(t *testing.T) {
	f := newDashboardFixture("0917", meterDevice("m1", "0917", 100))
	keys := meter.KeysFor(time.Now(), time.UTC)
	f.usage.daily[keys.Yesterday] = domain.Checkpoint{Reading: 90}
	f.alerts.alert = &domain.UsageAlert{Threshold: 5, Active: true}

	f.svc.Snapshot(context.Background(), testUser)
	f.svc.Snapshot(context.Background(), testUser)

	if got := f.publisher.count(); got != 1 {
		t.Fatalf("expected 1 alert, got %d", got)
	}
	ev := f.publisher.events[0]
	if ev.TodayUsage != 10 || ev.Threshold != 5 || ev.DeviceID != "m1" || ev.Date != keys.Today {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestSnapshot_AlertBelowThresholdOrInactive(t *testing.T) {
	f := newDashboardFixture("0917", meterDevice("m1", "0917", 100))
	keys := meter.KeysFor(time.Now(), time.UTC)
	f.usage.daily[keys.Yesterday] = domain.Checkpoint{Reading: 90}

	f.alerts.alert = &domain.UsageAlert{Threshold: 50, Active: true}
	f.svc.Snapshot(context.Background(), testUser)
	f.alerts.alert = &domain.UsageAlert{Threshold: 1, Active: false}
	f.svc.Snapshot(context.Background(), testUser)

	if got := f.publisher.count(); got != 0 {
		t.Errorf("expected no alerts, got %d", got)
	}
}

func TestLastSnapshot_UsesCache(t *testing.T) {
	f := newDashboardFixture("0917", meterDevice("m1", "0917", 100))

	first := f.svc.Snapshot(context.Background(), testUser)
	f.devices.devices = []domain.Device{meterDevice("m1", "0917", 500)}

	last := f.svc.LastSnapshot(context.Background(), testUser)
	if last.Consumption != first.Consumption {
		t.Errorf("expected cached snapshot %s, got %s", first.Consumption, last.Consumption)
	}
}

func TestStream_EmitsPerChange(t *testing.T) {
	f := newDashboardFixture("0917")
	f.devices.updates = make(chan port.DeviceSnapshot, 2)
	f.devices.updates <- port.DeviceSnapshot{Devices: []domain.Device{meterDevice("m1", "0917", 100)}}
	f.devices.updates <- port.DeviceSnapshot{Devices: []domain.Device{meterDevice("m1", "0917", 101)}}
	close(f.devices.updates)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []domain.DashboardSnapshot
	for snap := range f.svc.Stream(ctx, testUser) {
		got = append(got, snap)
	}

	if len(got) != 3 {
		t.Fatalf("expected connecting + 2 updates, got %d", len(got))
	}
	if got[0].Status != domain.StatusConnecting || got[0].StatusText != "Connecting..." {
		t.Errorf("first snapshot should be connecting, got %s", got[0].Status)
	}
	if got[1].Consumption != "100.00" || got[2].Consumption != "101.00" {
		t.Errorf("unexpected consumptions %s, %s", got[1].Consumption, got[2].Consumption)
	}
}

func TestStream_SubscriptionErrorIsTerminal(t *testing.T) {
	f := newDashboardFixture("0917")
	f.devices.updates = make(chan port.DeviceSnapshot, 2)
	f.devices.updates <- port.DeviceSnapshot{Err: errors.New("socket closed")}
	f.devices.updates <- port.DeviceSnapshot{Devices: []domain.Device{meterDevice("m1", "0917", 100)}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []domain.DashboardSnapshot
	for snap := range f.svc.Stream(ctx, testUser) {
		got = append(got, snap)
	}

	if len(got) != 2 || got[1].Status != domain.StatusError {
		t.Fatalf("expected connecting then error, got %+v", got)
	}
}

func TestStream_PhoneMissingDoesNotSubscribe(t *testing.T) {
	f := newDashboardFixture("")
	f.devices.watchErr = errors.New("must not be called")

	var got []domain.DashboardSnapshot
	for snap := range f.svc.Stream(context.Background(), testUser) {
		got = append(got, snap)
	}
	if len(got) != 2 || got[1].Message != domain.MsgPhoneMissing {
		t.Fatalf("expected connecting then phone missing, got %+v", got)
	}
}

func TestStream_CancelClosesChannel(t *testing.T) {
	f := newDashboardFixture("0917")
	f.devices.updates = make(chan port.DeviceSnapshot)

	ctx, cancel := context.WithCancel(context.Background())
	ch := f.svc.Stream(ctx, testUser)
	<-ch // connecting
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestCurrentBill_DoesNotWriteUsage(t *testing.T) {
	f := newDashboardFixture("0917", meterDevice("m1", "0917", 100))

	bill, err := f.svc.CurrentBill(context.Background(), testUser)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bill.Amount != "1250.00" {
		t.Errorf("expected bill 1250.00, got %s", bill.Amount)
	}
	if len(f.usage.writes) != 0 {
		t.Errorf("expected no usage writes, got %v", f.usage.writes)
	}
}

func TestCurrentBill_Unresolved(t *testing.T) {
	tests := map[string]*dashboardFixture{
		"no phone":       newDashboardFixture("", meterDevice("m1", "0917", 100)),
		"no device":      newDashboardFixture("0918", meterDevice("m1", "0917", 100)),
		"empty registry": newDashboardFixture("0917"),
	}

	for name, f := range tests {
		t.Run(name, func(t *testing.T) {
			bill, err := f.svc.CurrentBill(context.Background(), testUser)
			if err != nil || bill.Amount != "0.00" {
				t.Errorf("expected zero bill, got %q %v", bill.Amount, err)
			}
		})
	}
}

func TestCurrentBill_RegistryError(t *testing.T) {
	f := newDashboardFixture("0917")
	f.devices.err = errors.New("permission denied")

	_, err := f.svc.CurrentBill(context.Background(), testUser)

	var ee *domain.ErrExternalService
	if !errors.As(err, &ee) || ee.Service != "devices" {
		t.Fatalf("expected devices error, got %v", err)
	}
}
