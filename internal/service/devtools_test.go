package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/meter"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"go.uber.org/zap"
)

func TestDevPutDevice(t *testing.T) {
	devices := &mockDevices{}
	svc := service.NewDevToolsService(devices, &mockHistory{}, time.UTC, zap.NewNop())

	resp, err := svc.PutDevice(context.Background(), "meter-1", map[string]any{"Contact Number": "0917", "kwh": 42})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !resp.Success || resp.Device.ID != "meter-1" || resp.Message != "Device meter-1 now reads 42.00 kWh" {
		t.Errorf("unexpected response %+v", resp)
	}
	if _, ok := devices.put["meter-1"]; !ok {
		t.Error("device was not written")
	}
}

func TestDevPutDevice_Invalid(t *testing.T) {
	svc := service.NewDevToolsService(&mockDevices{}, &mockHistory{}, time.UTC, zap.NewNop())

	cases := map[string]struct {
		id  string
		raw map[string]any
	}{
		"empty id":   {"", map[string]any{"kwh": 1}},
		"nested id":  {"a/b", map[string]any{"kwh": 1}},
		"empty body": {"m1", nil},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.PutDevice(context.Background(), c.id, c.raw)
			var ve *domain.ErrValidation
			if !errors.As(err, &ve) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDevAddHistory_DefaultsDate(t *testing.T) {
	history := &mockHistory{}
	svc := service.NewDevToolsService(&mockDevices{}, history, time.UTC, zap.NewNop())

	resp, err := svc.AddHistory(context.Background(), "uid-1", &domain.DevHistoryRequest{Usage: 3.5, Cost: 43.75})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Key != "hist-key-1" || len(history.appended) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := history.appended[0].Date; got != meter.KeysFor(time.Now(), time.UTC).Today {
		t.Errorf("expected today's date, got %s", got)
	}
}

func TestDevAddHistory_Negative(t *testing.T) {
	svc := service.NewDevToolsService(&mockDevices{}, &mockHistory{}, time.UTC, zap.NewNop())

	if _, err := svc.AddHistory(context.Background(), "uid-1", &domain.DevHistoryRequest{Usage: -1}); err == nil {
		t.Fatal("expected error, got nil")
	}
}
