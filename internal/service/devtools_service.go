package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/meter"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var devTracer = otel.Tracer("service/devtools")

// ============================================================
// Dev Tools
// ============================================================

// DevToolsService stands in for the external telemetry and history writers
// in local setups.
type DevToolsService struct {
	devices port.DeviceRegistry
	history port.HistoryStore
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewDevToolsService creates a new dev tools service.
func NewDevToolsService(devices port.DeviceRegistry, history port.HistoryStore, loc *time.Location, logger *zap.Logger) *DevToolsService {
	if loc == nil {
		loc = time.UTC
	}
	return &DevToolsService{devices: devices, history: history, loc: loc, logger: logger, now: time.Now}
}

// PutDevice writes a registry record as the telemetry writer would. The
// record is stored as sent, in whatever schema the caller uses.
func (s *DevToolsService) PutDevice(ctx context.Context, id string, raw map[string]any) (*domain.DevDeviceResponse, error) {
	ctx, span := devTracer.Start(ctx, "DevToolsService.PutDevice")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/.#$[]") {
		return nil, &domain.ErrValidation{Field: "deviceId", Message: "invalid device id"}
	}
	if len(raw) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "device record is empty"}
	}

	d, err := s.devices.PutDevice(ctx, id, raw)
	if err != nil {
		return nil, err
	}

	s.logger.Info("DEV: device written",
		zap.String("device_id", id),
		zap.String("contact", d.Contact),
		zap.Float64("kwh", d.KWh),
	)
	return &domain.DevDeviceResponse{
		Success: true,
		Device:  *d,
		Message: fmt.Sprintf("Device %s now reads %s kWh", id, meter.Fixed(d.KWh, 2)),
	}, nil
}

// AddHistory appends a usage history item. Date defaults to today.
func (s *DevToolsService) AddHistory(ctx context.Context, uid string, req *domain.DevHistoryRequest) (*domain.DevHistoryResponse, error) {
	ctx, span := devTracer.Start(ctx, "DevToolsService.AddHistory")
	defer span.End()

	if strings.TrimSpace(uid) == "" {
		return nil, &domain.ErrValidation{Field: "uid", Message: "required"}
	}
	if req.Usage < 0 || req.Cost < 0 {
		return nil, &domain.ErrValidation{Field: "usage", Message: "usage and cost must not be negative"}
	}

	now := s.now()
	rec := domain.HistoryRecord{
		Date:      strings.TrimSpace(req.Date),
		Timestamp: now.UnixMilli(),
		Usage:     req.Usage,
		Cost:      req.Cost,
	}
	if rec.Date == "" {
		rec.Date = now.In(s.loc).Format(meter.DateLayout)
	}

	key, err := s.history.AppendHistory(ctx, uid, rec)
	if err != nil {
		return nil, err
	}

	s.logger.Info("DEV: history item added", zap.String("uid", uid), zap.String("key", key))
	return &domain.DevHistoryResponse{
		Success: true,
		Key:     key,
		Message: fmt.Sprintf("History item for %s added", rec.Date),
	}, nil
}
