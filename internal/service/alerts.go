package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var alertsTracer = otel.Tracer("service/alerts")

// AlertService stores the per-user usage alert threshold. The dashboard
// pipeline evaluates it.
type AlertService struct {
	store   port.AlertStore
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAlertService creates a new alert service.
func NewAlertService(store port.AlertStore, metrics *observability.Metrics, logger *zap.Logger) *AlertService {
	return &AlertService{store: store, metrics: metrics, logger: logger, now: time.Now}
}

// Get returns the stored alert or nil when none is set.
func (s *AlertService) Get(ctx context.Context, uid string) (*domain.UsageAlert, error) {
	ctx, span := alertsTracer.Start(ctx, "AlertService.Get")
	defer span.End()

	a, err := s.store.GetAlert(ctx, uid)
	if err != nil {
		s.metrics.IncrStoreError("get_alert")
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

// Set validates and stores the threshold. Active defaults to true.
func (s *AlertService) Set(ctx context.Context, uid string, req *domain.UsageAlertRequest) (*domain.UsageAlert, string, error) {
	ctx, span := alertsTracer.Start(ctx, "AlertService.Set")
	defer span.End()

	raw := strings.TrimSpace(req.Threshold)
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return nil, "", &domain.ErrValidation{Field: "threshold", Message: domain.MsgInvalidThreshold}
	}

	a := &domain.UsageAlert{
		UserID:    uid,
		Threshold: threshold,
		Active:    true,
		Timestamp: s.now().UnixMilli(),
	}
	if req.Active != nil {
		a.Active = *req.Active
	}

	if err := s.store.SaveAlert(ctx, uid, a); err != nil {
		s.metrics.IncrStoreError("save_alert")
		return nil, "", fmt.Errorf("save alert: %w", err)
	}

	s.logger.Info("usage alert saved",
		zap.String("uid", uid),
		zap.Float64("threshold", threshold),
		zap.Bool("active", a.Active),
	)
	msg := fmt.Sprintf("Usage alert set for %s kWh. You'll be notified when consumption exceeds this limit.", raw)
	return a, msg, nil
}
