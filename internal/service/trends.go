package service

import (
	"context"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/meter"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var trendsTracer = otel.Tracer("service/trends")

// TrendsService builds the 7-day trend report and the usage history card.
// Store failures degrade to zero days or an empty list.
type TrendsService struct {
	usage   port.UsageStore
	history port.HistoryStore
	loc     *time.Location
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewTrendsService creates a new trends service.
func NewTrendsService(usage port.UsageStore, history port.HistoryStore, loc *time.Location, metrics *observability.Metrics, logger *zap.Logger) *TrendsService {
	if loc == nil {
		loc = time.UTC
	}
	return &TrendsService{
		usage:   usage,
		history: history,
		loc:     loc,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Report — GET /v1/trends
func (s *TrendsService) Report(ctx context.Context, uid string) *domain.TrendReport {
	ctx, span := trendsTracer.Start(ctx, "TrendsService.Report")
	defer span.End()
	span.SetAttributes(attribute.String("uid", uid))

	now := s.now()
	degraded := false

	records, err := s.usage.ListDailyUsage(ctx, uid)
	if err != nil {
		degraded = true
		records = nil
		s.metrics.IncrStoreError("list_daily_usage")
		s.logger.Error("trend data unavailable", zap.String("uid", uid), zap.Error(err))
	}

	days := meter.BuildWeek(now, s.loc, records)
	return &domain.TrendReport{
		Days:        days,
		Stats:       meter.ComputeStats(days),
		Chart:       meter.BuildChart(days),
		Degraded:    degraded,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
}

// History — GET /v1/dashboard/history
func (s *TrendsService) History(ctx context.Context, uid string) []domain.HistoryEntry {
	ctx, span := trendsTracer.Start(ctx, "TrendsService.History")
	defer span.End()

	records, err := s.history.ListHistory(ctx, uid)
	if err != nil {
		s.metrics.IncrStoreError("list_history")
		s.logger.Error("usage history unavailable", zap.String("uid", uid), zap.Error(err))
		return []domain.HistoryEntry{}
	}
	return meter.BuildHistory(records, s.loc)
}
