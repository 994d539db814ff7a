package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/meter"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashboardTracer = otel.Tracer("service/dashboard")

const lastUpdatedError = "Error loading data"

// ProfileLoader returns the stored profile or nil when none exists.
type ProfileLoader interface {
	Load(ctx context.Context, uid string) (*domain.Profile, error)
}

// AlertDebouncer records that an alert fired, reporting false when it
// already had.
type AlertDebouncer interface {
	SetIfAbsent(key string, value bool) bool
}

// DashboardDeps groups the collaborators of the dashboard pipeline.
type DashboardDeps struct {
	Profiles  ProfileLoader
	Devices   port.DeviceRegistry
	Usage     port.UsageStore
	Alerts    port.AlertStore
	Publisher port.AlertPublisher
	Cache     port.Cache[any]
	Fired     AlertDebouncer
	Location  *time.Location
}

// DashboardService runs the pipeline profile → device resolution → usage
// delta → effect executor → bill, either once or per registry change.
type DashboardService struct {
	profiles  ProfileLoader
	devices   port.DeviceRegistry
	usage     port.UsageStore
	alerts    port.AlertStore
	publisher port.AlertPublisher
	cache     port.Cache[any]
	fired     AlertDebouncer
	loc       *time.Location
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(deps DashboardDeps, metrics *observability.Metrics, logger *zap.Logger) *DashboardService {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		profiles:  deps.Profiles,
		devices:   deps.Devices,
		usage:     deps.Usage,
		alerts:    deps.Alerts,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		fired:     deps.Fired,
		loc:       loc,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func snapshotCacheKey(uid string) string { return fmt.Sprintf("snapshot:%s", uid) }

// ============================================================
// One-shot — GET /v1/dashboard
// ============================================================

// Snapshot computes the dashboard once against the current registry.
// Failures degrade to an error or no-data snapshot; they are never returned.
func (s *DashboardService) Snapshot(ctx context.Context, user *domain.User) *domain.DashboardSnapshot {
	ctx, span := dashboardTracer.Start(ctx, "DashboardService.Snapshot")
	defer span.End()
	span.SetAttributes(attribute.String("uid", user.ID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("dashboard", time.Since(start))
	}()

	phone, snap := s.profilePhone(ctx, user)
	if snap != nil {
		return snap
	}

	devices, err := s.devices.ListDevices(ctx)
	if err != nil {
		return s.connectionError(user, err)
	}
	return s.process(ctx, user, phone, devices)
}

// LastSnapshot returns the most recent snapshot computed for the user, or
// computes one.
func (s *DashboardService) LastSnapshot(ctx context.Context, user *domain.User) *domain.DashboardSnapshot {
	if cached, ok := s.cache.Get(snapshotCacheKey(user.ID)); ok {
		if snap, ok := cached.(*domain.DashboardSnapshot); ok {
			s.metrics.IncrCacheHit("snapshot")
			return snap
		}
	}
	s.metrics.IncrCacheMiss("snapshot")
	return s.Snapshot(ctx, user)
}

// CurrentBill resolves the user's device and bills its reading without
// touching usage checkpoints. An unresolved device bills zero.
func (s *DashboardService) CurrentBill(ctx context.Context, user *domain.User) (domain.Bill, error) {
	ctx, span := dashboardTracer.Start(ctx, "DashboardService.CurrentBill")
	defer span.End()
	span.SetAttributes(attribute.String("uid", user.ID))

	profile, err := s.profiles.Load(ctx, user.ID)
	if err != nil {
		return domain.Bill{}, &domain.ErrExternalService{Service: "profile", Err: err}
	}
	if profile == nil || strings.TrimSpace(profile.Phone) == "" {
		return meter.ZeroBill(), nil
	}

	devices, err := s.devices.ListDevices(ctx)
	if err != nil {
		s.metrics.IncrStoreError("devices")
		return domain.Bill{}, &domain.ErrExternalService{Service: "devices", Err: err}
	}

	res := meter.ResolveDevice(strings.TrimSpace(profile.Phone), devices)
	if res.State != domain.ResolutionConnected {
		return meter.ZeroBill(), nil
	}
	return meter.ComputeBill(res.Device.KWh, res.Device.Price), nil
}

// ============================================================
// Live — GET /v1/dashboard/stream
// ============================================================

// Stream emits a connecting snapshot, then one snapshot per registry change
// until ctx is done. A missing phone, a profile failure or a subscription
// failure emits a final snapshot and closes the channel.
func (s *DashboardService) Stream(ctx context.Context, user *domain.User) <-chan domain.DashboardSnapshot {
	out := make(chan domain.DashboardSnapshot, 1)

	go func() {
		defer close(out)

		emit := func(snap *domain.DashboardSnapshot) bool {
			select {
			case out <- *snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(s.connecting()) {
			return
		}

		phone, snap := s.profilePhone(ctx, user)
		if snap != nil {
			emit(snap)
			return
		}

		updates, err := s.devices.WatchDevices(ctx)
		if err != nil {
			emit(s.connectionError(user, err))
			return
		}

		s.logger.Info("dashboard subscription opened", zap.String("uid", user.ID))
		defer s.logger.Info("dashboard subscription closed", zap.String("uid", user.ID))

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Err != nil {
					emit(s.connectionError(user, update.Err))
					return
				}
				if !emit(s.process(ctx, user, phone, update.Devices)) {
					return
				}
			}
		}
	}()

	return out
}

// ============================================================
// Pipeline
// ============================================================

// profilePhone returns the trimmed profile phone, or a terminal snapshot
// when the profile cannot be loaded or has no phone.
func (s *DashboardService) profilePhone(ctx context.Context, user *domain.User) (string, *domain.DashboardSnapshot) {
	profile, err := s.profiles.Load(ctx, user.ID)
	if err != nil {
		s.logger.Error("dashboard: profile load failed", zap.String("uid", user.ID), zap.Error(err))
		return "", s.errorSnapshot(domain.StatusError, fmt.Sprintf(domain.MsgProfileFailedF, err.Error()))
	}

	var phone string
	if profile != nil {
		phone = strings.TrimSpace(profile.Phone)
	}
	if phone == "" {
		res := meter.ResolveDevice("", nil)
		s.metrics.IncrDeviceResolution(string(res.State))
		return "", s.errorSnapshot(domain.StatusNoData, res.Message)
	}
	return phone, nil
}

func (s *DashboardService) process(ctx context.Context, user *domain.User, phone string, devices []domain.Device) *domain.DashboardSnapshot {
	ctx, span := dashboardTracer.Start(ctx, "DashboardService.process")
	defer span.End()

	res := meter.ResolveDevice(phone, devices)
	s.metrics.IncrDeviceResolution(string(res.State))
	span.SetAttributes(attribute.String("resolution", string(res.State)))

	if len(res.Ambiguous) > 0 {
		s.metrics.IncrDeviceResolution("ambiguous")
		s.logger.Warn("phone matches more than one device",
			zap.String("uid", user.ID),
			zap.String("device_id", res.Device.ID),
			zap.Strings("ignored", res.Ambiguous),
		)
	}

	if res.State != domain.ResolutionConnected {
		snap := s.errorSnapshot(domain.StatusNoData, res.Message)
		s.cache.Set(snapshotCacheKey(user.ID), snap)
		return snap
	}

	device := res.Device
	summary, delta := s.updateUsage(ctx, user.ID, device.KWh)
	if delta != nil {
		s.checkAlert(ctx, user, device, delta)
	}

	snap := &domain.DashboardSnapshot{
		Status:      domain.StatusConnected,
		StatusText:  domain.StatusConnected.Text(),
		Device:      device,
		Consumption: meter.Fixed(device.KWh, 2),
		RateDisplay: domain.CurrencySymbol + meter.Fixed(device.Price, 2),
		Bill:        meter.ComputeBill(device.KWh, device.Price),
		Usage:       summary,
		Ambiguous:   res.Ambiguous,
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}
	s.cache.Set(snapshotCacheKey(user.ID), snap)
	return snap
}

// updateUsage reads both checkpoints concurrently, computes the delta and
// executes its writes. Any store failure degrades to zero usage.
func (s *DashboardService) updateUsage(ctx context.Context, uid string, current float64) (domain.UsageSummary, *domain.UsageDelta) {
	now := s.now()
	keys := meter.KeysFor(now, s.loc)
	stamp := now.UTC().Format(time.RFC3339)

	var yesterday, monthStart *domain.Checkpoint
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cp, err := s.usage.GetDailyCheckpoint(gCtx, uid, keys.Yesterday)
		if err != nil {
			return fmt.Errorf("yesterday checkpoint: %w", err)
		}
		yesterday = cp
		return nil
	})
	g.Go(func() error {
		cp, err := s.usage.GetMonthCheckpoint(gCtx, uid, keys.Month)
		if err != nil {
			return fmt.Errorf("month checkpoint: %w", err)
		}
		monthStart = cp
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.usageFailed(uid, stamp, err), nil
	}

	delta := meter.ComputeDelta(current, keys, yesterday, monthStart)
	if err := s.ApplyWrites(ctx, uid, delta.Writes, now); err != nil {
		return s.usageFailed(uid, stamp, err), nil
	}

	s.metrics.IncrUsageComputation("ok")
	return domain.UsageSummary{
		TodayKWh:    meter.Round2(delta.TodayUsage),
		MonthKWh:    meter.Round2(delta.MonthUsage),
		Today:       meter.Fixed(delta.TodayUsage, 2),
		Month:       meter.Fixed(delta.MonthUsage, 2),
		Updated:     true,
		Status:      domain.UsageStatusUpdated,
		LastUpdated: stamp,
	}, &delta
}

// ApplyWrites performs the intended usage writes in order and stops at the
// first failure.
func (s *DashboardService) ApplyWrites(ctx context.Context, uid string, writes []domain.UsageWrite, now time.Time) error {
	ts := now.UnixMilli()
	for _, w := range writes {
		var err error
		switch w.Kind {
		case domain.WriteMonthStart:
			err = s.usage.SetMonthCheckpoint(ctx, uid, w.Key, domain.Checkpoint{Reading: w.Value, Timestamp: ts})
		case domain.WriteDailyCheckpoint:
			err = s.usage.SetDailyCheckpoint(ctx, uid, w.Key, domain.Checkpoint{Reading: w.Value, Timestamp: ts})
		case domain.WriteDailyUsage:
			err = s.usage.SetDailyUsage(ctx, uid, w.Key, domain.DailyUsage{Usage: w.Value, Timestamp: ts})
		default:
			err = fmt.Errorf("unknown usage write %q", w.Kind)
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", w.Kind, w.Key, err)
		}
		s.metrics.IncrCheckpointWrite(w.Kind)
	}
	return nil
}

func (s *DashboardService) usageFailed(uid, stamp string, err error) domain.UsageSummary {
	s.metrics.IncrUsageComputation("failed")
	s.metrics.IncrStoreError("usage")
	s.logger.Error("usage update failed", zap.String("uid", uid), zap.Error(err))
	return domain.UsageSummary{
		Today:       meter.Fixed(0, 2),
		Month:       meter.Fixed(0, 2),
		Status:      domain.UsageStatusCouldNotUpdate,
		LastUpdated: stamp,
	}
}

// checkAlert publishes at most one alert per user and day when today's
// usage exceeds the active threshold.
func (s *DashboardService) checkAlert(ctx context.Context, user *domain.User, device *domain.Device, delta *domain.UsageDelta) {
	alert, err := s.alerts.GetAlert(ctx, user.ID)
	if err != nil {
		s.logger.Warn("alert lookup failed", zap.String("uid", user.ID), zap.Error(err))
		return
	}
	if alert == nil || !alert.Active || delta.TodayUsage <= alert.Threshold {
		return
	}
	if !s.fired.SetIfAbsent(user.ID+":"+delta.Today, true) {
		return
	}

	ev := domain.AlertEvent{
		UserID:     user.ID,
		Email:      user.Email,
		DeviceID:   device.ID,
		Date:       delta.Today,
		TodayUsage: meter.Round2(delta.TodayUsage),
		Threshold:  alert.Threshold,
		Timestamp:  s.now().UnixMilli(),
	}
	if err := s.publisher.PublishAlert(ctx, ev); err != nil {
		s.metrics.IncrExternalError("alerts")
		s.logger.Error("alert publish failed", zap.String("uid", user.ID), zap.Error(err))
		return
	}
	s.metrics.IncrAlertPublished()
	s.logger.Info("usage alert published",
		zap.String("uid", user.ID),
		zap.Float64("today_usage", ev.TodayUsage),
		zap.Float64("threshold", ev.Threshold),
	)
}

// ============================================================
// Snapshot builders
// ============================================================

func (s *DashboardService) connecting() *domain.DashboardSnapshot {
	snap := s.errorSnapshot(domain.StatusConnecting, "")
	snap.Usage.Status = ""
	snap.Usage.LastUpdated = ""
	return snap
}

func (s *DashboardService) connectionError(user *domain.User, err error) *domain.DashboardSnapshot {
	s.metrics.IncrDeviceResolution(string(domain.ResolutionConnectionError))
	s.metrics.IncrStoreError("devices")
	s.logger.Error("device registry unavailable", zap.String("uid", user.ID), zap.Error(err))
	return s.errorSnapshot(domain.StatusError, fmt.Sprintf(domain.MsgConnectFailedF, err.Error()))
}

// errorSnapshot is the zeroed dashboard shown with a status message.
func (s *DashboardService) errorSnapshot(status domain.ConnectionStatus, msg string) *domain.DashboardSnapshot {
	zero := meter.Fixed(0, 2)
	return &domain.DashboardSnapshot{
		Status:      status,
		StatusText:  status.Text(),
		Message:     msg,
		Consumption: zero,
		RateDisplay: domain.CurrencySymbol + zero,
		Bill:        meter.ZeroBill(),
		Usage: domain.UsageSummary{
			Today:       zero,
			Month:       zero,
			Status:      domain.UsageStatusCouldNotUpdate,
			LastUpdated: lastUpdatedError,
		},
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}
}
