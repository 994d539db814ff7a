package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/cache"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockIdentity struct {
	user      *domain.User
	err       error
	updateErr error
	meta      *domain.User
	metaErr   error

	mu      sync.Mutex
	signUps int
	renamed string
}

func (m *mockIdentity) SignUp(_ context.Context, email, _, displayName string) (*domain.User, error) {
	m.mu.Lock()
	m.signUps++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.user != nil {
		return m.user, nil
	}
	return &domain.User{ID: "uid-new", Email: email, DisplayName: displayName}, nil
}

func (m *mockIdentity) SignIn(_ context.Context, email, _ string) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user != nil {
		return m.user, nil
	}
	return &domain.User{ID: "uid-1", Email: email}, nil
}

func (m *mockIdentity) UpdateDisplayName(_ context.Context, _, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renamed = displayName
	return m.updateErr
}

func (m *mockIdentity) GetUser(_ context.Context, uid string) (*domain.User, error) {
	if m.metaErr != nil {
		return nil, m.metaErr
	}
	if m.meta != nil {
		return m.meta, nil
	}
	return &domain.User{ID: uid}, nil
}

type mockProfileStore struct {
	profile *domain.Profile
	err     error
	saveErr error

	mu    sync.Mutex
	gets  int
	saved *domain.Profile
}

func (m *mockProfileStore) GetProfile(_ context.Context, _ string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	return m.profile, m.err
}

func (m *mockProfileStore) SaveProfile(_ context.Context, _ string, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = p
	m.profile = p
	return nil
}

type mockDevices struct {
	devices  []domain.Device
	err      error
	updates  chan port.DeviceSnapshot
	watchErr error

	mu  sync.Mutex
	put map[string]map[string]any
}

func (m *mockDevices) ListDevices(_ context.Context) ([]domain.Device, error) {
	return m.devices, m.err
}

func (m *mockDevices) WatchDevices(_ context.Context) (<-chan port.DeviceSnapshot, error) {
	if m.watchErr != nil {
		return nil, m.watchErr
	}
	return m.updates, nil
}

func (m *mockDevices) PutDevice(_ context.Context, id string, raw map[string]any) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.put == nil {
		m.put = map[string]map[string]any{}
	}
	m.put[id] = raw
	return &domain.Device{ID: id, Contact: id, KWh: 42, Price: domain.DefaultPricePerKWh}, nil
}

// mockUsage keeps checkpoints in maps and records the order of writes.
type mockUsage struct {
	mu       sync.Mutex
	daily    map[string]domain.Checkpoint
	month    map[string]domain.Checkpoint
	usage    map[string]domain.DailyUsage
	writes   []domain.UsageWriteKind
	readErr  error
	writeErr error
	listErr  error
}

func newMockUsage() *mockUsage {
	return &mockUsage{
		daily: map[string]domain.Checkpoint{},
		month: map[string]domain.Checkpoint{},
		usage: map[string]domain.DailyUsage{},
	}
}

func (m *mockUsage) GetDailyCheckpoint(_ context.Context, _, date string) (*domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if cp, ok := m.daily[date]; ok {
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUsage) GetMonthCheckpoint(_ context.Context, _, month string) (*domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if cp, ok := m.month[month]; ok {
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUsage) SetDailyCheckpoint(_ context.Context, _, date string, cp domain.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.daily[date] = cp
	m.writes = append(m.writes, domain.WriteDailyCheckpoint)
	return nil
}

func (m *mockUsage) SetMonthCheckpoint(_ context.Context, _, month string, cp domain.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.month[month] = cp
	m.writes = append(m.writes, domain.WriteMonthStart)
	return nil
}

func (m *mockUsage) SetDailyUsage(_ context.Context, _, date string, u domain.DailyUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.usage[date] = u
	m.writes = append(m.writes, domain.WriteDailyUsage)
	return nil
}

func (m *mockUsage) ListDailyUsage(_ context.Context, _ string) (map[string]domain.DailyUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make(map[string]domain.DailyUsage, len(m.usage))
	for k, v := range m.usage {
		out[k] = v
	}
	return out, nil
}

type mockPayments struct {
	err      error
	appended []*domain.Payment
	listed   []domain.Payment
}

func (m *mockPayments) AppendPayment(_ context.Context, _ string, p *domain.Payment) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.appended = append(m.appended, p)
	return "push-key-1", nil
}

func (m *mockPayments) ListPayments(_ context.Context, _ string) ([]domain.Payment, error) {
	return m.listed, m.err
}

type mockHistory struct {
	records  []domain.HistoryRecord
	err      error
	appended []domain.HistoryRecord
}

func (m *mockHistory) ListHistory(_ context.Context, _ string) ([]domain.HistoryRecord, error) {
	return m.records, m.err
}

func (m *mockHistory) AppendHistory(_ context.Context, _ string, rec domain.HistoryRecord) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.appended = append(m.appended, rec)
	return "hist-key-1", nil
}

type mockAlerts struct {
	alert *domain.UsageAlert
	err   error
	saved *domain.UsageAlert
}

func (m *mockAlerts) GetAlert(_ context.Context, _ string) (*domain.UsageAlert, error) {
	return m.alert, m.err
}

func (m *mockAlerts) SaveAlert(_ context.Context, _ string, a *domain.UsageAlert) error {
	if m.err != nil {
		return m.err
	}
	m.saved = a
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.AlertEvent
	err    error
}

func (m *mockPublisher) PublishAlert(_ context.Context, ev domain.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) Close() {}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// --- Fixtures ---

var testUser = &domain.User{ID: "uid-1", Email: "juan@example.com", DisplayName: "Juan"}

type dashboardFixture struct {
	profiles  *mockProfileStore
	devices   *mockDevices
	usage     *mockUsage
	alerts    *mockAlerts
	publisher *mockPublisher
	metrics   *observability.Metrics
	svc       *service.DashboardService
}

func newDashboardFixture(phone string, devices ...domain.Device) *dashboardFixture {
	f := &dashboardFixture{
		profiles:  &mockProfileStore{profile: &domain.Profile{DisplayName: "Juan", Phone: phone}},
		devices:   &mockDevices{devices: devices},
		usage:     newMockUsage(),
		alerts:    &mockAlerts{},
		publisher: &mockPublisher{},
		metrics:   observability.NewMetrics(),
	}
	shared := cache.New[any](time.Minute)
	fired := cache.New[bool](time.Hour)
	profiles := service.NewProfileService(f.profiles, &mockIdentity{}, shared, f.metrics, zap.NewNop())
	f.svc = service.NewDashboardService(service.DashboardDeps{
		Profiles:  profiles,
		Devices:   f.devices,
		Usage:     f.usage,
		Alerts:    f.alerts,
		Publisher: f.publisher,
		Cache:     shared,
		Fired:     fired,
		Location:  time.UTC,
	}, f.metrics, zap.NewNop())
	return f
}
