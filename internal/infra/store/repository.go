// Package store maps the key-value tree into typed records. Every read and
// write of user data goes through Repository, which implements the typed
// store ports on top of any port.KVStore backend.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/kv"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("store")

// Store paths.
const (
	devicesPath = "devices"
)

func profilePath(uid string) string { return "users/" + uid + "/profile" }
func dailyCheckpointPath(uid, date string) string { return "meter_readings/" + uid + "/" + date }
func monthCheckpointPath(uid, month string) string { return "month_readings/" + uid + "/" + month }
func dailyUsagePath(uid string) string { return "daily_usage/" + uid }
func paymentsPath(uid string) string { return "payments/" + uid }
func historyPath(uid string) string { return "history/" + uid }
func alertPath(uid string) string { return "alerts/" + uid }

// Repository implements the typed store ports (ProfileStore, DeviceRegistry,
// UsageStore, PaymentStore, HistoryStore, AlertStore).
type Repository struct {
	kv     port.KVStore
	now    func() time.Time
	logger *zap.Logger
}

// New creates a repository over the given backend.
func New(store port.KVStore, logger *zap.Logger) *Repository {
	return &Repository{kv: store, now: time.Now, logger: logger}
}

// KV exposes the underlying backend (health checks, dev tooling).
func (r *Repository) KV() port.KVStore { return r.kv }

// ============================================================
// Profiles
// ============================================================

func (r *Repository) GetProfile(ctx context.Context, uid string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Repository.GetProfile")
	defer span.End()

	var p domain.Profile
	ok, err := r.getJSON(ctx, profilePath(uid), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) SaveProfile(ctx context.Context, uid string, p *domain.Profile) error {
	ctx, span := tracer.Start(ctx, "Repository.SaveProfile")
	defer span.End()

	if err := r.kv.Set(ctx, profilePath(uid), p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// ============================================================
// Device registry
// ============================================================

func (r *Repository) ListDevices(ctx context.Context) ([]domain.Device, error) {
	ctx, span := tracer.Start(ctx, "Repository.ListDevices")
	defer span.End()

	snap, err := r.kv.Get(ctx, devicesPath)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return r.decodeDevices(snap.Value)
}

// WatchDevices re-emits the normalized registry on every change. The
// output channel closes when the underlying watch ends.
func (r *Repository) WatchDevices(ctx context.Context) (<-chan port.DeviceSnapshot, error) {
	in, err := r.kv.Watch(ctx, devicesPath)
	if err != nil {
		return nil, fmt.Errorf("watch devices: %w", err)
	}

	out := make(chan port.DeviceSnapshot, 1)
	go func() {
		defer close(out)
		for snap := range in {
			ds := port.DeviceSnapshot{Err: snap.Err}
			if snap.Err == nil {
				ds.Devices, ds.Err = r.decodeDevices(snap.Value)
			}
			select {
			case out <- ds:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// PutDevice writes a raw registry record and returns it as normalized.
func (r *Repository) PutDevice(ctx context.Context, id string, raw map[string]any) (*domain.Device, error) {
	if err := r.kv.Set(ctx, devicesPath+"/"+id, raw); err != nil {
		return nil, fmt.Errorf("put device: %w", err)
	}
	d := NormalizeDevice(id, raw, r.now())
	return &d, nil
}

// decodeDevices returns the registry in store key order. Non-object
// children are kept as records with no fields.
func (r *Repository) decodeDevices(value json.RawMessage) ([]domain.Device, error) {
	children, err := decodeChildren(value)
	if err != nil {
		return nil, fmt.Errorf("decode devices: %w", err)
	}

	now := r.now()
	devices := make([]domain.Device, 0, len(children))
	for _, id := range kv.ChildKeys(children) {
		fields := map[string]any{}
		if err := decodeNumbers(children[id], &fields); err != nil {
			fields = map[string]any{}
		}
		devices = append(devices, NormalizeDevice(id, fields, now))
	}
	return devices, nil
}

// ============================================================
// Usage checkpoints
// ============================================================

func (r *Repository) GetDailyCheckpoint(ctx context.Context, uid, date string) (*domain.Checkpoint, error) {
	return r.getCheckpoint(ctx, dailyCheckpointPath(uid, date))
}

func (r *Repository) GetMonthCheckpoint(ctx context.Context, uid, month string) (*domain.Checkpoint, error) {
	return r.getCheckpoint(ctx, monthCheckpointPath(uid, month))
}

func (r *Repository) getCheckpoint(ctx context.Context, path string) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	ok, err := r.getJSON(ctx, path, &cp)
	if err != nil || !ok {
		return nil, err
	}
	return &cp, nil
}

func (r *Repository) SetDailyCheckpoint(ctx context.Context, uid, date string, cp domain.Checkpoint) error {
	return r.kv.Set(ctx, dailyCheckpointPath(uid, date), cp)
}

func (r *Repository) SetMonthCheckpoint(ctx context.Context, uid, month string, cp domain.Checkpoint) error {
	return r.kv.Set(ctx, monthCheckpointPath(uid, month), cp)
}

func (r *Repository) SetDailyUsage(ctx context.Context, uid, date string, u domain.DailyUsage) error {
	return r.kv.Set(ctx, dailyUsagePath(uid)+"/"+date, u)
}

// ListDailyUsage returns every stored day keyed by date. Unreadable
// entries are skipped.
func (r *Repository) ListDailyUsage(ctx context.Context, uid string) (map[string]domain.DailyUsage, error) {
	ctx, span := tracer.Start(ctx, "Repository.ListDailyUsage")
	defer span.End()

	snap, err := r.kv.Get(ctx, dailyUsagePath(uid))
	if err != nil {
		return nil, fmt.Errorf("list daily usage: %w", err)
	}
	children, err := decodeChildren(snap.Value)
	if err != nil {
		return nil, fmt.Errorf("decode daily usage: %w", err)
	}

	out := make(map[string]domain.DailyUsage, len(children))
	for date, raw := range children {
		var du domain.DailyUsage
		if err := json.Unmarshal(raw, &du); err != nil {
			r.logger.Debug("store: skipping daily usage entry", zap.String("date", date), zap.Error(err))
			continue
		}
		out[date] = du
	}
	return out, nil
}

// ============================================================
// Payments
// ============================================================

func (r *Repository) AppendPayment(ctx context.Context, uid string, p *domain.Payment) (string, error) {
	ctx, span := tracer.Start(ctx, "Repository.AppendPayment")
	defer span.End()

	rec := *p
	rec.ID = ""
	key, err := r.kv.Push(ctx, paymentsPath(uid), rec)
	if err != nil {
		return "", fmt.Errorf("append payment: %w", err)
	}
	return key, nil
}

// ListPayments returns payments oldest first.
func (r *Repository) ListPayments(ctx context.Context, uid string) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Repository.ListPayments")
	defer span.End()

	snap, err := r.kv.Get(ctx, paymentsPath(uid))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	children, err := decodeChildren(snap.Value)
	if err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}

	out := make([]domain.Payment, 0, len(children))
	for _, key := range kv.ChildKeys(children) {
		var p domain.Payment
		if err := json.Unmarshal(children[key], &p); err != nil {
			continue
		}
		p.ID = key
		out = append(out, p)
	}
	return out, nil
}

// ============================================================
// History
// ============================================================

// ListHistory returns history items in key order. usage and cost are read
// leniently since the producer is external.
func (r *Repository) ListHistory(ctx context.Context, uid string) ([]domain.HistoryRecord, error) {
	ctx, span := tracer.Start(ctx, "Repository.ListHistory")
	defer span.End()

	snap, err := r.kv.Get(ctx, historyPath(uid))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	children, err := decodeChildren(snap.Value)
	if err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	out := make([]domain.HistoryRecord, 0, len(children))
	for _, key := range kv.ChildKeys(children) {
		fields := map[string]any{}
		if err := decodeNumbers(children[key], &fields); err != nil {
			continue
		}
		rec := domain.HistoryRecord{
			Key:   key,
			Usage: ParseLeadingFloat(fields["usage"]),
			Cost:  ParseLeadingFloat(fields["cost"]),
		}
		if d, ok := fields["date"].(string); ok {
			rec.Date = d
		}
		if ts := toNumber(fields["timestamp"]); ts > 0 {
			rec.Timestamp = int64(ts)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Repository) AppendHistory(ctx context.Context, uid string, rec domain.HistoryRecord) (string, error) {
	key, err := r.kv.Push(ctx, historyPath(uid), rec)
	if err != nil {
		return "", fmt.Errorf("append history: %w", err)
	}
	return key, nil
}

// ============================================================
// Alerts
// ============================================================

func (r *Repository) GetAlert(ctx context.Context, uid string) (*domain.UsageAlert, error) {
	var a domain.UsageAlert
	ok, err := r.getJSON(ctx, alertPath(uid), &a)
	if err != nil || !ok {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) SaveAlert(ctx context.Context, uid string, a *domain.UsageAlert) error {
	if err := r.kv.Set(ctx, alertPath(uid), a); err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

// ============================================================
// helpers
// ============================================================

func (r *Repository) getJSON(ctx context.Context, path string, v any) (bool, error) {
	snap, err := r.kv.Get(ctx, path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if !snap.Exists() {
		return false, nil
	}
	if err := snap.Decode(v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// decodeChildren splits an object value into its children. The realtime
// database returns objects with dense integer keys as arrays, so arrays are
// re-keyed by index with null holes dropped. Missing and scalar values yield
// no children.
func decodeChildren(value json.RawMessage) (map[string]json.RawMessage, error) {
	children := map[string]json.RawMessage{}
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return children, nil
	}
	switch value[0] {
	case '{':
		if err := json.Unmarshal(value, &children); err != nil {
			return nil, err
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(value, &items); err != nil {
			return nil, err
		}
		for i, item := range items {
			if len(item) == 0 || string(item) == "null" {
				continue
			}
			children[strconv.Itoa(i)] = item
		}
	}
	return children, nil
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
