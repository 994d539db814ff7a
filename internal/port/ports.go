// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"encoding/json"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
)

// ============================================================
// Key-value store
// ============================================================

// Snapshot is an immutable view of the value stored at Path. Value holds
// the JSON encoding of the subtree; it is empty when nothing is stored.
// Err is only set on snapshots delivered by Watch.
type Snapshot struct {
	Path  string
	Value json.RawMessage
	Err   error
}

// Exists reports whether a value is stored at the path.
func (s Snapshot) Exists() bool {
	return len(s.Value) > 0 && string(s.Value) != "null"
}

// Decode unmarshals the snapshot value into v.
func (s Snapshot) Decode(v any) error {
	return json.Unmarshal(s.Value, v)
}

// KVStore is the path-addressed real-time store ("users/<uid>/profile",
// "devices", ...). Set replaces the whole subtree at path; Push appends a
// child under a generated, time-ordered key.
type KVStore interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	Push(ctx context.Context, path string, value any) (string, error)
	// Watch emits the current value and then every change until ctx is
	// done. A failure is delivered as a snapshot with Err set, after which
	// the channel is closed.
	Watch(ctx context.Context, path string) (<-chan Snapshot, error)
	Ping(ctx context.Context) error
	Close() error
}

// ============================================================
// Typed repositories over the store
// ============================================================

// ProfileStore reads and writes users/<uid>/profile. GetProfile returns
// (nil, nil) when no profile has been saved yet.
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (*domain.Profile, error)
	SaveProfile(ctx context.Context, uid string, p *domain.Profile) error
}

// DeviceSnapshot is one state of the device registry, normalized and in
// store key order.
type DeviceSnapshot struct {
	Devices []domain.Device
	Err     error
}

// DeviceRegistry exposes the shared devices collection.
type DeviceRegistry interface {
	ListDevices(ctx context.Context) ([]domain.Device, error)
	WatchDevices(ctx context.Context) (<-chan DeviceSnapshot, error)
	PutDevice(ctx context.Context, id string, raw map[string]any) (*domain.Device, error)
}

// UsageStore holds checkpoints and daily usage. Getters return (nil, nil)
// when the record is absent.
type UsageStore interface {
	GetDailyCheckpoint(ctx context.Context, uid, date string) (*domain.Checkpoint, error)
	GetMonthCheckpoint(ctx context.Context, uid, month string) (*domain.Checkpoint, error)
	SetDailyCheckpoint(ctx context.Context, uid, date string, cp domain.Checkpoint) error
	SetMonthCheckpoint(ctx context.Context, uid, month string, cp domain.Checkpoint) error
	SetDailyUsage(ctx context.Context, uid, date string, u domain.DailyUsage) error
	ListDailyUsage(ctx context.Context, uid string) (map[string]domain.DailyUsage, error)
}

// PaymentStore appends and lists payments/<uid>.
type PaymentStore interface {
	AppendPayment(ctx context.Context, uid string, p *domain.Payment) (string, error)
	ListPayments(ctx context.Context, uid string) ([]domain.Payment, error)
}

// HistoryStore reads history/<uid>; AppendHistory is used by dev tooling.
type HistoryStore interface {
	ListHistory(ctx context.Context, uid string) ([]domain.HistoryRecord, error)
	AppendHistory(ctx context.Context, uid string, rec domain.HistoryRecord) (string, error)
}

// AlertStore reads and writes alerts/<uid>.
type AlertStore interface {
	GetAlert(ctx context.Context, uid string) (*domain.UsageAlert, error)
	SaveAlert(ctx context.Context, uid string, a *domain.UsageAlert) error
}

// ============================================================
// Identity, publishing, caching
// ============================================================

// IdentityProvider performs credential checks. Failures carry a
// *domain.ErrAuthProvider with one of the domain.AuthCode* codes.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, displayName string) (*domain.User, error)
	SignIn(ctx context.Context, email, password string) (*domain.User, error)
	UpdateDisplayName(ctx context.Context, uid, displayName string) error
	GetUser(ctx context.Context, uid string) (*domain.User, error)
}

// AlertPublisher delivers usage threshold alerts.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, ev domain.AlertEvent) error
	Close()
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
