package firebase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/infra/kv"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"firebase.google.com/go/v4/db"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("firebase")

// pingPath is read with a one-child query to check connectivity.
const pingPath = "devices"

// RealtimeStore implements port.KVStore on the Firebase Realtime Database.
type RealtimeStore struct {
	client        *db.Client
	watchInterval time.Duration
	cb            *gobreaker.CircuitBreaker
	cfg           resilience.Config
	logger        *zap.Logger
}

// NewRealtimeStore wraps a database client obtained from App.Database.
func NewRealtimeStore(client *db.Client, watchInterval time.Duration, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *RealtimeStore {
	return &RealtimeStore{
		client:        client,
		watchInterval: watchInterval,
		cb:            cb,
		cfg:           cfg,
		logger:        logger,
	}
}

func (s *RealtimeStore) Get(ctx context.Context, path string) (port.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "RTDB.Get")
	defer span.End()

	path, err := kv.CleanPath(path)
	if err != nil {
		return port.Snapshot{}, err
	}
	span.SetAttributes(attribute.String("kv.path", path))

	var raw json.RawMessage
	err = resilience.Call(ctx, s.cb, s.cfg, "firebase/get", func() error {
		return s.client.NewRef(path).Get(ctx, &raw)
	})
	if err != nil {
		return port.Snapshot{}, err
	}
	return port.Snapshot{Path: path, Value: nullToEmpty(raw)}, nil
}

func (s *RealtimeStore) Set(ctx context.Context, path string, value any) error {
	ctx, span := tracer.Start(ctx, "RTDB.Set")
	defer span.End()

	path, err := kv.CleanPath(path)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("kv.path", path))

	return resilience.Call(ctx, s.cb, s.cfg, "firebase/set", func() error {
		return s.client.NewRef(path).Set(ctx, value)
	})
}

// Push uses the database's own push ids, which are also time-ordered.
func (s *RealtimeStore) Push(ctx context.Context, path string, value any) (string, error) {
	ctx, span := tracer.Start(ctx, "RTDB.Push")
	defer span.End()

	path, err := kv.CleanPath(path)
	if err != nil {
		return "", err
	}

	var key string
	err = resilience.Call(ctx, s.cb, s.cfg, "firebase/push", func() error {
		ref, err := s.client.NewRef(path).Push(ctx, value)
		if err != nil {
			return err
		}
		key = ref.Key
		return nil
	})
	return key, err
}

// Watch polls with ETag conditional reads, so unchanged values cost a 304
// and are not re-emitted.
func (s *RealtimeStore) Watch(ctx context.Context, path string) (<-chan port.Snapshot, error) {
	path, err := kv.CleanPath(path)
	if err != nil {
		return nil, err
	}
	ref := s.client.NewRef(path)
	ch := make(chan port.Snapshot, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(s.watchInterval)
		defer ticker.Stop()

		etag := ""
		for {
			var (
				raw     json.RawMessage
				changed = true
				err     error
			)
			if etag == "" {
				etag, err = ref.GetWithETag(ctx, &raw)
			} else {
				changed, etag, err = ref.GetIfChanged(ctx, etag, &raw)
			}
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("rtdb: watch read failed", zap.String("path", path), zap.Error(err))
					select {
					case ch <- port.Snapshot{Path: path, Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			if changed {
				select {
				case ch <- port.Snapshot{Path: path, Value: nullToEmpty(raw)}:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return ch, nil
}

func (s *RealtimeStore) Ping(ctx context.Context) error {
	var v map[string]json.RawMessage
	return s.client.NewRef(pingPath).OrderByKey().LimitToFirst(1).Get(ctx, &v)
}

// Close is a no-op; the app owns the HTTP transport.
func (s *RealtimeStore) Close() error { return nil }

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
