// Package bootstrap selects and opens the configured store and identity
// backends. It is shared by the BFA server and electritrackctl.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/electritrack-bfa-go/internal/config"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/firebase"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/identity"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/kv/sqlite"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	fb "firebase.google.com/go/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Backends are the store and identity provider chosen by configuration.
type Backends struct {
	KV        port.KVStore
	StoreName string
	Identity  port.IdentityProvider
}

// Close releases the store.
func (b *Backends) Close() error {
	if b.KV == nil {
		return nil
	}
	return b.KV.Close()
}

// Open builds the backends named by cfg.StoreBackend and cfg.IdentityBackend.
// The Firebase app is initialized at most once and only when one of them
// needs it.
func Open(ctx context.Context, cfg *config.Config, httpClient *http.Client, cb *gobreaker.CircuitBreaker, rcfg resilience.Config, logger *zap.Logger) (*Backends, error) {
	var app *fb.App
	firebaseApp := func() (*fb.App, error) {
		if app != nil {
			return app, nil
		}
		a, err := firebase.NewApp(ctx, cfg.FirebaseDatabaseURL, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		app = a
		return app, nil
	}

	b := &Backends{StoreName: cfg.StoreBackend}

	switch cfg.StoreBackend {
	case config.BackendSQLite:
		s, err := sqlite.New(cfg.SQLitePath, cfg.WatchInterval, logger)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		b.KV = s
	case config.BackendSupabase:
		if cfg.SupabaseURL == "" {
			return nil, fmt.Errorf("SUPABASE_URL is required for the supabase backend")
		}
		b.KV = supabase.NewClient(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey,
			cfg.SupabaseTable, cfg.WatchInterval, cb, rcfg, logger)
	case config.BackendFirebase:
		a, err := firebaseApp()
		if err != nil {
			return nil, err
		}
		client, err := a.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening realtime database: %w", err)
		}
		b.KV = firebase.NewRealtimeStore(client, cfg.WatchInterval, cb, rcfg, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	switch cfg.IdentityBackend {
	case config.IdentityLocal:
		b.Identity = identity.NewLocal(b.KV, logger)
	case config.IdentityFirebase:
		a, err := firebaseApp()
		if err != nil {
			b.Close()
			return nil, err
		}
		admin, err := a.Auth(ctx)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("opening firebase auth: %w", err)
		}
		b.Identity = firebase.NewIdentity(httpClient, "", cfg.FirebaseAPIKey, admin, cb, rcfg, logger)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown identity backend %q", cfg.IdentityBackend)
	}

	logger.Info("backends ready",
		zap.String("store", cfg.StoreBackend),
		zap.String("identity", cfg.IdentityBackend),
	)
	return b, nil
}
