package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var profileTracer = otel.Tracer("service/profile")

// Profile page messages.
const (
	MsgRequiredFields  = "Please fill in all required fields"
	MsgInvalidRatePlan = "Please select a valid rate plan."
	MsgProfileSaved    = "Profile updated successfully!"
)

// ProfileService reads and saves the per-user profile record. Loaded
// profiles are cached until the next save.
type ProfileService struct {
	store    port.ProfileStore
	identity port.IdentityProvider
	cache    port.Cache[any]
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewProfileService creates a new profile service.
func NewProfileService(store port.ProfileStore, identity port.IdentityProvider, cache port.Cache[any], metrics *observability.Metrics, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		store:    store,
		identity: identity,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

func profileCacheKey(uid string) string { return fmt.Sprintf("profile:%s", uid) }

// Load returns the stored profile, or nil when none has been saved.
func (s *ProfileService) Load(ctx context.Context, uid string) (*domain.Profile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Load")
	defer span.End()

	key := profileCacheKey(uid)
	if cached, ok := s.cache.Get(key); ok {
		if p, ok := cached.(*domain.Profile); ok {
			s.metrics.IncrCacheHit("profile")
			return p, nil
		}
	}
	s.metrics.IncrCacheMiss("profile")

	p, err := s.store.GetProfile(ctx, uid)
	if err != nil {
		s.metrics.IncrStoreError("get_profile")
		return nil, fmt.Errorf("profile fetch: %w", err)
	}
	if p != nil {
		s.cache.Set(key, p)
	}
	return p, nil
}

// CurrentUser returns user with the display name from the stored profile,
// which may be newer than the one in the session token. A nil user or a
// failed lookup returns user unchanged.
func (s *ProfileService) CurrentUser(ctx context.Context, user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	stored, err := s.Load(ctx, user.ID)
	if err != nil {
		s.logger.Warn("profile name lookup failed", zap.String("uid", user.ID), zap.Error(err))
		return user
	}
	if stored == nil || stored.DisplayName == "" || stored.DisplayName == user.DisplayName {
		return user
	}
	current := *user
	current.DisplayName = stored.DisplayName
	return &current
}

// ============================================================
// Get — GET /v1/profile
// ============================================================

// Get returns the profile page view. Missing fields fall back to the
// session user and the residential plan.
func (s *ProfileService) Get(ctx context.Context, user *domain.User) (*domain.ProfileView, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("uid", user.ID))

	stored, err := s.Load(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	view := &domain.ProfileView{Stored: stored != nil}
	if stored != nil {
		view.Profile = *stored
	}
	if view.Profile.DisplayName == "" {
		view.Profile.DisplayName = user.DisplayName
	}
	if view.Profile.Email == "" {
		view.Profile.Email = user.Email
	}
	if view.Profile.RatePlan == "" {
		view.Profile.RatePlan = domain.RatePlanResidential
	}

	view.Account = s.accountInfo(ctx, user)
	return view, nil
}

func (s *ProfileService) accountInfo(ctx context.Context, user *domain.User) domain.AccountInfo {
	info := domain.AccountInfo{UserID: user.ID, Email: user.Email}

	meta, err := s.identity.GetUser(ctx, user.ID)
	if err != nil {
		s.logger.Warn("account metadata unavailable", zap.String("uid", user.ID), zap.Error(err))
		return info
	}
	if meta.Email != "" {
		info.Email = meta.Email
	}
	info.CreatedAt = formatTime(meta.CreatedAt)
	info.LastSignInAt = formatTime(meta.LastSignInAt)
	return info
}

// ============================================================
// Save — PUT /v1/profile
// ============================================================

// Save validates and stores the profile wholesale, and mirrors the display
// name onto the identity provider account.
func (s *ProfileService) Save(ctx context.Context, user *domain.User, req *domain.ProfileUpdateRequest) (*domain.Profile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Save")
	defer span.End()
	span.SetAttributes(attribute.String("uid", user.ID))

	p := &domain.Profile{
		DisplayName:  strings.TrimSpace(req.DisplayName),
		SerialNumber: strings.TrimSpace(req.SerialNumber),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		RatePlan:     domain.RatePlan(strings.TrimSpace(req.RatePlan)),
	}

	if p.DisplayName == "" || p.SerialNumber == "" || p.Email == "" {
		return nil, &domain.ErrValidation{Message: MsgRequiredFields}
	}
	if p.RatePlan == "" {
		p.RatePlan = domain.RatePlanResidential
	}
	if !p.RatePlan.Valid() {
		return nil, &domain.ErrValidation{Field: "ratePlan", Message: MsgInvalidRatePlan}
	}
	p.LastUpdated = s.now().UTC().Format(time.RFC3339)

	if err := s.identity.UpdateDisplayName(ctx, user.ID, p.DisplayName); err != nil {
		return nil, fmt.Errorf("update display name: %w", err)
	}
	if err := s.store.SaveProfile(ctx, user.ID, p); err != nil {
		s.metrics.IncrStoreError("save_profile")
		return nil, fmt.Errorf("save profile: %w", err)
	}
	s.cache.Delete(profileCacheKey(user.ID))

	s.logger.Info("profile saved",
		zap.String("uid", user.ID),
		zap.Bool("has_phone", p.Phone != ""),
	)
	return p, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
