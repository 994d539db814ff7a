// Package identity provides the store-backed identity provider used when no
// hosted identity service is configured.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("identity/local")

const (
	maxFailedAttempts = 5
	lockDuration      = 30 * time.Minute
	minPasswordLength = 6
	// bcrypt only hashes the first 72 bytes and rejects longer input.
	maxPasswordLength = 72
)

// account is the record stored at auth_users/<sha256(email)>.
type account struct {
	UID            string `json:"uid"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	PasswordHash   string `json:"passwordHash"`
	CreatedAt      int64  `json:"createdAt"`
	LastSignInAt   int64  `json:"lastSignInAt,omitempty"`
	FailedAttempts int    `json:"failedAttempts,omitempty"`
	LockedUntil    int64  `json:"lockedUntil,omitempty"`
}

func (a *account) user() *domain.User {
	u := &domain.User{
		ID:          a.UID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		CreatedAt:   time.UnixMilli(a.CreatedAt).UTC(),
	}
	if a.LastSignInAt > 0 {
		u.LastSignInAt = time.UnixMilli(a.LastSignInAt).UTC()
	}
	return u
}

// Local implements port.IdentityProvider with bcrypt hashes kept in the
// key-value store. auth_uids/<uid> indexes accounts by uid.
type Local struct {
	store  port.KVStore
	cost   int
	logger *zap.Logger
}

// NewLocal creates the local identity provider.
func NewLocal(store port.KVStore, logger *zap.Logger) *Local {
	return &Local{store: store, cost: bcrypt.DefaultCost, logger: logger}
}

func emailKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

func (l *Local) SignUp(ctx context.Context, email, password, displayName string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Local.SignUp")
	defer span.End()

	if len(password) < minPasswordLength {
		return nil, &domain.ErrAuthProvider{Code: domain.AuthCodeWeakPassword}
	}
	if len(password) > maxPasswordLength {
		return nil, &domain.ErrAuthProvider{Code: domain.AuthCodeWeakPassword}
	}

	key := emailKey(email)
	existing, err := l.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &domain.ErrAuthProvider{Code: domain.AuthCodeEmailInUse}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UnixMilli()
	acct := &account{
		UID:          uuid.NewString(),
		Email:        strings.TrimSpace(email),
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    now,
		LastSignInAt: now,
	}
	if err := l.store.Set(ctx, "auth_users/"+key, acct); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	if err := l.store.Set(ctx, "auth_uids/"+acct.UID, key); err != nil {
		return nil, fmt.Errorf("save uid index: %w", err)
	}

	l.logger.Info("identity: user registered", zap.String("uid", acct.UID))
	return acct.user(), nil
}

func (l *Local) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Local.SignIn")
	defer span.End()

	key := emailKey(email)
	acct, err := l.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, &domain.ErrAuthProvider{Code: domain.AuthCodeUserNotFound}
	}

	now := time.Now()
	if acct.LockedUntil > now.UnixMilli() {
		l.logger.Warn("identity: account temporarily locked",
			zap.String("uid", acct.UID),
			zap.Float64("remaining_minutes", time.Until(time.UnixMilli(acct.LockedUntil)).Minutes()),
		)
		return nil, &domain.ErrAuthProvider{Code: domain.AuthCodeTooManyRequests}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		acct.FailedAttempts++
		code := domain.AuthCodeWrongPassword
		if acct.FailedAttempts >= maxFailedAttempts {
			acct.LockedUntil = now.Add(lockDuration).UnixMilli()
			acct.FailedAttempts = 0
			code = domain.AuthCodeTooManyRequests
			l.logger.Warn("identity: account locked after max attempts",
				zap.String("uid", acct.UID),
				zap.Duration("lock_duration", lockDuration),
			)
		} else {
			l.logger.Warn("identity: failed password attempt",
				zap.String("uid", acct.UID),
				zap.Int("attempts", acct.FailedAttempts),
				zap.Int("max", maxFailedAttempts),
			)
		}
		if err := l.store.Set(ctx, "auth_users/"+key, acct); err != nil {
			l.logger.Error("identity: failed to record attempt", zap.Error(err))
		}
		return nil, &domain.ErrAuthProvider{Code: code}
	}

	acct.FailedAttempts = 0
	acct.LockedUntil = 0
	acct.LastSignInAt = now.UnixMilli()
	if err := l.store.Set(ctx, "auth_users/"+key, acct); err != nil {
		l.logger.Error("identity: failed to record sign-in", zap.Error(err))
	}
	return acct.user(), nil
}

func (l *Local) UpdateDisplayName(ctx context.Context, uid, displayName string) error {
	key, _, err := l.byUID(ctx, uid)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, "auth_users/"+key+"/displayName", displayName)
}

func (l *Local) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	_, acct, err := l.byUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return acct.user(), nil
}

func (l *Local) byUID(ctx context.Context, uid string) (string, *account, error) {
	snap, err := l.store.Get(ctx, "auth_uids/"+uid)
	if err != nil {
		return "", nil, err
	}
	var key string
	if !snap.Exists() || snap.Decode(&key) != nil || key == "" {
		return "", nil, &domain.ErrNotFound{Resource: "user", ID: uid}
	}
	acct, err := l.load(ctx, key)
	if err != nil {
		return "", nil, err
	}
	if acct == nil {
		return "", nil, &domain.ErrNotFound{Resource: "user", ID: uid}
	}
	return key, acct, nil
}

func (l *Local) load(ctx context.Context, key string) (*account, error) {
	snap, err := l.store.Get(ctx, "auth_users/"+key)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !snap.Exists() {
		return nil, nil
	}
	var acct account
	if err := snap.Decode(&acct); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &acct, nil
}
