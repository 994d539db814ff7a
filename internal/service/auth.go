// Package service holds the ElectriTrack use cases: sessions, profiles, the
// live dashboard pipeline, payments, trends, alerts and export.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/navigation"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

const (
	minPasswordLength = 6
	maxPasswordLength = 72
	tokenIssuer       = "electritrack-bfa"
	tokenType         = "Bearer"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User-facing validation messages. They are checked locally and never sent
// to the identity provider.
const (
	MsgInvalidEmail      = "Please enter a valid email address."
	MsgPasswordTooShort  = "Password must be at least 6 characters long."
	MsgPasswordTooLong   = "Password must be at most 72 characters long."
	MsgPasswordRequired  = "Please enter your password."
	MsgPasswordsMismatch = "Passwords do not match"
	MsgSignOutFailed     = "Failed to sign out. Please try again."
	MsgRegistered        = "Account created successfully!"
	MsgSignedIn          = "Signed in successfully!"
)

const (
	defaultRegisterMessage = "An unexpected error occurred during registration."
	defaultLoginMessage    = "An unexpected error occurred during sign in."
	networkMessage         = "Network error. Please check your connection and try again."
)

var registerMessages = map[string]string{
	domain.AuthCodeEmailInUse:          "This email is already registered. Please sign in instead.",
	domain.AuthCodeInvalidEmail:        MsgInvalidEmail,
	domain.AuthCodeOperationNotAllowed: "Email/password accounts are not enabled. Please contact support.",
	domain.AuthCodeWeakPassword:        "Password should be at least 6 characters long.",
	domain.AuthCodeNetworkFailed:       networkMessage,
}

var loginMessages = map[string]string{
	domain.AuthCodeUserDisabled:      "This account has been disabled. Please contact support.",
	domain.AuthCodeUserNotFound:      "No account found with this email address. Please sign up first.",
	domain.AuthCodeWrongPassword:     "Incorrect password. Please try again.",
	domain.AuthCodeInvalidEmail:      MsgInvalidEmail,
	domain.AuthCodeTooManyRequests:   "Too many failed attempts. Please try again later.",
	domain.AuthCodeNetworkFailed:     networkMessage,
	domain.AuthCodeInvalidCredential: "Invalid email or password. Please check your credentials.",
}

// RevocationList remembers signed-out token ids until they expire.
type RevocationList interface {
	Get(key string) (bool, bool)
	SetWithTTL(key string, value bool, ttl time.Duration)
}

// SessionClaims are the claims of a BFA access token. Subject is the
// provider user id and ID (jti) identifies the session for sign-out.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// User returns the session's user as carried by the token.
func (c *SessionClaims) User() *domain.User {
	return &domain.User{ID: c.Subject, Email: c.Email, DisplayName: c.Name}
}

// AuthService validates credentials locally, delegates them to the identity
// provider and issues the BFA's own session tokens.
type AuthService struct {
	identity  port.IdentityProvider
	revoked   RevocationList
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(identity port.IdentityProvider, revoked RevocationList, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		identity:  identity,
		revoked:   revoked,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// ============================================================
// Register — POST /v1/auth/register
// ============================================================

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	displayName := strings.TrimSpace(req.DisplayName)

	if !emailPattern.MatchString(email) {
		return nil, &domain.ErrValidation{Field: "email", Message: MsgInvalidEmail}
	}
	if len(req.Password) < minPasswordLength {
		return nil, &domain.ErrValidation{Field: "password", Message: MsgPasswordTooShort}
	}
	if len(req.Password) > maxPasswordLength {
		return nil, &domain.ErrValidation{Field: "password", Message: MsgPasswordTooLong}
	}
	if req.Password != req.ConfirmPassword {
		return nil, &domain.ErrValidation{Field: "confirmPassword", Message: MsgPasswordsMismatch}
	}

	user, err := s.identity.SignUp(ctx, email, req.Password, displayName)
	if err != nil {
		return nil, s.providerFailure("register", err, registerMessages, defaultRegisterMessage)
	}
	span.SetAttributes(attribute.String("uid", user.ID))

	s.logger.Info("user registered", zap.String("uid", user.ID))
	return s.issue(user, MsgRegistered)
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	if !emailPattern.MatchString(email) {
		return nil, &domain.ErrValidation{Field: "email", Message: MsgInvalidEmail}
	}
	if req.Password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: MsgPasswordRequired}
	}

	user, err := s.identity.SignIn(ctx, email, req.Password)
	if err != nil {
		return nil, s.providerFailure("login", err, loginMessages, defaultLoginMessage)
	}
	span.SetAttributes(attribute.String("uid", user.ID))

	s.logger.Info("user signed in", zap.String("uid", user.ID))
	return s.issue(user, MsgSignedIn)
}

// providerFailure maps a provider error code to its user-facing message.
// Unknown codes fall back to the provider's own message, then to def.
func (s *AuthService) providerFailure(flow string, err error, messages map[string]string, def string) error {
	var provider *domain.ErrAuthProvider
	if !errors.As(err, &provider) {
		s.logger.Error("identity provider call failed", zap.String("flow", flow), zap.Error(err))
		return fmt.Errorf("%s: %w", flow, err)
	}

	msg, ok := messages[provider.Code]
	if !ok {
		msg = provider.Message
		if msg == "" {
			msg = def
		}
	}
	s.logger.Warn("identity provider rejected credentials",
		zap.String("flow", flow),
		zap.String("code", provider.Code),
	)
	return &domain.ErrAuthProvider{Code: provider.Code, Message: msg, Err: err}
}

// ============================================================
// Logout — POST /v1/auth/logout
// ============================================================

// Logout revokes the session's token id until the token would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *SessionClaims) error {
	_, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if claims == nil || claims.ID == "" {
		return &domain.ErrValidation{Field: "session", Message: MsgSignOutFailed}
	}

	ttl := s.accessTTL
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl > 0 {
		s.revoked.SetWithTTL(claims.ID, true, ttl)
	}

	s.logger.Info("user signed out", zap.String("uid", claims.Subject))
	return nil
}

// ============================================================
// Session — GET /v1/auth/session
// ============================================================

// Session is the current-session accessor.
func (s *AuthService) Session(claims *SessionClaims) *domain.SessionView {
	return s.SessionFor(claims.User())
}

// SessionFor builds the session view for user.
func (s *AuthService) SessionFor(user *domain.User) *domain.SessionView {
	return &domain.SessionView{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Greeting:    navigation.Greeting(user),
	}
}

// ValidateAccessToken is used by the auth middleware.
func (s *AuthService) ValidateAccessToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Invalid or expired session"}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "Invalid session"}
	}
	if revoked, _ := s.revoked.Get(claims.ID); revoked {
		return nil, &domain.ErrUnauthorized{Message: "Session has been signed out"}
	}
	return claims, nil
}

// ============================================================
// Internal JWT helpers
// ============================================================

func (s *AuthService) issue(user *domain.User, message string) (*domain.AuthResponse, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: user.Email,
		Name:  user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    tokenIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &domain.AuthResponse{
		AccessToken: signed,
		TokenType:   tokenType,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		Message:     message,
		Session:     *s.Session(&claims),
	}, nil
}
