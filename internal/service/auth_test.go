package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/cache"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newAuthService(identity *mockIdentity) *service.AuthService {
	return service.NewAuthService(identity, cache.New[bool](time.Minute), testSecret, time.Hour, zap.NewNop())
}

func TestRegister_LocalValidation(t *testing.T) {
	tests := []struct {
		name string
		req  domain.RegisterRequest
		want string
	}{
		{"bad email", domain.RegisterRequest{Email: "juan@", Password: "secret1", ConfirmPassword: "secret1"}, service.MsgInvalidEmail},
		{"email with space", domain.RegisterRequest{Email: "ju an@example.com", Password: "secret1", ConfirmPassword: "secret1"}, service.MsgInvalidEmail},
		{"short password", domain.RegisterRequest{Email: "juan@example.com", Password: "12345", ConfirmPassword: "12345"}, service.MsgPasswordTooShort},
		{"long password", domain.RegisterRequest{Email: "juan@example.com", Password: strings.Repeat("a", 80), ConfirmPassword: strings.Repeat("a", 80)}, service.MsgPasswordTooLong},
		{"mismatch", domain.RegisterRequest{Email: "juan@example.com", Password: "secret1", ConfirmPassword: "secret2"}, service.MsgPasswordsMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := &mockIdentity{}
			svc := newAuthService(identity)

			_, err := svc.Register(context.Background(), &tt.req)

			var ve *domain.ErrValidation
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Message != tt.want {
				t.Errorf("message = %q, want %q", ve.Message, tt.want)
			}
			if identity.signUps != 0 {
				t.Error("invalid input must not reach the identity provider")
			}
		})
	}
}

func TestRegister_IssuesSession(t *testing.T) {
	svc := newAuthService(&mockIdentity{})

	resp, err := svc.Register(context.Background(), &domain.RegisterRequest{
		DisplayName:     " Juan ",
		Email:           " juan@example.com ",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.TokenType != "Bearer" || resp.ExpiresIn != 3600 {
		t.Errorf("unexpected token metadata %+v", resp)
	}
	if resp.Session.Email != "juan@example.com" || resp.Session.Greeting != "Hello, Juan" {
		t.Errorf("unexpected session %+v", resp.Session)
	}

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token did not validate: %v", err)
	}
	if claims.Subject != "uid-new" || claims.Name != "Juan" || claims.ID == "" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestRegister_ProviderMessages(t *testing.T) {
	tests := []struct {
		code, providerMsg, want string
	}{
		{domain.AuthCodeEmailInUse, "", "This email is already registered. Please sign in instead."},
		{domain.AuthCodeWeakPassword, "", "Password should be at least 6 characters long."},
		{domain.AuthCodeNetworkFailed, "", "Network error. Please check your connection and try again."},
		{"auth/quota-exceeded", "QUOTA_EXCEEDED", "QUOTA_EXCEEDED"},
		{"auth/unknown", "", "An unexpected error occurred during registration."},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			svc := newAuthService(&mockIdentity{err: &domain.ErrAuthProvider{Code: tt.code, Message: tt.providerMsg}})

			_, err := svc.Register(context.Background(), &domain.RegisterRequest{
				Email: "juan@example.com", Password: "secret1", ConfirmPassword: "secret1",
			})

			var pe *domain.ErrAuthProvider
			if !errors.As(err, &pe) {
				t.Fatalf("expected provider error, got %v", err)
			}
			if pe.Message != tt.want || pe.Code != tt.code {
				t.Errorf("got %s %q, want %q", pe.Code, pe.Message, tt.want)
			}
		})
	}
}

func TestLogin_ProviderMessages(t *testing.T) {
	tests := []struct {
		code, want string
	}{
		{domain.AuthCodeUserDisabled, "This account has been disabled. Please contact support."},
		{domain.AuthCodeUserNotFound, "No account found with this email address. Please sign up first."},
		{domain.AuthCodeWrongPassword, "Incorrect password. Please try again."},
		{domain.AuthCodeTooManyRequests, "Too many failed attempts. Please try again later."},
		{domain.AuthCodeInvalidCredential, "Invalid email or password. Please check your credentials."},
		{"auth/other", "An unexpected error occurred during sign in."},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			svc := newAuthService(&mockIdentity{err: &domain.ErrAuthProvider{Code: tt.code}})

			_, err := svc.Login(context.Background(), &domain.LoginRequest{Email: "juan@example.com", Password: "x"})

			var pe *domain.ErrAuthProvider
			if !errors.As(err, &pe) || pe.Message != tt.want {
				t.Errorf("got %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLogin_Validation(t *testing.T) {
	svc := newAuthService(&mockIdentity{})

	_, err := svc.Login(context.Background(), &domain.LoginRequest{Email: "juan@example.com"})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) || ve.Message != service.MsgPasswordRequired {
		t.Errorf("expected password required, got %v", err)
	}
}

func TestLogin_TransportErrorIsNotProviderError(t *testing.T) {
	svc := newAuthService(&mockIdentity{err: &domain.ErrCircuitOpen{Service: "firebase/identity"}})

	_, err := svc.Login(context.Background(), &domain.LoginRequest{Email: "juan@example.com", Password: "secret1"})

	var co *domain.ErrCircuitOpen
	if !errors.As(err, &co) {
		t.Errorf("expected circuit open to pass through, got %v", err)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	svc := newAuthService(&mockIdentity{})
	resp, err := svc.Login(context.Background(), &domain.LoginRequest{Email: "juan@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Logout(context.Background(), claims); err != nil {
		t.Fatalf("logout: %v", err)
	}

	_, err = svc.ValidateAccessToken(resp.AccessToken)
	var ue *domain.ErrUnauthorized
	if !errors.As(err, &ue) {
		t.Errorf("expected revoked token to be rejected, got %v", err)
	}
}

func TestLogout_WithoutSession(t *testing.T) {
	svc := newAuthService(&mockIdentity{})

	err := svc.Logout(context.Background(), &service.SessionClaims{})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) || ve.Message != service.MsgSignOutFailed {
		t.Errorf("expected sign-out failure, got %v", err)
	}
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	svc := newAuthService(&mockIdentity{})

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, service.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "uid-1",
			Issuer:    "electritrack-bfa",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, _ := expired.SignedString([]byte(testSecret))

	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, service.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "uid-1", Issuer: "electritrack-bfa"},
	})
	otherToken, _ := otherKey.SignedString([]byte("another-secret"))

	for name, token := range map[string]string{
		"garbage":   "not-a-token",
		"expired":   expiredToken,
		"wrong key": otherToken,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.ValidateAccessToken(token); err == nil {
				t.Error("expected token to be rejected")
			}
		})
	}
}

func TestSession_GreetingFallsBackToEmail(t *testing.T) {
	svc := newAuthService(&mockIdentity{})

	view := svc.Session(&service.SessionClaims{
		Email:            "maria@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "uid-2"},
	})
	if view.Greeting != "Hello, maria" || view.UserID != "uid-2" {
		t.Errorf("unexpected view %+v", view)
	}
}
