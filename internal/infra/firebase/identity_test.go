package firebase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/firebase"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/resilience"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
)

type mockAdmin struct {
	record      *auth.UserRecord
	err         error
	updatedUID  string
	updateCalls int
}

func (m *mockAdmin) GetUser(_ context.Context, _ string) (*auth.UserRecord, error) {
	return m.record, m.err
}

func (m *mockAdmin) UpdateUser(_ context.Context, uid string, _ *auth.UserToUpdate) (*auth.UserRecord, error) {
	m.updateCalls++
	m.updatedUID = uid
	return m.record, m.err
}

func newIdentity(t *testing.T, h http.HandlerFunc, admin firebase.AdminAuth) *firebase.Identity {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return firebase.NewIdentity(srv.Client(), srv.URL, "test-key", admin,
		resilience.NewCircuitBreaker("identity-test"), resilience.Config{}, zap.NewNop())
}

func writeProviderError(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"error":{"code":400,"message":"` + msg + `"}}`))
}

func TestIdentity_SignUpSetsDisplayName(t *testing.T) {
	var methods []string
	id := newIdentity(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, strings.TrimPrefix(r.URL.Path, "/v1/"))
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key")
		}
		switch r.URL.Path {
		case "/v1/accounts:signUp":
			_, _ = w.Write([]byte(`{"localId":"uid-1","email":"juan@example.com","idToken":"tok"}`))
		case "/v1/accounts:update":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["displayName"] != "Juan" || body["idToken"] != "tok" {
				t.Errorf("unexpected update body %v", body)
			}
			_, _ = w.Write([]byte(`{}`))
		}
	}, &mockAdmin{})

	u, err := id.SignUp(context.Background(), "juan@example.com", "secret1", "Juan")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if u.ID != "uid-1" || u.DisplayName != "Juan" {
		t.Errorf("unexpected user %+v", u)
	}
	if len(methods) != 2 || methods[1] != "accounts:update" {
		t.Errorf("expected signUp then update, got %v", methods)
	}
}

func TestIdentity_ProviderErrorCodes(t *testing.T) {
	cases := []struct {
		providerMsg string
		want        string
	}{
		{"EMAIL_EXISTS", domain.AuthCodeEmailInUse},
		{"WEAK_PASSWORD : Password should be at least 6 characters", domain.AuthCodeWeakPassword},
		{"INVALID_PASSWORD", domain.AuthCodeWrongPassword},
		{"EMAIL_NOT_FOUND", domain.AuthCodeUserNotFound},
		{"USER_DISABLED", domain.AuthCodeUserDisabled},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled", domain.AuthCodeTooManyRequests},
		{"INVALID_LOGIN_CREDENTIALS", domain.AuthCodeInvalidCredential},
		{"SOMETHING_NEW", "auth/something-new"},
	}

	for _, tc := range cases {
		t.Run(tc.providerMsg, func(t *testing.T) {
			id := newIdentity(t, func(w http.ResponseWriter, _ *http.Request) {
				writeProviderError(w, tc.providerMsg)
			}, &mockAdmin{})

			_, err := id.SignIn(context.Background(), "juan@example.com", "secret1")
			var pe *domain.ErrAuthProvider
			if !errors.As(err, &pe) {
				t.Fatalf("expected ErrAuthProvider, got %v", err)
			}
			if pe.Code != tc.want {
				t.Errorf("code = %q, want %q", pe.Code, tc.want)
			}
		})
	}
}

func TestIdentity_ServerFailureIsNetworkError(t *testing.T) {
	id := newIdentity(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, &mockAdmin{})

	_, err := id.SignIn(context.Background(), "juan@example.com", "secret1")
	var pe *domain.ErrAuthProvider
	if !errors.As(err, &pe) || pe.Code != domain.AuthCodeNetworkFailed {
		t.Fatalf("expected network-request-failed, got %v", err)
	}
}

func TestIdentity_GetUserMetadata(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	admin := &mockAdmin{record: &auth.UserRecord{
		UserInfo: &auth.UserInfo{UID: "uid-1", Email: "juan@example.com", DisplayName: "Juan"},
		UserMetadata: &auth.UserMetadata{
			CreationTimestamp:  created.UnixMilli(),
			LastLogInTimestamp: created.Add(time.Hour).UnixMilli(),
		},
	}}
	id := newIdentity(t, func(http.ResponseWriter, *http.Request) {}, admin)

	u, err := id.GetUser(context.Background(), "uid-1")
	if err != nil {
		t.Fatal(err)
	}
	if !u.CreatedAt.Equal(created) || !u.LastSignInAt.Equal(created.Add(time.Hour)) {
		t.Errorf("unexpected metadata %+v", u)
	}
	if u.Email != "juan@example.com" || u.DisplayName != "Juan" {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestIdentity_UpdateDisplayName(t *testing.T) {
	admin := &mockAdmin{record: &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "uid-1"}}}
	id := newIdentity(t, func(http.ResponseWriter, *http.Request) {}, admin)

	if err := id.UpdateDisplayName(context.Background(), "uid-1", "Maria"); err != nil {
		t.Fatal(err)
	}
	if admin.updateCalls != 1 || admin.updatedUID != "uid-1" {
		t.Errorf("expected one update for uid-1, got %d for %q", admin.updateCalls, admin.updatedUID)
	}
}
