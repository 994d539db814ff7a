package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/resilience"

	"firebase.google.com/go/v4/auth"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DefaultIdentityEndpoint is the Identity Toolkit REST base URL.
const DefaultIdentityEndpoint = "https://identitytoolkit.googleapis.com"

// AdminAuth is the subset of *auth.Client the identity adapter uses.
type AdminAuth interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
}

// Identity implements port.IdentityProvider with the Identity Toolkit REST
// API for password flows and the Admin SDK for user records.
type Identity struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	admin      AdminAuth
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewIdentity creates the Firebase identity adapter.
func NewIdentity(httpClient *http.Client, endpoint, apiKey string, admin AdminAuth, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Identity {
	if endpoint == "" {
		endpoint = DefaultIdentityEndpoint
	}
	return &Identity{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		admin:      admin,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

type updateRequest struct {
	IDToken           string `json:"idToken"`
	DisplayName       string `json:"displayName"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (i *Identity) SignUp(ctx context.Context, email, password, displayName string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Identity.SignUp")
	defer span.End()

	var acct accountResponse
	if err := i.call(ctx, "accounts:signUp", passwordRequest{Email: email, Password: password, ReturnSecureToken: true}, &acct); err != nil {
		return nil, err
	}

	if displayName != "" {
		err := i.call(ctx, "accounts:update", updateRequest{IDToken: acct.IDToken, DisplayName: displayName}, nil)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	i.logger.Info("identity: user registered", zap.String("uid", acct.LocalID))
	return &domain.User{
		ID:           acct.LocalID,
		Email:        acct.Email,
		DisplayName:  displayName,
		CreatedAt:    now,
		LastSignInAt: now,
	}, nil
}

func (i *Identity) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Identity.SignIn")
	defer span.End()

	var acct accountResponse
	if err := i.call(ctx, "accounts:signInWithPassword", passwordRequest{Email: email, Password: password, ReturnSecureToken: true}, &acct); err != nil {
		return nil, err
	}

	return &domain.User{
		ID:           acct.LocalID,
		Email:        acct.Email,
		DisplayName:  acct.DisplayName,
		LastSignInAt: time.Now().UTC(),
	}, nil
}

func (i *Identity) UpdateDisplayName(ctx context.Context, uid, displayName string) error {
	ctx, span := tracer.Start(ctx, "Identity.UpdateDisplayName")
	defer span.End()

	return resilience.Call(ctx, i.cb, i.cfg, "firebase/auth", func() error {
		_, err := i.admin.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).DisplayName(displayName))
		if auth.IsUserNotFound(err) {
			return &domain.ErrNotFound{Resource: "user", ID: uid}
		}
		return err
	})
}

func (i *Identity) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Identity.GetUser")
	defer span.End()

	var rec *auth.UserRecord
	err := resilience.Call(ctx, i.cb, i.cfg, "firebase/auth", func() error {
		var err error
		rec, err = i.admin.GetUser(ctx, uid)
		if auth.IsUserNotFound(err) {
			return &domain.ErrNotFound{Resource: "user", ID: uid}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	u := &domain.User{ID: uid}
	if rec.UserInfo != nil {
		u.Email = rec.Email
		u.DisplayName = rec.DisplayName
	}
	if rec.UserMetadata != nil {
		if ms := rec.UserMetadata.CreationTimestamp; ms > 0 {
			u.CreatedAt = time.UnixMilli(ms).UTC()
		}
		if ms := rec.UserMetadata.LastLogInTimestamp; ms > 0 {
			u.LastSignInAt = time.UnixMilli(ms).UTC()
		}
	}
	return u, nil
}

// call posts body to an Identity Toolkit method. Provider rejections come
// back as *domain.ErrAuthProvider; transport failures are reported with the
// network-request-failed code.
func (i *Identity) call(ctx context.Context, method string, body, out any) error {
	err := resilience.Call(ctx, i.cb, i.cfg, "firebase/identity", func() error {
		return i.post(ctx, method, body, out)
	})
	if err == nil {
		return nil
	}

	var provider *domain.ErrAuthProvider
	if errors.As(err, &provider) {
		return provider
	}
	i.logger.Error("identity: request failed", zap.String("method", method), zap.Error(err))
	return &domain.ErrAuthProvider{Code: domain.AuthCodeNetworkFailed, Err: err}
}

func (i *Identity) post(ctx context.Context, method string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/%s?key=%s", i.endpoint, method, i.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("identity toolkit %s returned %d", method, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var e errorResponse
		_ = json.Unmarshal(buf.Bytes(), &e)
		return providerError(e.Error.Message)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(buf.Bytes(), out)
}

// providerError maps an Identity Toolkit error message such as
// "WEAK_PASSWORD : Password should be at least 6 characters" to a domain code.
func providerError(msg string) *domain.ErrAuthProvider {
	code := msg
	if idx := strings.Index(code, ":"); idx >= 0 {
		code = code[:idx]
	}
	code = strings.TrimSpace(code)

	e := &domain.ErrAuthProvider{Message: msg}
	switch code {
	case "EMAIL_EXISTS":
		e.Code = domain.AuthCodeEmailInUse
	case "INVALID_EMAIL", "MISSING_EMAIL":
		e.Code = domain.AuthCodeInvalidEmail
	case "OPERATION_NOT_ALLOWED", "PASSWORD_LOGIN_DISABLED":
		e.Code = domain.AuthCodeOperationNotAllowed
	case "WEAK_PASSWORD":
		e.Code = domain.AuthCodeWeakPassword
	case "EMAIL_NOT_FOUND":
		e.Code = domain.AuthCodeUserNotFound
	case "INVALID_PASSWORD":
		e.Code = domain.AuthCodeWrongPassword
	case "USER_DISABLED":
		e.Code = domain.AuthCodeUserDisabled
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		e.Code = domain.AuthCodeTooManyRequests
	case "INVALID_LOGIN_CREDENTIALS":
		e.Code = domain.AuthCodeInvalidCredential
	default:
		e.Code = "auth/" + strings.ReplaceAll(strings.ToLower(code), "_", "-")
	}
	return e
}
