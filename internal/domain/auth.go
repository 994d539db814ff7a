package domain

import "time"

// ============================================================
// Identity provider error codes
// ============================================================

const (
	AuthCodeEmailInUse          = "auth/email-already-in-use"
	AuthCodeInvalidEmail        = "auth/invalid-email"
	AuthCodeOperationNotAllowed = "auth/operation-not-allowed"
	AuthCodeWeakPassword        = "auth/weak-password"
	AuthCodeNetworkFailed       = "auth/network-request-failed"
	AuthCodeUserDisabled        = "auth/user-disabled"
	AuthCodeUserNotFound        = "auth/user-not-found"
	AuthCodeWrongPassword       = "auth/wrong-password"
	AuthCodeTooManyRequests     = "auth/too-many-requests"
	AuthCodeInvalidCredential   = "auth/invalid-credential"
)

// User is the identity-provider account behind a session.
type User struct {
	ID           string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	LastSignInAt time.Time `json:"lastSignInAt,omitempty"`
}

// ============================================================
// Auth API requests / responses
// ============================================================

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	DisplayName     string `json:"displayName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	AccessToken string      `json:"accessToken"`
	TokenType   string      `json:"tokenType"`
	ExpiresIn   int         `json:"expiresIn"`
	Message     string      `json:"message"`
	Session     SessionView `json:"session"`
}

// SessionView is the current-session accessor payload.
type SessionView struct {
	UserID      string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Greeting    string `json:"greeting"`
}
