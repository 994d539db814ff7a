package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"
	"go.uber.org/zap"
)

type contextKey string

const claimsKey contextKey = "sessionClaims"

// accessTokenParam carries the token for WebSocket upgrades, where browsers
// cannot set an Authorization header.
const accessTokenParam = "access_token"

// bearerToken extracts the token from the Authorization header or, failing
// that, the access_token query parameter. ok is false when a header is
// present but malformed.
func bearerToken(r *http.Request) (token string, ok bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return r.URL.Query().Get(accessTokenParam), true
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// JWTAuthMiddleware validates Bearer tokens and injects the session claims
// into context.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}
			if tokenString == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := authSvc.ValidateAccessToken(tokenString)
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware injects claims when a valid token is supplied and
// otherwise lets the request through anonymously.
func OptionalAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok || tokenString == "" || authSvc == nil {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := authSvc.ValidateAccessToken(tokenString)
			if err != nil {
				logger.Debug("auth: ignoring invalid optional token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// ClaimsFromContext returns the authenticated session, or nil.
func ClaimsFromContext(ctx context.Context) *service.SessionClaims {
	v, _ := ctx.Value(claimsKey).(*service.SessionClaims)
	return v
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.User()
	}
	return nil
}
