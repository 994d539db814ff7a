package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/navigation"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Authentication & navigation
// ============================================================

func authRegisterHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/register")
		defer span.End()

		var req domain.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.Register(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func authLoginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func authLogoutHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		if err := authSvc.Logout(ctx, ClaimsFromContext(ctx)); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{Message: "Signed out"})
	}
}

func authSessionHandler(authSvc *service.AuthService, profiles *service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		writeJSON(w, http.StatusOK, authSvc.SessionFor(currentUser(ctx, profiles)))
	}
}

func navigationHandler(profiles *service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		fragment := r.URL.Query().Get("fragment")
		writeJSON(w, http.StatusOK, navigation.Resolve(fragment, currentUser(ctx, profiles)))
	}
}

// currentUser is the session user with the latest saved display name.
func currentUser(ctx context.Context, profiles *service.ProfileService) *domain.User {
	user := UserFromContext(ctx)
	if profiles == nil {
		return user
	}
	return profiles.CurrentUser(ctx, user)
}
