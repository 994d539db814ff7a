package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// messageResponse is returned by endpoints whose only payload is a
// user-facing confirmation.
type messageResponse struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// providerStatus maps identity provider codes to HTTP status. Codes not
// listed are treated as bad input.
var providerStatus = map[string]int{
	domain.AuthCodeEmailInUse:          http.StatusConflict,
	domain.AuthCodeUserNotFound:        http.StatusUnauthorized,
	domain.AuthCodeWrongPassword:       http.StatusUnauthorized,
	domain.AuthCodeInvalidCredential:   http.StatusUnauthorized,
	domain.AuthCodeUserDisabled:        http.StatusForbidden,
	domain.AuthCodeTooManyRequests:     http.StatusTooManyRequests,
	domain.AuthCodeNetworkFailed:       http.StatusServiceUnavailable,
	domain.AuthCodeOperationNotAllowed: http.StatusForbidden,
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var forbidden *domain.ErrForbidden
	var unauthorized *domain.ErrUnauthorized
	var conflict *domain.ErrConflict
	var provider *domain.ErrAuthProvider
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &provider):
		status, ok := providerStatus[provider.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		if status == http.StatusServiceUnavailable {
			logger.Error("identity provider unreachable", zap.Error(err))
		} else {
			logger.Info("identity provider rejected request", zap.String("code", provider.Code))
		}
		writeJSON(w, status, errorResponse{Error: provider.Error(), Code: provider.Code})
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service failure", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
