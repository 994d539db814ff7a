package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Payments, trends & alerts
// ============================================================

type paymentListResponse struct {
	Payments []domain.Payment `json:"payments"`
}

type alertResponse struct {
	Alert   *domain.UsageAlert `json:"alert"`
	Message string             `json:"message,omitempty"`
}

func payBillHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payments")
		defer span.End()

		// The amount is optional; an empty body pays the current bill.
		var req domain.PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := svc.Pay(ctx, UserFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func listPaymentsHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/payments")
		defer span.End()

		payments, err := svc.List(ctx, UserFromContext(ctx).ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, paymentListResponse{Payments: payments})
	}
}

func trendsHandler(svc *service.TrendsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/trends")
		defer span.End()

		writeJSON(w, http.StatusOK, svc.Report(ctx, UserFromContext(ctx).ID))
	}
}

func getAlertHandler(svc *service.AlertService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/alerts")
		defer span.End()

		a, err := svc.Get(ctx, UserFromContext(ctx).ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, alertResponse{Alert: a})
	}
}

func putAlertHandler(svc *service.AlertService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/alerts")
		defer span.End()

		var req domain.UsageAlertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		a, msg, err := svc.Set(ctx, UserFromContext(ctx).ID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, alertResponse{Alert: a, Message: msg})
	}
}
