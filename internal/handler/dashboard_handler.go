package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ============================================================
// Dashboard
// ============================================================

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

type historyResponse struct {
	History []domain.HistoryEntry `json:"history"`
}

func dashboardHandler(svc *service.DashboardService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		snap := svc.Snapshot(ctx, UserFromContext(ctx))
		span.SetAttributes(attribute.String("dashboard.status", string(snap.Status)))
		writeJSON(w, http.StatusOK, snap)
	}
}

func dashboardHistoryHandler(svc *service.TrendsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/history")
		defer span.End()

		writeJSON(w, http.StatusOK, historyResponse{History: svc.History(ctx, UserFromContext(ctx).ID)})
	}
}

func dashboardExportHandler(svc *service.ExportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/export")
		defer span.End()

		out, err := svc.Export(ctx, UserFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
		w.WriteHeader(http.StatusOK)
		w.Write(out.Data)
	}
}

// newUpgrader accepts same-origin requests, requests without an Origin header
// and the configured CORS origins.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}
}

// dashboardStreamHandler upgrades to a WebSocket and forwards every snapshot
// of the live dashboard until either side goes away.
func dashboardStreamHandler(svc *service.DashboardService, upgrader *websocket.Upgrader, streams *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !streams.TryAcquire() {
			logger.Warn("dashboard stream rejected: too many open streams")
			writeError(w, http.StatusServiceUnavailable, "too many live dashboards, try again later")
			return
		}
		defer streams.Release()

		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/stream", trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		user := UserFromContext(ctx)
		span.SetAttributes(attribute.String("uid", user.ID))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		metrics.SubscriptionOpened()
		defer metrics.SubscriptionClosed()
		logger.Info("dashboard stream opened",
			zap.String("uid", user.ID),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
		)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		// Clients never send data; reading only surfaces the close frame.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()

		updates := svc.Stream(ctx, user)
		for {
			select {
			case <-ctx.Done():
				logger.Info("dashboard stream closed", zap.String("uid", user.ID))
				return
			case snap, ok := <-updates:
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if !ok {
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				span.AddEvent("snapshot", trace.WithAttributes(attribute.String("status", string(snap.Status))))
				if err := conn.WriteJSON(snap); err != nil {
					logger.Debug("dashboard stream write failed", zap.String("uid", user.ID), zap.Error(err))
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					return
				}
			}
		}
	}
}
