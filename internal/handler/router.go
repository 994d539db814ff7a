package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// defaultStreamLimit bounds concurrent WebSocket dashboards when Services
// does not provide a bulkhead.
const defaultStreamLimit = 100

// Pinger is a backend that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups everything the router serves. Any service may be nil;
// its routes then answer 503, except DevTools whose routes are not mounted.
type Services struct {
	Auth      *service.AuthService
	Profile   *service.ProfileService
	Dashboard *service.DashboardService
	Payments  *service.PaymentService
	Trends    *service.TrendsService
	Alerts    *service.AlertService
	Export    *service.ExportService
	DevTools  *service.DevToolsService

	// Store is pinged by /healthz and /readyz.
	Store     Pinger
	StoreName string

	AllowedOrigins []string
	Streams        *resilience.Bulkhead
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	origins := svc.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	streams := svc.Streams
	if streams == nil {
		streams = resilience.NewBulkhead(defaultStreamLimit)
	}

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Store, svc.StoreName))
	r.Get("/readyz", readyzHandler(svc.Store, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/summary", usageMetricsHandler(metrics))

		if svc.Auth == nil {
			r.HandleFunc("/*", unavailableHandler("authentication"))
			return
		}

		// =============================================
		// Authentication
		// =============================================
		r.Post("/auth/register", authRegisterHandler(svc.Auth, logger))
		r.Post("/auth/login", authLoginHandler(svc.Auth, logger))

		r.With(OptionalAuthMiddleware(svc.Auth, logger)).Get("/navigation", navigationHandler(svc.Profile))

		// =============================================
		// Protected routes
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svc.Auth, logger))

			r.Post("/auth/logout", authLogoutHandler(svc.Auth, logger))
			r.Get("/auth/session", authSessionHandler(svc.Auth, svc.Profile))

			if svc.Profile != nil {
				r.Get("/profile", getProfileHandler(svc.Profile, logger))
				r.Put("/profile", putProfileHandler(svc.Profile, logger))
			} else {
				r.HandleFunc("/profile", unavailableHandler("profile"))
			}

			if svc.Dashboard != nil {
				r.Get("/dashboard", dashboardHandler(svc.Dashboard))
				r.Get("/dashboard/stream", dashboardStreamHandler(svc.Dashboard, newUpgrader(origins), streams, metrics, logger))
			} else {
				r.HandleFunc("/dashboard", unavailableHandler("dashboard"))
				r.HandleFunc("/dashboard/stream", unavailableHandler("dashboard"))
			}
			if svc.Export != nil {
				r.Get("/dashboard/export", dashboardExportHandler(svc.Export, logger))
			}

			if svc.Trends != nil {
				r.Get("/dashboard/history", dashboardHistoryHandler(svc.Trends))
				r.Get("/trends", trendsHandler(svc.Trends))
			}

			if svc.Payments != nil {
				r.Post("/payments", payBillHandler(svc.Payments, logger))
				r.Get("/payments", listPaymentsHandler(svc.Payments, logger))
			}

			if svc.Alerts != nil {
				r.Get("/alerts", getAlertHandler(svc.Alerts, logger))
				r.Put("/alerts", putAlertHandler(svc.Alerts, logger))
			}
		})

		// =============================================
		// Dev tools (DEV_TOOLS=true only)
		// =============================================
		if svc.DevTools != nil {
			r.Put("/dev/devices/{deviceId}", devPutDeviceHandler(svc.DevTools, logger))
			r.Post("/dev/history/{uid}", devAddHistoryHandler(svc.DevTools, logger))
		}
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(store Pinger, storeName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(ctx)
			sh := domain.ServiceHealth{
				Name:        storeName,
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				sh.Status = "degraded"
				sh.Error = err.Error()
			}
			services = append(services, sh)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func usageMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetUsageSnapshot())
	}
}

func unavailableHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusServiceUnavailable, name+" is not configured")
	}
}
