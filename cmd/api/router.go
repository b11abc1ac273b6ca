package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/doubloon-app/doubloon/pkg/middleware"
	"github.com/doubloon-app/doubloon/pkg/observability"
)

// SetupRouter configures all routes and returns the HTTP handler
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	registerAPIRoutes(mux, deps)
	registerUtilityRoutes(mux, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           7200,
	})

	return corsHandler.Handler(mux)
}

// registerAPIRoutes wires the authenticated API surface. Login is the only
// route outside the auth middleware.
func registerAPIRoutes(mux *http.ServeMux, deps *Dependencies) {
	common := []middleware.Middleware{
		middleware.RequestID(),
		middleware.Tracing(otel.Tracer("doubloon/api")),
		middleware.Recovery(deps.Logger),
		middleware.Logging(deps.Logger),
		observability.MetricsMiddleware,
	}
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		common = append(common, middleware.RateLimit(limiter))
	}

	public := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, common...)
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, append(common, middleware.Auth(deps.AuthService))...)
	}

	mux.Handle("POST /api/auth/login", public(deps.AuthHandler.Login))
	mux.Handle("POST /api/auth/logout", protected(deps.AuthHandler.Logout))

	mux.Handle("GET /api/dashboard/overview", protected(deps.DashboardHandler.Overview))
	mux.Handle("GET /api/transactions", protected(deps.DashboardHandler.Transactions))
	mux.Handle("POST /api/transactions", protected(deps.TransactionHandler.Create))

	mux.Handle("GET /api/balances", protected(deps.TransactionHandler.Balances))
	mux.Handle("POST /api/balances/{id}/settle", protected(deps.TransactionHandler.Settle))

	mux.Handle("POST /api/import", protected(deps.ImportHandler.Import))
	mux.Handle("GET /api/import/jobs/{id}", protected(deps.ImportHandler.Job))
	mux.Handle("GET /api/import/providers", protected(deps.ImportHandler.Providers))

	mux.Handle("POST /api/classify", protected(deps.ClassifyHandler.Run))

	deps.Logger.Info("API routes configured")
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, writeErr := w.Write([]byte("database unhealthy")); writeErr != nil {
				deps.Logger.Error("failed to write health response", slog.Any("error", writeErr))
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			deps.Logger.Error("failed to write health response", slog.Any("error", err))
		}
	})

	// Extended health with per-dependency detail
	mux.HandleFunc("/health/details", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status string `json:"status"`
			Detail string `json:"detail,omitempty"`
		}
		result := map[string]status{
			"db":    {Status: "ok"},
			"ai":    {Status: "ok"},
			"ready": {Status: "ok"},
		}

		if err := deps.DB.Health(); err != nil {
			result["db"] = status{Status: "fail", Detail: err.Error()}
			result["ready"] = status{Status: "fail", Detail: "db unavailable"}
		}
		if deps.Config.AI.GeminiAPIKey == "" {
			result["ai"] = status{Status: "warn", Detail: "GEMINI_API_KEY missing"}
		}

		code := http.StatusOK
		for _, v := range result {
			if v.Status == "fail" {
				code = http.StatusServiceUnavailable
				break
			}
		}
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health details", slog.Any("error", err))
		}
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})

	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
