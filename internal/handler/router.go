package handler

import (
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/service"
	"github.com/conex-ia/agentesv2-sub000/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router serves.
type Services struct {
	Auth        *service.AuthService
	Dashboard   *service.DashboardService
	Projects    *service.ProjectService
	Bases       *service.BaseService
	Trainings   *service.TrainingService
	Products    *service.ProductService
	Bots        *service.BotService
	Lab         *service.LabService
	Preferences *service.PreferenceService
}

// NewRouter creates the HTTP router with all routes and middleware.
// Everything under /v1 except auth requires a Bearer token; requests to
// unknown /v1 paths are redirected to the dashboard, the UI's home.
func NewRouter(svcs Services, registry *store.Registry, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(registry))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Authentication (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authLoginHandler(svcs.Auth, logger))
			r.Post("/refresh", authRefreshHandler(svcs.Auth, logger))
		})

		// Everything else requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			// Dashboard
			r.Get("/dashboard", dashboardHandler(svcs.Dashboard, logger))
			r.Get("/dashboard/sync", dashboardSyncHandler(svcs.Dashboard))

			// Projects
			r.Get("/projects", listProjectsHandler(svcs.Projects, logger))
			r.Post("/projects", createProjectHandler(svcs.Projects, logger))
			r.Put("/projects/{projectId}", renameProjectHandler(svcs.Projects, logger))
			r.Delete("/projects/{projectId}", deleteProjectHandler(svcs.Projects, logger))

			// Knowledge bases
			r.Get("/bases", listBasesHandler(svcs.Bases, logger))
			r.Post("/bases", createBaseHandler(svcs.Bases, logger))
			r.Get("/bases/{baseId}", getBaseHandler(svcs.Bases, logger))
			r.Put("/bases/{baseId}", renameBaseHandler(svcs.Bases, logger))
			r.Put("/bases/{baseId}/prompt", updateBasePromptHandler(svcs.Bases, logger))
			r.Get("/bases/{baseId}/trainings", listBaseTrainingsHandler(svcs.Trainings, logger))
			r.Delete("/bases/{baseId}", deleteBaseHandler(svcs.Bases, logger))

			// Trainings
			r.Get("/trainings", listTrainingsHandler(svcs.Trainings, logger))
			r.Post("/trainings", ingestTrainingHandler(svcs.Trainings, logger))
			r.Get("/trainings/{trainingId}", getTrainingHandler(svcs.Trainings, logger))
			r.Post("/trainings/{trainingId}/close", closeTrainingHandler(svcs.Trainings, logger))

			// Products
			r.Get("/products", listProductsHandler(svcs.Products, logger))
			r.Post("/products", submitProductsHandler(svcs.Products, logger))

			// WhatsApp bots
			r.Get("/whatsapp", listBotsHandler(svcs.Bots, logger))
			r.Post("/whatsapp", createBotHandler(svcs.Bots, logger))
			r.Get("/whatsapp/{botId}", getBotHandler(svcs.Bots, logger))
			r.Get("/whatsapp/{botId}/qr", botQRHandler(svcs.Bots, logger))
			r.Post("/whatsapp/{botId}/connect", connectBotHandler(svcs.Bots, logger))
			r.Post("/whatsapp/{botId}/disconnect", disconnectBotHandler(svcs.Bots, logger))
			r.Post("/whatsapp/{botId}/link", linkBotHandler(svcs.Bots, logger))
			r.Post("/whatsapp/{botId}/unlink", unlinkBotHandler(svcs.Bots, logger))
			r.Put("/whatsapp/{botId}/active", setBotActiveHandler(svcs.Bots, logger))
			r.Delete("/whatsapp/{botId}", hideBotHandler(svcs.Bots, logger))

			// Lab assistants
			r.Get("/lab", listAssistantsHandler(svcs.Lab, logger))
			r.Post("/lab", createAssistantHandler(svcs.Lab, logger))
			r.Put("/lab/{assistantId}", updateAssistantHandler(svcs.Lab, logger))
			r.Delete("/lab/{assistantId}", deleteAssistantHandler(svcs.Lab, logger))

			// Preferences
			r.Get("/preferences", getPreferencesHandler(svcs.Preferences, logger))
			r.Put("/preferences", savePreferencesHandler(svcs.Preferences, logger))
		})

		// Unknown screens land on the dashboard.
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/v1/dashboard", http.StatusTemporaryRedirect)
		})
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// readyzHandler reports readiness along with the number of live table
// mirrors, which is what actually serves traffic.
func readyzHandler(registry *store.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ready",
			"mirrors": registry.Active(),
		})
	}
}
