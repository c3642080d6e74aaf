package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agrilink/usermgmt/internal/accounts"
	"github.com/agrilink/usermgmt/internal/metrics"
	"github.com/agrilink/usermgmt/internal/service"
)

const requestTimeout = 60 * time.Second

type App struct {
	svc         *service.Service
	metrics     *metrics.Registry
	corsOrigins []string
	version     string
}

// route is one API endpoint. The same table drives the router and the OpenAPI document.
type route struct {
	method  string
	path    string
	tag     string
	summary string
	access  access
	handler http.HandlerFunc
	status  int
}

func newApp(cfg Config) *App {
	return &App{
		svc:         cfg.Service,
		metrics:     cfg.Metrics,
		corsOrigins: cfg.CORSOrigins,
		version:     cfg.Version,
	}
}

func (a *App) routeTable() []route {
	farmer := only(accounts.RoleFarmer)
	expert := only(accounts.RoleExpert)
	admin := only(accounts.RoleAdmin)

	return []route{
		{http.MethodPost, "/api/auth/register/farmer/", "auth", "Register a farmer account", public, a.handleRegisterFarmer, http.StatusCreated},
		{http.MethodPost, "/api/auth/register/expert/", "auth", "Register an expert account", public, a.handleRegisterExpert, http.StatusCreated},
		{http.MethodPost, "/api/auth/login/", "auth", "Obtain an access/refresh token pair", public, a.handleLogin, http.StatusOK},
		{http.MethodPost, "/api/auth/token/refresh/", "auth", "Exchange a refresh token for a new access token", public, a.handleRefresh, http.StatusOK},
		{http.MethodPost, "/api/auth/change-password/", "auth", "Change the current user's password", authed, a.handleChangePassword, http.StatusOK},
		{http.MethodPost, "/api/auth/forgot-password/", "auth", "Email a password reset token", public, a.handleForgotPassword, http.StatusOK},
		{http.MethodPost, "/api/auth/reset-password/", "auth", "Reset a password with a token", public, a.handleResetPassword, http.StatusOK},

		{http.MethodGet, "/api/users/farmer/profile/", "users", "Get the farmer profile", farmer, a.handleFarmerProfile, http.StatusOK},
		{http.MethodPut, "/api/users/farmer/profile/", "users", "Update the farmer profile", farmer, a.handleUpdateFarmerProfile, http.StatusOK},
		{http.MethodGet, "/api/users/expert/profile/", "users", "Get the expert profile", expert, a.handleExpertProfile, http.StatusOK},
		{http.MethodPut, "/api/users/expert/profile/", "users", "Update the expert profile", expert, a.handleUpdateExpertProfile, http.StatusOK},
		{http.MethodGet, "/api/users/points/", "users", "List the current user's point transactions", authed, a.handlePointHistory, http.StatusOK},
		{http.MethodGet, "/api/users/", "users", "List users, optionally by ?role=", admin, a.handleListUsers, http.StatusOK},
		{http.MethodPut, "/api/users/{id}/", "users", "Approve, block or edit a user", admin, a.handleUpdateUser, http.StatusOK},

		{http.MethodGet, "/api/community/posts/", "community", "List approved posts", only(accounts.RoleFarmer, accounts.RoleAdmin), a.handlePosts, http.StatusOK},
		{http.MethodPost, "/api/community/posts/", "community", "Create a post", only(accounts.RoleFarmer, accounts.RoleAdmin), a.handleCreatePost, http.StatusCreated},
		{http.MethodPost, "/api/community/responses/", "community", "Respond to a post", only(accounts.RoleFarmer, accounts.RoleExpert), a.handleCreateResponse, http.StatusCreated},
		{http.MethodPut, "/api/community/responses/{id}/validate/", "community", "Validate a response", expert, a.handleValidateResponse, http.StatusOK},
		{http.MethodGet, "/api/community/moderate/", "community", "List posts awaiting moderation", only(accounts.RoleExpert, accounts.RoleAdmin), a.handlePendingPosts, http.StatusOK},
		{http.MethodPut, "/api/community/moderate/{id}/", "community", "Approve, flag or unflag a post", only(accounts.RoleExpert, accounts.RoleAdmin), a.handleModeratePost, http.StatusOK},
		{http.MethodGet, "/api/community/farmer-post-counts/", "community", "Post counts per farmer", admin, a.handleFarmerPostCounts, http.StatusOK},

		{http.MethodGet, "/api/consultations/slots/", "consultations", "List own open slots", expert, a.handleExpertSlots, http.StatusOK},
		{http.MethodPost, "/api/consultations/slots/", "consultations", "Create an availability slot", expert, a.handleCreateSlot, http.StatusCreated},
		{http.MethodDelete, "/api/consultations/slots/{id}/", "consultations", "Deactivate an availability slot", expert, a.handleDeactivateSlot, http.StatusNoContent},
		{http.MethodGet, "/api/consultations/available-slots/", "consultations", "List bookable slots", farmer, a.handleAvailableSlots, http.StatusOK},
		{http.MethodGet, "/api/consultations/bookings/", "consultations", "List own bookings", farmer, a.handleFarmerBookings, http.StatusOK},
		{http.MethodPost, "/api/consultations/bookings/", "consultations", "Book a slot", farmer, a.handleCreateBooking, http.StatusCreated},
		{http.MethodPut, "/api/consultations/bookings/{id}/", "consultations", "Confirm, cancel or complete a booking", only(accounts.RoleFarmer, accounts.RoleExpert), a.handleUpdateBooking, http.StatusOK},
		{http.MethodGet, "/api/consultations/expert-bookings/", "consultations", "List bookings on own slots", expert, a.handleExpertBookings, http.StatusOK},

		{http.MethodGet, "/api/crop-health/disease-history/", "crop-health", "Paginated detection history", farmer, a.handleDiseaseHistory, http.StatusOK},
		{http.MethodGet, "/api/crop-health/alerts/", "crop-health", "Check detections and send disease alerts", farmer, a.handleAlerts, http.StatusOK},
		{http.MethodPost, "/api/crop-health/retrain-model/", "crop-health", "Trigger model retraining", admin, a.handleRetrain, http.StatusOK},

		{http.MethodPost, "/api/content/educational-content/", "content", "Submit an educational resource", expert, a.handleEducationalContent, http.StatusCreated},
		{http.MethodGet, "/api/content/approval/", "content", "List unapproved posts", admin, a.handleContentApprovalList, http.StatusOK},
		{http.MethodPut, "/api/content/approval/{id}/", "content", "Set a post's approval", admin, a.handleContentApproval, http.StatusOK},

		{http.MethodGet, "/api/system/health/", "system", "Recorded system metrics, optionally by ?name=", admin, a.handleSystemHealth, http.StatusOK},
		{http.MethodPost, "/api/system/feedback/", "system", "Submit feedback", farmer, a.handleFeedback, http.StatusCreated},
		{http.MethodGet, "/api/system/feedback-analysis/", "system", "Feedback totals", admin, a.handleFeedbackAnalysis, http.StatusOK},
		{http.MethodGet, "/api/system/settings/", "system", "Get runtime settings", admin, a.handleSettings, http.StatusOK},
		{http.MethodPut, "/api/system/settings/", "system", "Update runtime settings", admin, a.handleUpdateSettings, http.StatusOK},
		{http.MethodGet, "/api/crop-types/", "system", "Supported crop types", public, a.handleCropTypes, http.StatusOK},
	}
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.observe)
	r.Use(middleware.Recoverer)
	r.Use(a.corsHandler())
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(a.withAuthContext)

	for _, rt := range a.routeTable() {
		r.Method(rt.method, rt.path, a.require(rt.access, rt.handler))
	}

	r.Get("/healthz", a.handleHealthz)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}
	r.Get("/openapi.json", a.handleOpenAPIJSON)
	r.Get("/openapi.yaml", a.handleOpenAPIYAML)
	r.Get("/docs/", a.handleDocs)
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, `Method "`+r.Method+`" not allowed.`)
	})
	return r
}

func (a *App) corsHandler() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   a.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(a.corsOrigins) == 0 || (len(a.corsOrigins) == 1 && a.corsOrigins[0] == "*") {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return cors.Handler(opts)
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": a.version})
}
