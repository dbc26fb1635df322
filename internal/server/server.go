package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dukerupert/pantrytracker/internal/auth"
	"github.com/dukerupert/pantrytracker/internal/config"
	"github.com/dukerupert/pantrytracker/internal/handler"
	"github.com/dukerupert/pantrytracker/internal/metrics"
	"github.com/dukerupert/pantrytracker/internal/middleware"
	"github.com/dukerupert/pantrytracker/internal/service"
	ws "github.com/dukerupert/pantrytracker/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
	tokenIssuer    = "pantrytracker"
)

type Server struct {
	hub         *ws.Hub
	authSvc     *service.AuthService
	households  *service.HouseholdService
	authH       *handler.AuthHandler
	householdH  *handler.HouseholdHandler
	pantryH     *handler.PantryHandler
	rateLimiter *middleware.RateLimiter
	corsOrigin  string
	logger      *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, catalog service.CatalogSearcher, logger *slog.Logger) *Server {
	tokens := auth.NewTokenManager(cfg.JWTSecret, tokenIssuer)

	authSvc := service.NewAuthService(db, tokens, cfg.SessionTTL, logger)
	householdSvc := service.NewHouseholdService(db, logger)
	pantrySvc := service.NewPantryService(db, catalog, logger)

	hub := ws.NewHub(logger.With("component", "websocket"))
	householdSvc.SetNotifier(hub)
	pantrySvc.SetNotifier(hub)

	return &Server{
		hub:         hub,
		authSvc:     authSvc,
		households:  householdSvc,
		authH:       handler.NewAuthHandler(authSvc, !cfg.IsDevelopment(), logger.With("component", "auth_handler")),
		householdH:  handler.NewHouseholdHandler(householdSvc, logger.With("component", "household_handler")),
		pantryH:     handler.NewPantryHandler(pantrySvc, logger.With("component", "pantry_handler")),
		rateLimiter: middleware.NewRateLimiter(authRateLimit, authRateWindow),
		corsOrigin:  cfg.CORSOrigin,
		logger:      logger,
	}
}

// Hub returns the live update hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Cleanup deletes expired sessions and prunes stale rate-limit entries.
func (s *Server) Cleanup(ctx context.Context) {
	n, err := s.authSvc.CleanupSessions(ctx)
	if err != nil {
		s.logger.Error("session cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info("expired sessions removed", "count", n)
	}
	if n := s.rateLimiter.Cleanup(); n > 0 {
		s.logger.Debug("rate limit buckets pruned", "count", n)
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/auth/register", s.rateLimited(s.authH.Register))
	mux.HandleFunc("POST /api/auth/login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("GET /api/category", s.pantryH.ListCategories)

	s.registerProtectedRoutes(mux)

	// The metrics middleware sits directly around the mux so it sees the
	// matched pattern.
	var h http.Handler = metrics.HTTPMetricsMiddleware(mux)
	h = middleware.CORS(s.corsOrigin)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	h = middleware.RequestID(h)
	return otelhttp.NewHandler(h, "pantrytracker")
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return s.rateLimiter.Middleware(middleware.KeyByIP)(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	requireAuth := middleware.RequireAuth(s.authSvc, s.logger.With("component", "auth_middleware"))
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(h))
	}

	// Auth
	handle("GET /api/auth/me", s.authH.Me)
	handle("POST /api/auth/logout", s.authH.Logout)

	// Household
	handle("POST /api/household/create", s.householdH.Create)
	handle("POST /api/household/join", s.householdH.Join)
	handle("GET /api/household/members", s.householdH.Members)
	handle("DELETE /api/household/remove-user/{userId}", s.householdH.RemoveMember)

	// Live updates
	handle("GET /api/ws", ws.Handle(s.hub, s.households, s.corsOrigin, s.logger.With("component", "websocket")))

	// Pantry
	handle("GET /api/pantryitem", s.pantryH.List)
	handle("GET /api/pantryitem/by-category", s.pantryH.ListByCategory)
	handle("GET /api/pantryitem/recent-activity", s.pantryH.RecentActivity)
	handle("GET /api/pantryitem/search-branded", s.pantryH.SearchBranded)
	handle("POST /api/pantryitem", s.pantryH.Add)
	handle("PUT /api/pantryitem/{id}", s.pantryH.Update)
	handle("PUT /api/pantryitem/{id}/quantity", s.pantryH.UpdateQuantity)
	handle("PUT /api/pantryitem/{id}/toggle-monitor", s.pantryH.ToggleMonitor)
	handle("DELETE /api/pantryitem/{id}", s.pantryH.Delete)
}
