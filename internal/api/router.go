package api

import (
	"net/http"

	"github.com/dom/skillswap/internal/api/handlers"
	"github.com/dom/skillswap/internal/api/middleware"
	"github.com/dom/skillswap/internal/config"
	"github.com/dom/skillswap/internal/metrics"
	"github.com/dom/skillswap/internal/service"
	"github.com/dom/skillswap/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators the router needs beyond the services. Metrics
// and Redis are optional.
type Deps struct {
	Hub     *websocket.Hub
	Metrics *metrics.Metrics
	Redis   *redis.Client
}

func NewRouter(services *service.Services, deps Deps, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	authHandler := handlers.NewAuthHandler(services.Auth)
	catalogHandler := handlers.NewCatalogHandler(services.Catalog, services.Enrollment)
	joinHandler := handlers.NewJoinHandler(services.Settlement)
	accountHandler := handlers.NewAccountHandler(services.Ledger, services.Catalog)
	profileHandler := handlers.NewProfileHandler(services.Profile)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, services.Auth)

	rateLimit := middleware.RateLimit(cfg.RateLimit, deps.Redis)

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth, cfg.LoginPath))
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Get("/categories", catalogHandler.Categories)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth, cfg.LoginPath))

			r.Route("/courses", func(r chi.Router) {
				r.Get("/", catalogHandler.ListCourses)
				r.Post("/", catalogHandler.CreateCourse)
				r.Get("/{id}", catalogHandler.GetCourse)
				r.Put("/{id}", catalogHandler.UpdateCourse)
				r.Delete("/{id}", catalogHandler.DeleteCourse)
				r.Get("/{id}/attendees", catalogHandler.Attendees)
				r.Post("/{id}/leave", catalogHandler.LeaveCourse)
				r.With(rateLimit).Post("/{id}/join", joinHandler.JoinCourse)
			})

			r.Route("/exchanges", func(r chi.Router) {
				r.Get("/", catalogHandler.ListExchanges)
				r.Post("/", catalogHandler.CreateExchange)
				r.Get("/{id}", catalogHandler.GetExchange)
				r.Put("/{id}", catalogHandler.UpdateExchange)
				r.Delete("/{id}", catalogHandler.DeleteExchange)
				r.With(rateLimit).Post("/{id}/join", joinHandler.JoinExchange)
			})

			r.Get("/users/{id}", profileHandler.GetProfile)

			r.Route("/me", func(r chi.Router) {
				r.Get("/profile", profileHandler.MyProfile)
				r.Put("/profile", profileHandler.UpdateProfile)
				r.Get("/sessions", accountHandler.Sessions)
				r.Get("/balance", accountHandler.Balance)
				r.Get("/ledger", accountHandler.Ledger)
			})
		})

		// WebSocket endpoint
		r.Get("/ws", wsHandler.Handle)
	})

	return r
}
