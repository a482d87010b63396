package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Auth     *AuthHandler
	Catalog  *CatalogHandler
	Cart     *CartHandler
	Orders   *OrderHandler
	Payments *PaymentHandler
	Favorite *FavoriteHandler
	Admin    *AdminHandler

	Session        func(http.Handler) http.Handler
	Metrics        func(http.Handler) http.Handler
	MetricsHandler http.Handler
	DB             Pinger
}

func NewRouter(cfg RouterConfig) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(log.Logger))
	router.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics)
	}

	router.Get("/health", healthHandler(cfg.DB))
	if cfg.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	router.Route("/api", func(api chi.Router) {
		api.Use(cfg.Session)

		cfg.Auth.RegisterRoutes(api)
		cfg.Catalog.RegisterRoutes(api)
		cfg.Payments.RegisterRoutes(api)

		api.Group(func(private chi.Router) {
			private.Use(RequireAuth)
			cfg.Auth.RegisterPrivateRoutes(private)
			cfg.Cart.RegisterRoutes(private)
			cfg.Orders.RegisterRoutes(private)
			cfg.Favorite.RegisterRoutes(private)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(RequireAdmin)
			cfg.Admin.RegisterRoutes(admin)
		})
	})

	return router
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check: database unreachable")
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
