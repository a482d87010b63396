package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/auth"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/config"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/db"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/favorite"
	storefrontHttp "github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/metrics"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/payment"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/report"
	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/user"
)

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.Name).Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Str("service", cfg.Name).Logger()
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.App)
	log.Info().Str("env", cfg.App.Env).Msg("Starting storefront...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.RunMigrations {
		if err := db.ApplyMigrations(cfg.Postgres.URL("pgx5")); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, 15*time.Second)
	pg, err := db.New(connectCtx, cfg.Postgres)
	cancelConnect()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	reportingDB, err := db.ConnectReporting(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect reporting pool")
	}
	defer reportingDB.Close()

	catalogRepo := catalog.NewRepository(pg.Pool)
	userRepo := user.NewRepository(pg.Pool)
	sessionRepo := auth.NewSessionRepository(pg.Pool)
	cartRepo := cart.NewRepository(pg.Pool)
	orderRepo := order.NewRepository(pg.Pool)
	favoriteRepo := favorite.NewRepository(pg.Pool)
	reportRepo := report.NewPostgresRepository(reportingDB)

	catalogSvc := catalog.NewService(catalogRepo)
	userSvc := user.NewService(userRepo)
	sessionSvc := auth.NewSessionService(sessionRepo, cfg.Session.TTL)
	cartSvc := cart.NewService(cartRepo, catalogRepo)
	orderSvc := order.NewService(orderRepo)
	favoriteSvc := favorite.NewService(favoriteRepo, catalogRepo)
	reportSvc := report.NewService(reportRepo)

	provider := payment.NewMercadoPagoClient(cfg.Payment)
	checkoutSvc := checkout.NewService(checkout.NewPostgresRunner(pg.Pool), provider)

	if cfg.Admin.Enabled() {
		if err := userSvc.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed administrator")
		}
	}

	keepAliveCtx, stopKeepAlive := context.WithCancel(ctx)
	keepAliveDone := make(chan struct{})
	go func() {
		defer close(keepAliveDone)
		db.KeepAlive(keepAliveCtx, pg.Pool, cfg.KeepAlive.Interval)
	}()

	m := metrics.New()

	router := storefrontHttp.NewRouter(storefrontHttp.RouterConfig{
		Auth: storefrontHttp.NewAuthHandler(userSvc, sessionSvc, storefrontHttp.CookieSettings{
			Name:   cfg.Session.CookieName,
			TTL:    cfg.Session.TTL,
			Secure: cfg.App.IsProduction(),
		}),
		Catalog:  storefrontHttp.NewCatalogHandler(catalogSvc),
		Cart:     storefrontHttp.NewCartHandler(cartSvc),
		Orders:   storefrontHttp.NewOrderHandler(orderSvc, checkoutSvc, m, cfg.App.PublicURL),
		Payments: storefrontHttp.NewPaymentHandler(checkoutSvc, m, provider.PublicKey()),
		Favorite: storefrontHttp.NewFavoriteHandler(favoriteSvc),
		Admin:    storefrontHttp.NewAdminHandler(catalogSvc, orderSvc, checkoutSvc, userSvc, reportSvc),

		Session:        storefrontHttp.SessionMiddleware(sessionSvc, cfg.Session.CookieName),
		Metrics:        m.Middleware,
		MetricsHandler: m.Handler(),
		DB:             pg.Pool,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.App.Port).Msg("Could not listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("HTTP server stopped.")

	stopKeepAlive()
	<-keepAliveDone

	log.Info().Msg("Storefront stopped gracefully.")
}
