package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fairwayhq/fairway-backend/internal/app"
	"github.com/fairwayhq/fairway-backend/internal/config"
	"github.com/fairwayhq/fairway-backend/internal/modules/auth"
	"github.com/fairwayhq/fairway-backend/internal/modules/order"
	"github.com/fairwayhq/fairway-backend/internal/modules/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		app.NewLogger("info").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.LogLevel)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()
	logger.Info("connected to the database")

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, every authenticated route will reject requests")
	}
	requireUser := auth.RequireUser(auth.NewJWTVerifier(cfg.JWTSecret))

	// ── Orders ──────────────────────────────────────────────
	order.NewHandler(a.Orders, requireUser, logger).RegisterRoutes(router)

	// ── Payments ────────────────────────────────────────────
	payment.NewHandler(a.Payments, a.Encryptor, requireUser, logger).RegisterRoutes(router)

	// ── Start Server ─────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("fairway API server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	// in-flight polls can run for the whole attempt ceiling
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
