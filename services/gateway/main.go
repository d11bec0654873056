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
	"github.com/touristalert/backend/pkg/auth"
	"github.com/touristalert/backend/pkg/config"
	"github.com/touristalert/backend/pkg/logger"
	mw "github.com/touristalert/backend/pkg/middleware"
	"github.com/touristalert/backend/services/gateway/internal/handlers"
	"github.com/touristalert/backend/services/gateway/internal/proxy"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := handlers.New(
		proxy.NewServiceProxy(cfg.Gateway.AuthServiceURL),
		auth.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.Issuer, nil),
	)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gateway"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Route("/v1/auth", h.Routes)

	srv := &http.Server{
		Addr:         ":" + getPort(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting gateway service", "addr", srv.Addr, "auth_service", cfg.Gateway.AuthServiceURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gateway service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func getPort() string {
	if port := os.Getenv("GATEWAY_PORT"); port != "" {
		return port
	}
	return "8080"
}
