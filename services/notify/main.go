package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/touristalert/backend/pkg/config"
	"github.com/touristalert/backend/pkg/events"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/pkg/mailer"
	mw "github.com/touristalert/backend/pkg/middleware"
	"github.com/touristalert/backend/services/notify/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.NATS.URL == "" {
		return errors.New("notify service requires NATS_URL")
	}
	// the worker is the consumer of the nats transport, so it delivers directly
	if cfg.Email.Transport == config.TransportNATS {
		return fmt.Errorf("EMAIL_TRANSPORT=%s would loop back into the queue", cfg.Email.Transport)
	}

	sender, err := mailer.New(cfg.Email, nil)
	if err != nil {
		return err
	}

	bus, err := events.NewNATSEventBus(cfg.NATS.URL, "notify")
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := worker.New(sender, 30*time.Second).Start(bus); err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	srv := &http.Server{
		Addr:         ":" + getPort(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting notify service", "addr", srv.Addr, "transport", cfg.Email.Transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down notify service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func getPort() string {
	if port := os.Getenv("NOTIFY_PORT"); port != "" {
		return port
	}
	return "8086"
}
