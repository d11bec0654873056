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
	"github.com/redis/go-redis/v9"
	"github.com/touristalert/backend/pkg/clock"
	"github.com/touristalert/backend/pkg/config"
	"github.com/touristalert/backend/pkg/database"
	"github.com/touristalert/backend/pkg/events"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/pkg/mailer"
	mw "github.com/touristalert/backend/pkg/middleware"
	"github.com/touristalert/backend/services/auth/internal/credentials"
	"github.com/touristalert/backend/services/auth/internal/handlers"
	"github.com/touristalert/backend/services/auth/internal/repository"
	"github.com/touristalert/backend/services/auth/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Auth service error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	// Storage
	var store repository.Store
	if cfg.Database.URL != "" {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		if cfg.Database.Migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
		}
		store = repository.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store = repository.NewMemoryStore()
	}

	// Token blacklist and rate limiting
	var (
		blacklist repository.TokenBlacklist
		limiter   repository.RateLimitRepository
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		blacklist = repository.NewRedisBlacklist(rdb, clk.Now)
		limiter = repository.NewRateLimitRepository(rdb)
	} else {
		logger.Warn("REDIS_URL not set, rate limiting disabled and blacklist kept in memory")
		blacklist = repository.NewMemoryBlacklist(clk.Now)
		limiter = repository.NoopRateLimit{}
	}

	// Event bus
	var bus events.EventBus = events.NopBus{}
	if cfg.NATS.URL != "" {
		nb, err := events.NewNATSEventBus(cfg.NATS.URL, "auth")
		if err != nil {
			return err
		}
		defer nb.Close()
		bus = nb
	}

	var pub events.Publisher
	if cfg.NATS.URL != "" {
		pub = bus
	}
	sender, err := mailer.New(cfg.Email, pub)
	if err != nil {
		return err
	}

	creds := credentials.NewService(credentials.Config{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	}, blacklist, clk.Now)

	deps := service.Deps{
		Store:         store,
		Credentials:   creds,
		Sink:          mailer.NewSink(sender),
		Events:        bus,
		Clock:         clk,
		OTPTTL:        cfg.Auth.OTPTTL,
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
	}
	h := handlers.New(
		service.NewAccountService(deps),
		service.NewPasswordResetService(deps),
		service.NewGuideService(deps),
		creds,
	)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("auth"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	otpLimit := mw.RateLimit(limiter, "otp", cfg.RateLimit.OTPRequests, cfg.RateLimit.OTPWindow)
	h.Routes(r, otpLimit)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting auth service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down auth service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
