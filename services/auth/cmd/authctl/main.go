// Command authctl runs maintenance tasks against the account database.
//
//	authctl migrate
//	authctl seed-admin -email admin@example.com -password ... -name "Site Admin" -phone 9800000000
//	authctl purge-codes -older-than 168h
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/touristalert/backend/pkg/clock"
	"github.com/touristalert/backend/pkg/config"
	"github.com/touristalert/backend/pkg/database"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/services/auth/internal/admin"
	"github.com/touristalert/backend/services/auth/internal/credentials"
	"github.com/touristalert/backend/services/auth/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.Database.URL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := dispatch(ctx, pool, cfg, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", "command", os.Args[1], "error", err)
		pool.Close()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, cmd string, args []string) error {
	clk := clock.Real()
	creds := credentials.NewService(credentials.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
	}, repository.NewMemoryBlacklist(clk.Now), clk.Now)
	tasks := admin.New(repository.NewPostgresStore(pool), creds, clk)

	switch cmd {
	case "migrate":
		return database.Migrate(ctx, pool)

	case "seed-admin":
		fs := flag.NewFlagSet("seed-admin", flag.ExitOnError)
		email := fs.String("email", "", "admin email")
		password := fs.String("password", "", "admin password")
		name := fs.String("name", "Administrator", "full name")
		phone := fs.String("phone", "", "10 digit phone number")
		if err := fs.Parse(args); err != nil {
			return err
		}
		a, err := tasks.SeedAdmin(ctx, admin.SeedRequest{
			Email:    *email,
			Password: *password,
			FullName: *name,
			Phone:    *phone,
		})
		if err != nil {
			return err
		}
		logger.Info("Admin account ready", "account_id", a.ID, "email", a.Email)
		return nil

	case "purge-codes":
		fs := flag.NewFlagSet("purge-codes", flag.ExitOnError)
		olderThan := fs.Duration("older-than", 7*24*time.Hour, "delete codes expired or used before now minus this")
		if err := fs.Parse(args); err != nil {
			return err
		}
		n, err := tasks.PurgeCodes(ctx, *olderThan)
		if err != nil {
			return err
		}
		logger.Info("Purged one-time codes", "deleted", n)
		return nil
	}

	usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: authctl <migrate|seed-admin|purge-codes> [flags]")
}
