// Package admin holds the maintenance tasks run by authctl.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/touristalert/backend/pkg/clock"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/services/auth/internal/credentials"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/repository"
)

type Tasks struct {
	store repository.Store
	creds credentials.Service
	clock clock.Clock
}

func New(store repository.Store, creds credentials.Service, clk clock.Clock) *Tasks {
	if clk == nil {
		clk = clock.Real()
	}
	return &Tasks{store: store, creds: creds, clock: clk}
}

type SeedRequest struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// SeedAdmin creates a superuser, or promotes and re-keys the account that
// already owns the email.
func (t *Tasks) SeedAdmin(ctx context.Context, req SeedRequest) (*domain.Account, error) {
	email := domain.EmailRequest{Email: req.Email}
	email.Normalize()
	if err := email.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword("password", req.Password, email.Email, req.FullName); err != nil {
		return nil, err
	}

	hash, err := t.creds.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	now := t.clock.Now()

	var out *domain.Account
	err = t.store.InTx(ctx, func(tx repository.Tx) error {
		existing, err := tx.Accounts().LockByEmail(ctx, email.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.IsStaff = true
			existing.IsSuperuser = true
			existing.Verified = true
			existing.Active = true
			existing.UpdatedAt = now
			if err := tx.Accounts().Update(ctx, existing); err != nil {
				return err
			}
			out = existing
			return tx.Accounts().SetPassword(ctx, existing.ID, hash, now)
		}

		a := &domain.Account{
			ID:           uuid.New(),
			Email:        email.Email,
			FullName:     strings.TrimSpace(req.FullName),
			IsStaff:      true,
			IsSuperuser:  true,
			Verified:     true,
			Active:       true,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if phone := strings.TrimSpace(req.Phone); phone != "" {
			a.PhoneNumber = &phone
		}
		out = a
		return tx.Accounts().Create(ctx, a)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed admin: %w", err)
	}

	logger.InfoContext(ctx, "Admin seeded", "account_id", out.ID)
	return out, nil
}

// PurgeCodes drops one-time codes that stopped being useful more than
// olderThan ago.
func (t *Tasks) PurgeCodes(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := t.clock.Now().Add(-olderThan)

	var n int64
	err := t.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.Codes().Purge(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge codes: %w", err)
	}
	return n, nil
}
