package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/touristalert/backend/services/auth/internal/domain"
)

// Unique fields reported by DuplicateError.
const (
	FieldEmail    = "email"
	FieldUsername = "username"
	FieldPhone    = "phoneNumber"
	FieldLicense  = "licenseNumber"
)

// Store runs fn inside one transaction. fn's error rolls everything back.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	Accounts() AccountRepository
	Codes() CodeRepository
}

// AccountRepository finders return nil, nil when nothing matches.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// LockByID is FindByID that also holds the account row until commit.
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	LockByEmail(ctx context.Context, email string) (*domain.Account, error)
	Exists(ctx context.Context, field, value string) (bool, error)
	Update(ctx context.Context, a *domain.Account) error
	UpdateGuideStatus(ctx context.Context, accountID uuid.UUID, status domain.GuideStatus, at time.Time) error
	SetPassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) error
	UpdateGuideBio(ctx context.Context, accountID uuid.UUID, bio string, at time.Time) error
	ListGuides(ctx context.Context, f GuideFilter, page domain.Page) ([]*domain.Account, error)
	// ListAccounts returns every account, newest first.
	ListAccounts(ctx context.Context, page domain.Page) ([]*domain.Account, error)
	// Delete removes the account together with its guide profile and codes.
	Delete(ctx context.Context, id uuid.UUID) error
}

type GuideFilter struct {
	Status *domain.GuideStatus
	Active *bool
}

type CodeRepository interface {
	Create(ctx context.Context, c *domain.OneTimeCode) error
	// InvalidateUnused marks every unused code of the purpose as used.
	InvalidateUnused(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose) (int64, error)
	DeleteUnused(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose) (int64, error)
	DeleteAll(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose) (int64, error)
	// FindLatestUnused returns the newest unused code with the given hash.
	FindLatestUnused(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose, codeHash string) (*domain.OneTimeCode, error)
	FindByResetToken(ctx context.Context, accountID uuid.UUID, tokenHash string) (*domain.OneTimeCode, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	// AttachResetToken stores the token digest and marks the code used.
	AttachResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	CountUnused(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose) (int, error)
	// Purge deletes codes that expired, or were used, before the cut-off.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
