package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/repository"
	"github.com/touristalert/backend/services/auth/internal/secret"
)

// issueCode supersedes every outstanding code of the purpose and stores the
// digest of the new one. Registration codes are marked used; reset codes are
// deleted.
func issueCode(ctx context.Context, codes repository.CodeRepository, accountID uuid.UUID, purpose domain.Purpose, code string, now time.Time, ttl time.Duration, deletePrior bool) error {
	var err error
	if deletePrior {
		_, err = codes.DeleteUnused(ctx, accountID, purpose)
	} else {
		_, err = codes.InvalidateUnused(ctx, accountID, purpose)
	}
	if err != nil {
		return err
	}

	return codes.Create(ctx, &domain.OneTimeCode{
		ID:        uuid.New(),
		AccountID: accountID,
		Purpose:   purpose,
		CodeHash:  secret.Hash(code),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
}

// checkUnique reports the first unique field already taken.
func checkUnique(ctx context.Context, accounts repository.AccountRepository, a *domain.Account) error {
	checks := []struct{ field, value string }{
		{repository.FieldEmail, a.Email},
	}
	if a.PhoneNumber != nil {
		checks = append(checks, struct{ field, value string }{repository.FieldPhone, *a.PhoneNumber})
	}
	if a.GuideProfile != nil {
		checks = append(checks, struct{ field, value string }{repository.FieldLicense, a.GuideProfile.LicenseNumber})
	}
	for _, c := range checks {
		taken, err := accounts.Exists(ctx, c.field, c.value)
		if err != nil {
			return err
		}
		if taken {
			return domain.NewDuplicateError(c.field)
		}
	}
	return nil
}
