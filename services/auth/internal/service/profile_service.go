package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/touristalert/backend/pkg/events"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/repository"
)

// Self-service profile

func (s *accountService) UpdateProfile(ctx context.Context, accountID uuid.UUID, req *domain.UpdateProfileRequest) (*domain.Account, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().LockByID(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.NewNotFoundError("User not found.")
		}
		req.Apply(a)
		a.UpdatedAt = s.Clock.Now()
		if err := tx.Accounts().Update(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	logger.InfoContext(ctx, "Profile updated", "account_id", account.ID)
	return account, nil
}

func requireGuide(actor *domain.Account) error {
	if actor == nil || actor.Role != domain.RoleGuide {
		return domain.NewForbiddenError("Only guides can access this endpoint")
	}
	return nil
}

func (s *guideService) GetOwnProfile(ctx context.Context, actor *domain.Account) (*domain.Account, error) {
	if err := requireGuide(actor); err != nil {
		return nil, err
	}
	if !actor.HasGuideProfile() {
		return nil, domain.NewNotFoundError("Guide profile not found.")
	}
	return actor, nil
}

// UpdateOwnProfile edits the guide's bio. License data and the verification
// status stay read-only for the guide.
func (s *guideService) UpdateOwnProfile(ctx context.Context, actor *domain.Account, req *domain.UpdateGuideProfileRequest) (*domain.Account, error) {
	if err := requireGuide(actor); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	var guide *domain.Account
	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().LockByID(ctx, actor.ID)
		if err != nil {
			return err
		}
		if a == nil || !a.HasGuideProfile() {
			return domain.NewNotFoundError("Guide profile not found.")
		}
		if req.Bio != nil {
			if err := tx.Accounts().UpdateGuideBio(ctx, a.ID, *req.Bio, now); err != nil {
				return err
			}
			a.GuideProfile.Bio = *req.Bio
			a.GuideProfile.UpdatedAt = now
		}
		guide = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update guide profile: %w", err)
	}
	return guide, nil
}

// User administration

func (s *accountService) ListUsers(ctx context.Context, actor *domain.Account, page domain.Page) ([]*domain.Account, error) {
	if err := requireAdmin(actor, "users"); err != nil {
		return nil, err
	}
	var out []*domain.Account
	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Accounts().ListAccounts(ctx, page)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if out == nil {
		out = []*domain.Account{}
	}
	return out, nil
}

func (s *accountService) GetUser(ctx context.Context, actor *domain.Account, accountID uuid.UUID) (*domain.Account, error) {
	if err := requireAdmin(actor, "users"); err != nil {
		return nil, err
	}
	return s.CurrentUser(ctx, accountID)
}

func (s *accountService) UpdateUser(ctx context.Context, actor *domain.Account, accountID uuid.UUID, req *domain.AdminUpdateUserRequest) (*domain.Account, error) {
	if err := requireAdmin(actor, "users"); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().LockByID(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.NewNotFoundError("User not found.")
		}
		if err := req.Apply(a); err != nil {
			return err
		}
		a.UpdatedAt = s.Clock.Now()
		if err := tx.Accounts().Update(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	logger.InfoContext(ctx, "User updated by admin", "account_id", account.ID, "admin_id", actor.ID)
	return account, nil
}

// DeleteUser removes an account with its guide profile and codes. Superusers
// and the acting admin cannot be deleted.
func (s *accountService) DeleteUser(ctx context.Context, actor *domain.Account, accountID uuid.UUID) (*domain.Account, error) {
	if err := requireAdmin(actor, "users"); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	var deleted *domain.Account
	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().LockByID(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.NewNotFoundError("User not found.")
		}
		if a.IsSuperuser {
			return domain.NewForbiddenError("Cannot delete superuser account")
		}
		if a.ID == actor.ID {
			return domain.NewForbiddenError("Cannot delete your own account")
		}
		if err := tx.Accounts().Delete(ctx, a.ID); err != nil {
			return err
		}
		deleted = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	logger.InfoContext(ctx, "User deleted", "account_id", deleted.ID, "admin_id", actor.ID)
	publish(ctx, s.Events, events.AccountDeleted, events.AccountDeletedEvent{
		AccountID: deleted.ID.String(),
		Email:     deleted.Email,
		Role:      string(deleted.Role),
		DeletedBy: actor.ID.String(),
		DeletedAt: now,
	})
	return deleted, nil
}
