package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/touristalert/backend/pkg/events"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/pkg/mailer"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/repository"
)

type GuideService interface {
	Decide(ctx context.Context, actor *domain.Account, accountID uuid.UUID, req *domain.GuideDecisionRequest) (*domain.Account, error)
	ListPendingGuides(ctx context.Context, actor *domain.Account, page domain.Page) ([]*domain.Account, error)
	ListGuides(ctx context.Context, actor *domain.Account, status string, page domain.Page) ([]*domain.Account, error)
	GetGuide(ctx context.Context, actor *domain.Account, accountID uuid.UUID) (*domain.Account, error)

	GetOwnProfile(ctx context.Context, actor *domain.Account) (*domain.Account, error)
	UpdateOwnProfile(ctx context.Context, actor *domain.Account, req *domain.UpdateGuideProfileRequest) (*domain.Account, error)
}

type guideService struct {
	Deps
}

func NewGuideService(deps Deps) GuideService {
	return &guideService{Deps: deps.withDefaults()}
}

// requireAdmin rejects non-admin actors; what names the guarded resource.
func requireAdmin(actor *domain.Account, what string) error {
	if actor == nil || !actor.IsAdmin() {
		return domain.NewForbiddenError("Only admins can manage " + what + ".")
	}
	return nil
}

func (s *guideService) Decide(ctx context.Context, actor *domain.Account, accountID uuid.UUID, req *domain.GuideDecisionRequest) (*domain.Account, error) {
	if err := requireAdmin(actor, "guide applications"); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	var guide *domain.Account

	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().LockByID(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil || a.Role != domain.RoleGuide {
			return domain.NewNotFoundError("Guide not found or user is not a guide.")
		}
		if !a.HasGuideProfile() {
			return domain.NewNotFoundError("Guide profile not found.")
		}
		p := a.GuideProfile
		if p.Status.Terminal() {
			return domain.NewAlreadyProcessedError(p.Status)
		}

		status := domain.GuideVerified
		a.Active = true
		if req.Action == domain.ActionReject {
			status = domain.GuideRejected
			a.Active = false
		}
		a.UpdatedAt = now

		if err := tx.Accounts().Update(ctx, a); err != nil {
			return err
		}
		if err := tx.Accounts().UpdateGuideStatus(ctx, a.ID, status, now); err != nil {
			return err
		}
		p.Status = status
		p.UpdatedAt = now
		guide = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decide guide application: %w", err)
	}

	guideDecisions.WithLabelValues(string(req.Action)).Inc()
	logger.InfoContext(ctx, "Guide application decided",
		"account_id", guide.ID,
		"action", req.Action,
		"admin_id", actor.ID,
	)

	p := guide.GuideProfile
	var subject, body, eventSubject string
	if req.Action == domain.ActionApprove {
		subject, body = mailer.GuideApproved(guide.FullName, guide.Email, p.LicenseNumber)
		eventSubject = events.GuideApproved
	} else {
		subject, body = mailer.GuideRejected(guide.FullName, guide.Email, p.LicenseNumber, req.Reason)
		eventSubject = events.GuideRejected
	}
	if !s.Sink.Send(ctx, guide.Email, subject, body) {
		logger.WarnContext(ctx, "Guide decision email not delivered", "account_id", guide.ID, "action", req.Action)
	}
	publish(ctx, s.Events, eventSubject, events.GuideDecisionEvent{
		AccountID: guide.ID.String(),
		Email:     guide.Email,
		Status:    string(p.Status),
		Reason:    req.Reason,
		DecidedBy: actor.ID.String(),
		DecidedAt: now,
	})

	return guide, nil
}

func (s *guideService) ListPendingGuides(ctx context.Context, actor *domain.Account, page domain.Page) ([]*domain.Account, error) {
	pending := domain.GuidePending
	inactive := false
	return s.list(ctx, actor, repository.GuideFilter{Status: &pending, Active: &inactive}, page)
}

func (s *guideService) ListGuides(ctx context.Context, actor *domain.Account, status string, page domain.Page) ([]*domain.Account, error) {
	var f repository.GuideFilter
	if status != "" {
		st, ok := domain.ParseGuideStatus(status)
		if !ok {
			return nil, domain.NewValidationError("status", "Must be one of: PENDING VERIFIED REJECTED.")
		}
		f.Status = &st
	}
	return s.list(ctx, actor, f, page)
}

func (s *guideService) list(ctx context.Context, actor *domain.Account, f repository.GuideFilter, page domain.Page) ([]*domain.Account, error) {
	if err := requireAdmin(actor, "guide applications"); err != nil {
		return nil, err
	}
	var out []*domain.Account
	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Accounts().ListGuides(ctx, f, page)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list guides: %w", err)
	}
	if out == nil {
		out = []*domain.Account{}
	}
	return out, nil
}

func (s *guideService) GetGuide(ctx context.Context, actor *domain.Account, accountID uuid.UUID) (*domain.Account, error) {
	if err := requireAdmin(actor, "guide applications"); err != nil {
		return nil, err
	}
	var guide *domain.Account
	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().FindByID(ctx, accountID)
		guide = a
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get guide: %w", err)
	}
	if guide == nil || guide.Role != domain.RoleGuide {
		return nil, domain.NewNotFoundError("Guide not found.")
	}
	return guide, nil
}
