package service

import (
	"context"
	"fmt"

	"github.com/touristalert/backend/pkg/events"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/pkg/mailer"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/repository"
	"github.com/touristalert/backend/services/auth/internal/secret"
)

// PasswordResetService runs the forgot, verify and reset steps. Each step
// is independently callable.
type PasswordResetService interface {
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetOTP(ctx context.Context, req *domain.VerifyResetOTPRequest) (resetToken string, err error)
	ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error
}

type passwordResetService struct {
	Deps
}

func NewPasswordResetService(deps Deps) PasswordResetService {
	return &passwordResetService{Deps: deps.withDefaults()}
}

// ForgotPassword answers the same way for unknown emails. A failed send is
// reported because the code has no other way to reach the user.
func (s *passwordResetService) ForgotPassword(ctx context.Context, email string) error {
	req := domain.EmailRequest{Email: email}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	code, err := secret.GenerateCode()
	if err != nil {
		return err
	}
	now := s.Clock.Now()

	var account *domain.Account
	err = s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().LockByEmail(ctx, req.Email)
		if err != nil || a == nil {
			return err
		}
		account = a
		return issueCode(ctx, tx.Codes(), a.ID, domain.PurposeResetPassword, code, now, s.OTPTTL, true)
	})
	if err != nil {
		return fmt.Errorf("failed to issue reset otp: %w", err)
	}
	if account == nil {
		logger.DebugContext(ctx, "Password reset requested for unknown email")
		return nil
	}

	subject, body := mailer.ResetPasswordOTP(account.FullName, code, s.OTPTTL)
	if !s.Sink.Send(ctx, account.Email, subject, body) {
		return domain.ErrDelivery
	}
	return nil
}

func (s *passwordResetService) VerifyResetOTP(ctx context.Context, req *domain.VerifyResetOTPRequest) (string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return "", err
	}

	token, err := secret.GenerateToken()
	if err != nil {
		return "", err
	}
	now := s.Clock.Now()

	err = s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().LockByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.ErrInvalidOrExpired
		}

		otp, err := tx.Codes().FindLatestUnused(ctx, a.ID, domain.PurposeResetPassword, secret.Hash(req.OTP))
		if err != nil {
			return err
		}
		if otp == nil || otp.Expired(now) {
			otpChecks.WithLabelValues(string(domain.PurposeResetPassword), "invalid").Inc()
			return domain.ErrInvalidOrExpired
		}
		return tx.Codes().AttachResetToken(ctx, otp.ID, secret.Hash(token), now.Add(s.ResetTokenTTL))
	})
	if err != nil {
		return "", fmt.Errorf("failed to verify reset otp: %w", err)
	}

	otpChecks.WithLabelValues(string(domain.PurposeResetPassword), "ok").Inc()
	return token, nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	hash, err := s.Credentials.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	now := s.Clock.Now()

	var account *domain.Account
	err = s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().LockByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.ErrInvalidOrExpiredToken
		}

		rec, err := tx.Codes().FindByResetToken(ctx, a.ID, secret.Hash(req.ResetToken))
		if err != nil {
			return err
		}
		if rec == nil || !rec.ResetTokenValid(now) {
			return domain.ErrInvalidOrExpiredToken
		}

		if err := tx.Accounts().SetPassword(ctx, a.ID, hash, now); err != nil {
			return err
		}
		if _, err := tx.Codes().DeleteAll(ctx, a.ID, domain.PurposeResetPassword); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	logger.InfoContext(ctx, "Password reset", "account_id", account.ID)
	publish(ctx, s.Events, events.AccountPasswordReset, events.PasswordResetEvent{
		AccountID: account.ID.String(),
		Email:     account.Email,
		ResetAt:   now,
	})
	return nil
}
