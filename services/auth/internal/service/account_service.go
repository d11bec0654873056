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
	"github.com/touristalert/backend/services/auth/internal/secret"
)

type AccountService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.RegisterResult, error)
	VerifyRegistrationOTP(ctx context.Context, accountID uuid.UUID, code string) (*domain.VerifyResult, error)
	ResendRegistrationOTP(ctx context.Context, email string) error
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	CurrentUser(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	UpdateProfile(ctx context.Context, accountID uuid.UUID, req *domain.UpdateProfileRequest) (*domain.Account, error)

	ListUsers(ctx context.Context, actor *domain.Account, page domain.Page) ([]*domain.Account, error)
	GetUser(ctx context.Context, actor *domain.Account, accountID uuid.UUID) (*domain.Account, error)
	UpdateUser(ctx context.Context, actor *domain.Account, accountID uuid.UUID, req *domain.AdminUpdateUserRequest) (*domain.Account, error)
	DeleteUser(ctx context.Context, actor *domain.Account, accountID uuid.UUID) (*domain.Account, error)
}

type accountService struct {
	Deps
}

func NewAccountService(deps Deps) AccountService {
	return &accountService{Deps: deps.withDefaults()}
}

func (s *accountService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.RegisterResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	passwordHash, err := s.Credentials.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	code, err := secret.GenerateCode()
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	phone := req.PhoneNumber
	account := &domain.Account{
		ID:           uuid.New(),
		Email:        req.Email,
		FullName:     req.FullName,
		PhoneNumber:  &phone,
		Role:         req.Role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Role == domain.RoleGuide {
		account.GuideProfile = &domain.GuideProfile{
			ID:              uuid.New(),
			AccountID:       account.ID,
			LicenseNumber:   req.LicenseNumber,
			LicenseIssuedBy: req.LicenseIssuedBy,
			Status:          domain.GuidePending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}

	err = s.Store.InTx(ctx, func(tx repository.Tx) error {
		if err := checkUnique(ctx, tx.Accounts(), account); err != nil {
			return err
		}
		if err := tx.Accounts().Create(ctx, account); err != nil {
			return err
		}
		return issueCode(ctx, tx.Codes(), account.ID, domain.PurposeRegistration, code, now, s.OTPTTL, false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register account: %w", err)
	}

	logger.InfoContext(ctx, "Account registered", "account_id", account.ID, "role", account.Role)

	subject, body := mailer.RegistrationOTP(account.FullName, code, s.OTPTTL)
	if !s.Sink.Send(ctx, account.Email, subject, body) {
		logger.WarnContext(ctx, "Registration OTP not delivered", "account_id", account.ID)
	}
	publish(ctx, s.Events, events.AccountRegistered, events.AccountRegisteredEvent{
		AccountID:    account.ID.String(),
		Email:        account.Email,
		Role:         string(account.Role),
		RegisteredAt: now,
	})

	return &domain.RegisterResult{AccountID: account.ID, Email: account.Email, Role: account.Role}, nil
}

func (s *accountService) VerifyRegistrationOTP(ctx context.Context, accountID uuid.UUID, code string) (*domain.VerifyResult, error) {
	now := s.Clock.Now()
	var account *domain.Account

	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().LockByID(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return domain.NewNotFoundError("User not found.")
		}
		if a.Verified {
			return domain.ErrAlreadyVerified
		}

		otp, err := tx.Codes().FindLatestUnused(ctx, a.ID, domain.PurposeRegistration, secret.Hash(code))
		if err != nil {
			return err
		}
		if otp == nil {
			otpChecks.WithLabelValues(string(domain.PurposeRegistration), "invalid").Inc()
			return domain.ErrInvalidCode
		}
		if otp.Expired(now) {
			otpChecks.WithLabelValues(string(domain.PurposeRegistration), "expired").Inc()
			return domain.ErrExpired
		}

		if err := tx.Codes().MarkUsed(ctx, otp.ID); err != nil {
			return err
		}

		a.Verified = true
		a.UpdatedAt = now
		switch a.Role {
		case domain.RoleTourist:
			a.Active = true
		case domain.RoleGuide:
			settleGuideOnVerify(ctx, a)
		}
		if err := tx.Accounts().Update(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify registration otp: %w", err)
	}

	otpChecks.WithLabelValues(string(domain.PurposeRegistration), "ok").Inc()
	logger.InfoContext(ctx, "Account email verified", "account_id", account.ID, "role", account.Role)
	publish(ctx, s.Events, events.AccountVerified, events.AccountVerifiedEvent{
		AccountID:  account.ID.String(),
		Email:      account.Email,
		Role:       string(account.Role),
		Active:     account.Active,
		VerifiedAt: now,
	})

	result := &domain.VerifyResult{Account: account}
	switch account.Role {
	case domain.RoleTourist:
		tokens, err := s.Credentials.IssueSessionTokens(ctx, account)
		if err != nil {
			return nil, err
		}
		result.Tokens = tokens
	case domain.RoleGuide:
		if p := account.GuideProfile; p != nil {
			subject, body := mailer.GuideApplicationReceived(account.FullName, p.LicenseNumber, p.LicenseIssuedBy, account.CreatedAt)
			if !s.Sink.Send(ctx, account.Email, subject, body) {
				logger.WarnContext(ctx, "Guide application email not delivered", "account_id", account.ID)
			}
		}
	}
	return result, nil
}

// settleGuideOnVerify keeps a pending guide inactive. An admin decision that
// already exists is kept and the active flag follows it, so verifying email
// can never undo an approval or a rejection.
func settleGuideOnVerify(ctx context.Context, a *domain.Account) {
	if !a.HasGuideProfile() {
		logger.WarnContext(ctx, "Guide account has no profile", "account_id", a.ID)
		a.Active = false
		return
	}
	a.Active = a.GuideProfile.Status == domain.GuideVerified
}

func (s *accountService) ResendRegistrationOTP(ctx context.Context, email string) error {
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
		if err != nil {
			return err
		}
		if a == nil {
			return domain.NewNotFoundError("User with this email does not exist.")
		}
		if a.Verified {
			return domain.ErrAlreadyVerified
		}
		account = a
		return issueCode(ctx, tx.Codes(), a.ID, domain.PurposeRegistration, code, now, s.OTPTTL, false)
	})
	if err != nil {
		return fmt.Errorf("failed to resend registration otp: %w", err)
	}

	subject, body := mailer.RegistrationOTP(account.FullName, code, s.OTPTTL)
	if !s.Sink.Send(ctx, account.Email, subject, body) {
		logger.WarnContext(ctx, "Registration OTP not delivered", "account_id", account.ID)
	}
	return nil
}

func (s *accountService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().FindByEmail(ctx, req.Email)
		account = a
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil || !s.Credentials.VerifyPassword(account.PasswordHash, req.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	if !account.Verified && !(account.IsStaff || account.IsSuperuser) {
		return nil, domain.NewForbiddenError("Please verify your email first. Check your inbox for OTP.")
	}
	if !account.Active {
		if account.Role == domain.RoleGuide {
			return nil, domain.NewForbiddenError("Your guide account is pending admin verification. Please wait for approval before logging in.")
		}
		return nil, domain.NewForbiddenError("Your account is inactive. Please contact support.")
	}

	if s.Credentials.NeedsRehash(account.PasswordHash) {
		s.upgradeHash(ctx, account.ID, req.Password)
	}

	tokens, err := s.Credentials.IssueSessionTokens(ctx, account)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Login succeeded", "account_id", account.ID)
	return &domain.LoginResult{Account: account, Tokens: tokens}, nil
}

// upgradeHash replaces a legacy hash after a successful login.
func (s *accountService) upgradeHash(ctx context.Context, id uuid.UUID, password string) {
	hash, err := s.Credentials.HashPassword(password)
	if err == nil {
		err = s.Store.InTx(ctx, func(tx repository.Tx) error {
			return tx.Accounts().SetPassword(ctx, id, hash, s.Clock.Now())
		})
	}
	if err != nil {
		logger.WarnContext(ctx, "Failed to upgrade legacy password hash", "error", err, "account_id", id)
	}
}

func (s *accountService) Logout(ctx context.Context, refreshToken string) error {
	return s.Credentials.Invalidate(ctx, refreshToken)
}

func (s *accountService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.Credentials.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	account, err := s.CurrentUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, domain.ErrInvalidToken
	}

	access, err := s.Credentials.IssueAccessToken(ctx, account)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}

func (s *accountService) CurrentUser(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account *domain.Account
	err := s.Store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.Accounts().FindByID(ctx, accountID)
		account = a
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, domain.NewNotFoundError("User not found.")
	}
	return account, nil
}
