// Package credentials owns password hashing and session token issuance.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/touristalert/backend/pkg/auth"
	"github.com/touristalert/backend/pkg/logger"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	IssueSessionTokens(ctx context.Context, a *domain.Account) (*domain.TokenPair, error)
	IssueAccessToken(ctx context.Context, a *domain.Account) (string, error)
	// Invalidate blacklists a refresh token until it expires.
	Invalidate(ctx context.Context, refreshToken string) error
	// Refresh validates a refresh token and returns its claims.
	Refresh(ctx context.Context, refreshToken string) (*auth.Claims, error)
	ParseAccess(token string) (*auth.Claims, error)
	HashPassword(plain string) (string, error)
	VerifyPassword(hash, plain string) bool
	// NeedsRehash reports hashes produced by an older scheme.
	NeedsRehash(hash string) bool
}

type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type service struct {
	signer    *auth.Signer
	blacklist repository.TokenBlacklist
	cfg       Config
	params    *argon2id.Params
}

func NewService(cfg Config, blacklist repository.TokenBlacklist, now func() time.Time) Service {
	return &service{
		signer:    auth.NewSigner(cfg.Secret, cfg.Issuer, now),
		blacklist: blacklist,
		cfg:       cfg,
		params:    argon2id.DefaultParams,
	}
}

func (s *service) IssueSessionTokens(ctx context.Context, a *domain.Account) (*domain.TokenPair, error) {
	access, err := s.IssueAccessToken(ctx, a)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.signer.Sign(a.ID.String(), a.Email, string(a.Role), auth.TypeRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) IssueAccessToken(_ context.Context, a *domain.Account) (string, error) {
	access, _, err := s.signer.Sign(a.ID.String(), a.Email, string(a.Role), auth.TypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return "", fmt.Errorf("failed to create access token: %w", err)
	}
	return access, nil
}

func (s *service) Invalidate(ctx context.Context, refreshToken string) error {
	claims, err := s.parseRefresh(refreshToken)
	if err != nil {
		return err
	}
	var until time.Time
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.blacklist.Revoke(ctx, claims.ID, until); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	logger.InfoContext(ctx, "Refresh token revoked", "account_id", claims.Subject)
	return nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*auth.Claims, error) {
	claims, err := s.parseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	if revoked {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *service) ParseAccess(token string) (*auth.Claims, error) {
	claims, err := s.signer.Parse(token)
	if err != nil || claims.Type != auth.TypeAccess {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *service) parseRefresh(token string) (*auth.Claims, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindInvalidToken, Message: domain.ErrInvalidToken.Message, Err: err}
	}
	if claims.Type != auth.TypeRefresh {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *service) HashPassword(plain string) (string, error) {
	hash, err := argon2id.CreateHash(plain, s.params)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *service) VerifyPassword(hash, plain string) bool {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		ok, err := argon2id.ComparePasswordAndHash(plain, hash)
		return err == nil && ok
	case isBcrypt(hash):
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			logger.Warn("Malformed bcrypt hash", "error", err)
		}
		return err == nil
	}
	return false
}

func (s *service) NeedsRehash(hash string) bool {
	return isBcrypt(hash)
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}
