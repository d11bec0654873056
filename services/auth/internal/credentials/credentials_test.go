package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/touristalert/backend/services/auth/internal/domain"
	"github.com/touristalert/backend/services/auth/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := Config{Secret: "test-secret", Issuer: "test", AccessTTL: time.Minute, RefreshTTL: time.Hour}
	return NewService(cfg, repository.NewRedisBlacklist(rdb, nil), nil)
}

func testAccount() *domain.Account {
	return &domain.Account{ID: uuid.New(), Email: "t@example.com", Role: domain.RoleTourist}
}

func TestPasswordHashing(t *testing.T) {
	s := newService(t)

	hash, err := s.HashPassword("Str0ngPass!")
	require.NoError(t, err)
	assert.True(t, s.VerifyPassword(hash, "Str0ngPass!"))
	assert.False(t, s.VerifyPassword(hash, "wrong"))
	assert.False(t, s.NeedsRehash(hash))
}

func TestLegacyBcryptHash(t *testing.T) {
	s := newService(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("OldPassw0rd"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, s.VerifyPassword(string(legacy), "OldPassw0rd"))
	assert.False(t, s.VerifyPassword(string(legacy), "nope"))
	assert.True(t, s.NeedsRehash(string(legacy)))
	assert.False(t, s.VerifyPassword("plaintext", "plaintext"))
}

func TestRefreshAndInvalidate(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	acc := testAccount()

	pair, err := s.IssueSessionTokens(ctx, acc)
	require.NoError(t, err)

	claims, err := s.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, acc.ID.String(), claims.Subject)

	require.NoError(t, s.Invalidate(ctx, pair.RefreshToken))

	_, err = s.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	pair, err := s.IssueSessionTokens(ctx, testAccount())
	require.NoError(t, err)

	_, err = s.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = s.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	claims, err := s.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "TOURIST", claims.Role)
}

func TestInvalidate_GarbageToken(t *testing.T) {
	s := newService(t)
	err := s.Invalidate(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
