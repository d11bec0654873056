package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/touristalert/backend/services/auth/internal/domain"
)

type codeRepository struct {
	q querier
}

const codeCols = `id, account_id, purpose, code_hash, created_at, expires_at, is_used, reset_token_hash, reset_token_expires_at`

func (r *codeRepository) Create(ctx context.Context, c *domain.OneTimeCode) error {
	const q = `INSERT INTO one_time_codes (` + codeCols + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.q.Exec(ctx, q,
		c.ID, c.AccountID, c.Purpose, c.CodeHash, c.CreatedAt, c.ExpiresAt, c.Used, c.ResetTokenHash, c.ResetTokenExpiresAt,
	)
	return err
}

func (r *codeRepository) InvalidateUnused(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose) (int64, error) {
	const q = `UPDATE one_time_codes SET is_used = true WHERE account_id = $1 AND purpose = $2 AND NOT is_used`
	return r.exec(ctx, q, accountID, purpose)
}

func (r *codeRepository) DeleteUnused(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose) (int64, error) {
	const q = `DELETE FROM one_time_codes WHERE account_id = $1 AND purpose = $2 AND NOT is_used`
	return r.exec(ctx, q, accountID, purpose)
}

func (r *codeRepository) DeleteAll(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose) (int64, error) {
	const q = `DELETE FROM one_time_codes WHERE account_id = $1 AND purpose = $2`
	return r.exec(ctx, q, accountID, purpose)
}

func (r *codeRepository) FindLatestUnused(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose, codeHash string) (*domain.OneTimeCode, error) {
	const q = `
		SELECT ` + codeCols + `
		FROM one_time_codes
		WHERE account_id = $1 AND purpose = $2 AND code_hash = $3 AND NOT is_used
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`
	return r.findOne(ctx, q, accountID, purpose, codeHash)
}

func (r *codeRepository) FindByResetToken(ctx context.Context, accountID uuid.UUID, tokenHash string) (*domain.OneTimeCode, error) {
	const q = `
		SELECT ` + codeCols + `
		FROM one_time_codes
		WHERE account_id = $1 AND purpose = 'reset_password' AND reset_token_hash = $2
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`
	return r.findOne(ctx, q, accountID, tokenHash)
}

func (r *codeRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.exec(ctx, `UPDATE one_time_codes SET is_used = true WHERE id = $1`, id)
	return err
}

func (r *codeRepository) AttachResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	const q = `
		UPDATE one_time_codes
		SET is_used = true, reset_token_hash = $2, reset_token_expires_at = $3
		WHERE id = $1`
	_, err := r.exec(ctx, q, id, tokenHash, expiresAt)
	return err
}

func (r *codeRepository) CountUnused(ctx context.Context, accountID uuid.UUID, purpose domain.Purpose) (int, error) {
	const q = `SELECT count(*) FROM one_time_codes WHERE account_id = $1 AND purpose = $2 AND NOT is_used`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.q.QueryRow(ctx, q, accountID, purpose).Scan(&n)
	return n, err
}

func (r *codeRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	const q = `
		DELETE FROM one_time_codes
		WHERE (is_used AND created_at < $1 AND (reset_token_expires_at IS NULL OR reset_token_expires_at < $1))
		   OR (NOT is_used AND expires_at < $1)`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.q.Exec(ctx, q, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *codeRepository) exec(ctx context.Context, q string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *codeRepository) findOne(ctx context.Context, q string, args ...any) (*domain.OneTimeCode, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c domain.OneTimeCode
	err := r.q.QueryRow(ctx, q, args...).Scan(
		&c.ID, &c.AccountID, &c.Purpose, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &c.Used,
		&c.ResetTokenHash, &c.ResetTokenExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
