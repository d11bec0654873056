package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/touristalert/backend/services/auth/internal/domain"
)

type accountRepository struct {
	q querier
}

const accountCols = `
	a.id, a.email, a.username, a.full_name, a.phone_number, a.photo, a.role,
	a.is_verified, a.is_active, a.is_staff, a.is_superuser, a.password_hash,
	a.created_at, a.updated_at,
	g.id, g.license_number, g.license_issued_by, g.bio, g.status, g.created_at, g.updated_at`

const accountFrom = `
	FROM accounts a
	LEFT JOIN guide_profiles g ON g.account_id = a.id`

func (r *accountRepository) Create(ctx context.Context, a *domain.Account) error {
	a.Normalize()

	const q = `
		INSERT INTO accounts (id, email, username, full_name, phone_number, photo, role,
			is_verified, is_active, is_staff, is_superuser, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.q.Exec(ctx, q,
		a.ID, a.Email, a.Username, a.FullName, a.PhoneNumber, a.Photo, a.Role,
		a.Verified, a.Active, a.IsStaff, a.IsSuperuser, a.PasswordHash, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}

	if p := a.GuideProfile; p != nil {
		p.AccountID = a.ID
		const gq = `
			INSERT INTO guide_profiles (id, account_id, license_number, license_issued_by, bio, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		if _, err := r.q.Exec(ctx, gq,
			p.ID, p.AccountID, p.LicenseNumber, p.LicenseIssuedBy, p.Bio, p.Status, p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountCols+accountFrom+` WHERE a.id = $1`, id)
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountCols+accountFrom+` WHERE a.email = $1`, strings.ToLower(email))
}

func (r *accountRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountCols+accountFrom+` WHERE a.id = $1 FOR UPDATE OF a`, id)
}

func (r *accountRepository) LockByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountCols+accountFrom+` WHERE a.email = $1 FOR UPDATE OF a`, strings.ToLower(email))
}

func (r *accountRepository) Exists(ctx context.Context, field, value string) (bool, error) {
	var q string
	switch field {
	case FieldEmail:
		q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`
		value = strings.ToLower(value)
	case FieldUsername:
		q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`
	case FieldPhone:
		q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE phone_number = $1)`
	case FieldLicense:
		q = `SELECT EXISTS (SELECT 1 FROM guide_profiles WHERE license_number = $1)`
	default:
		return false, fmt.Errorf("unknown unique field %q", field)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.q.QueryRow(ctx, q, value).Scan(&exists)
	return exists, err
}

func (r *accountRepository) Update(ctx context.Context, a *domain.Account) error {
	a.Normalize()

	const q = `
		UPDATE accounts SET
			email = $2, username = $3, full_name = $4, phone_number = $5, photo = $6, role = $7,
			is_verified = $8, is_active = $9, is_staff = $10, is_superuser = $11, updated_at = $12
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, q,
		a.ID, a.Email, a.Username, a.FullName, a.PhoneNumber, a.Photo, a.Role,
		a.Verified, a.Active, a.IsStaff, a.IsSuperuser, a.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("account not found")
	}
	return nil
}

func (r *accountRepository) UpdateGuideStatus(ctx context.Context, accountID uuid.UUID, status domain.GuideStatus, at time.Time) error {
	const q = `UPDATE guide_profiles SET status = $2, updated_at = $3 WHERE account_id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, q, accountID, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("Guide profile not found.")
	}
	return nil
}

func (r *accountRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) error {
	const q = `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, q, id, hash, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("account not found")
	}
	return nil
}

func (r *accountRepository) UpdateGuideBio(ctx context.Context, accountID uuid.UUID, bio string, at time.Time) error {
	const q = `UPDATE guide_profiles SET bio = $2, updated_at = $3 WHERE account_id = $1`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, q, accountID, bio, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("Guide profile not found.")
	}
	return nil
}

// Delete relies on ON DELETE CASCADE for guide_profiles and one_time_codes.
func (r *accountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.q.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("account not found")
	}
	return nil
}

func (r *accountRepository) ListAccounts(ctx context.Context, page domain.Page) ([]*domain.Account, error) {
	q := `SELECT ` + accountCols + accountFrom + ` ORDER BY a.created_at DESC LIMIT $1 OFFSET $2`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.q.Query(ctx, q, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *accountRepository) ListGuides(ctx context.Context, f GuideFilter, page domain.Page) ([]*domain.Account, error) {
	q := `SELECT ` + accountCols + `
		FROM accounts a
		JOIN guide_profiles g ON g.account_id = a.id
		WHERE a.role = 'GUIDE'`
	args := []any{}
	if f.Status != nil {
		args = append(args, *f.Status)
		q += fmt.Sprintf(" AND g.status = $%d", len(args))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		q += fmt.Sprintf(" AND a.is_active = $%d", len(args))
	}
	args = append(args, page.Limit, page.Offset)
	q += fmt.Sprintf(" ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *accountRepository) findOne(ctx context.Context, q string, arg any) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	a, err := scanAccount(r.q.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a  domain.Account
		gp struct {
			id        *uuid.UUID
			license   *string
			issuedBy  *string
			bio       *string
			status    *string
			createdAt *time.Time
			updatedAt *time.Time
		}
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.Username, &a.FullName, &a.PhoneNumber, &a.Photo, &a.Role,
		&a.Verified, &a.Active, &a.IsStaff, &a.IsSuperuser, &a.PasswordHash,
		&a.CreatedAt, &a.UpdatedAt,
		&gp.id, &gp.license, &gp.issuedBy, &gp.bio, &gp.status, &gp.createdAt, &gp.updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if gp.id != nil {
		a.GuideProfile = &domain.GuideProfile{
			ID:              *gp.id,
			AccountID:       a.ID,
			LicenseNumber:   *gp.license,
			LicenseIssuedBy: *gp.issuedBy,
			Bio:             *gp.bio,
			Status:          domain.GuideStatus(*gp.status),
			CreatedAt:       *gp.createdAt,
			UpdatedAt:       *gp.updatedAt,
		}
	}
	return &a, nil
}
