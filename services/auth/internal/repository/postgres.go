package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/touristalert/backend/services/auth/internal/domain"
)

const queryTimeout = 3 * time.Second

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{q: tx})
	})
}

type pgTx struct {
	q querier
}

func (t *pgTx) Accounts() AccountRepository { return &accountRepository{q: t.q} }
func (t *pgTx) Codes() CodeRepository       { return &codeRepository{q: t.q} }

var constraintFields = map[string]string{
	"accounts_email_key":                FieldEmail,
	"accounts_username_key":             FieldUsername,
	"accounts_phone_number_key":         FieldPhone,
	"guide_profiles_license_number_key": FieldLicense,
	"guide_profiles_account_id_key":     "account",
}

// mapError turns unique violations into DuplicateError naming the field.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		field, ok := constraintFields[pgErr.ConstraintName]
		if !ok {
			field = pgErr.ConstraintName
		}
		dup := domain.NewDuplicateError(field)
		dup.Err = err
		return dup
	}
	return err
}
