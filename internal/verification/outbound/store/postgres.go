package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/smsotp/internal/pkg/goerror"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"github.com/shandysiswandi/smsotp/internal/verification/entity"
)

const (
	queryGetVerificationCode = `
SELECT code, phone_number, expires_at, attempts
FROM verification_codes
WHERE user_id = $1`

	queryUpsertVerificationCode = `
INSERT INTO verification_codes (user_id, code, phone_number, expires_at, attempts)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
    code = EXCLUDED.code,
    phone_number = EXCLUDED.phone_number,
    expires_at = EXCLUDED.expires_at,
    attempts = EXCLUDED.attempts,
    updated_at = NOW()`

	queryDeleteVerificationCode = `DELETE FROM verification_codes WHERE user_id = $1`

	queryDeleteExpiredVerificationCodes = `DELETE FROM verification_codes WHERE expires_at < $1`
)

// Postgres stores records in the verification_codes table.
type Postgres struct {
	spanner

	conn *pgxpool.Pool
}

func NewPostgres(conn *pgxpool.Pool, ins instrument.Instrumentation) *Postgres {
	return &Postgres{
		spanner: spanner{ins: ins, driver: DriverPostgres},
		conn:    conn,
	}
}

func (p *Postgres) mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}
	return err
}

func (p *Postgres) Get(ctx context.Context, userID string) (_ *entity.Record, err error) {
	ctx, span := p.startSpan(ctx, "Get")
	defer func() { p.endSpan(span, err) }()

	var rec entity.Record
	err = p.conn.QueryRow(ctx, queryGetVerificationCode, userID).
		Scan(&rec.Code, &rec.PhoneNumber, &rec.ExpiresAt, &rec.Attempts)
	if err != nil {
		return nil, p.mapError(err)
	}

	return &rec, nil
}

func (p *Postgres) Set(ctx context.Context, userID string, rec entity.Record) (err error) {
	ctx, span := p.startSpan(ctx, "Set")
	defer func() { p.endSpan(span, err) }()

	// timestamptz keeps microseconds; round up so the stored expiry is never
	// earlier than the caller's.
	expiresAt := rec.ExpiresAt.Add(time.Microsecond - 1).Truncate(time.Microsecond)

	_, err = p.conn.Exec(ctx, queryUpsertVerificationCode,
		userID, rec.Code, rec.PhoneNumber, expiresAt, rec.Attempts)
	return err
}

func (p *Postgres) Delete(ctx context.Context, userID string) (err error) {
	ctx, span := p.startSpan(ctx, "Delete")
	defer func() { p.endSpan(span, err) }()

	_, err = p.conn.Exec(ctx, queryDeleteVerificationCode, userID)
	return err
}

func (p *Postgres) SweepExpired(ctx context.Context, now time.Time) (_ int, err error) {
	ctx, span := p.startSpan(ctx, "SweepExpired")
	defer func() { p.endSpan(span, err) }()

	tag, err := p.conn.Exec(ctx, queryDeleteExpiredVerificationCodes, now)
	if err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}
