package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

// OTPsRepository stores password-change OTPs in Postgres, one row per user.
type OTPsRepository struct {
	db *sql.DB
}

// NewOTPsRepository creates a new OTP repository.
func NewOTPsRepository(db *sql.DB) *OTPsRepository {
	return &OTPsRepository{db: db}
}

// Replace stores otp, overwriting any earlier OTP of the same user.
func (r *OTPsRepository) Replace(ctx context.Context, otp *domain.PasswordOTP) error {
	query := `
		INSERT INTO password_otps (user_id, code_hash, attempts, expires_at, created_at)
		VALUES ($1, $2, 0, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    attempts = 0,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
	`
	_, err := r.db.ExecContext(ctx, query, otp.UserID, otp.CodeHash, otp.ExpiresAt, otp.CreatedAt)
	return err
}

// Get returns the user's OTP if it has not expired at now.
func (r *OTPsRepository) Get(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.PasswordOTP, error) {
	query := `
		SELECT user_id, code_hash, attempts, expires_at, created_at
		FROM password_otps
		WHERE user_id = $1 AND expires_at > $2
	`
	otp := &domain.PasswordOTP{}
	err := r.db.QueryRowContext(ctx, query, userID, now).Scan(
		&otp.UserID, &otp.CodeHash, &otp.Attempts, &otp.ExpiresAt, &otp.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	return otp, nil
}

// IncrementAttempts counts a wrong submission and returns the new total.
func (r *OTPsRepository) IncrementAttempts(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		UPDATE password_otps
		SET attempts = attempts + 1
		WHERE user_id = $1
		RETURNING attempts
	`
	var attempts int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrOTPNotFound
	}
	return attempts, err
}

// Consume deletes the user's OTP if it still carries codeHash and has not
// expired at now. The conditional delete lets exactly one caller win.
func (r *OTPsRepository) Consume(ctx context.Context, userID uuid.UUID, codeHash string, now time.Time) error {
	query := `
		DELETE FROM password_otps
		WHERE user_id = $1 AND code_hash = $2 AND expires_at > $3
	`
	result, err := r.db.ExecContext(ctx, query, userID, codeHash, now)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOTPNotFound
	}
	return nil
}

// Delete removes the user's OTP. Deleting a missing OTP is not an error.
func (r *OTPsRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM password_otps WHERE user_id = $1`, userID)
	return err
}

// DeleteExpired removes OTPs that expired before now and returns how many.
func (r *OTPsRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_otps WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
