package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

const userColumns = `
	id, username, email, first_name, last_name, profile_picture,
	auth_provider, google_id, password_hash,
	is_verified, verified_at, verification_token_hash, verification_token_expires_at,
	reset_token_hash, reset_token_expires_at,
	failed_login_attempts, locked_until, is_admin,
	registration_ip, last_login_ip, last_login_at, created_at, updated_at`

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create creates a new user. A duplicate email is reported as
// domain.ErrUserAlreadyExists and a duplicate username as
// domain.ErrUsernameAlreadyExists.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (
			id, username, email, first_name, last_name, profile_picture,
			auth_provider, google_id, password_hash,
			is_verified, verified_at, verification_token_hash, verification_token_expires_at,
			registration_ip, last_login_ip, last_login_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.ProfilePicture,
		user.AuthProvider, user.GoogleID, user.PasswordHash,
		user.IsVerified, user.VerifiedAt, user.VerificationTokenHash, user.VerificationTokenExpiresAt,
		user.RegistrationIP, user.LastLoginIP, user.LastLoginAt, user.CreatedAt, user.UpdatedAt,
	)
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "users_username_key":
			return domain.ErrUsernameAlreadyExists
		default:
			return domain.ErrUserAlreadyExists
		}
	}
	return err
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// ExistsByEmail checks if a user exists by email, ignoring case.
func (r *UsersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, email).Scan(&exists)
	return exists, err
}

// ExistsByUsername checks if a user exists by username.
func (r *UsersRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, username).Scan(&exists)
	return exists, err
}

// RecordFailedLogin increments the failed login counter and locks the account
// once the counter reaches maxAttempts, in a single statement. A lock that has
// already elapsed restarts the count.
func (r *UsersRepository) RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil, now time.Time) (domain.LockState, error) {
	query := `
		WITH next AS (
			SELECT id,
			       CASE
			           WHEN locked_until IS NOT NULL AND locked_until <= $4 THEN 1
			           ELSE failed_login_attempts + 1
			       END AS attempts
			FROM users
			WHERE id = $1
			FOR UPDATE
		)
		UPDATE users u
		SET failed_login_attempts = next.attempts,
		    locked_until = CASE
		        WHEN next.attempts >= $2 THEN $3
		        WHEN u.locked_until IS NOT NULL AND u.locked_until <= $4 THEN NULL
		        ELSE u.locked_until
		    END,
		    updated_at = $4
		FROM next
		WHERE u.id = next.id
		RETURNING u.failed_login_attempts, u.locked_until
	`
	var state domain.LockState
	err := r.db.QueryRowContext(ctx, query, id, maxAttempts, lockUntil, now).Scan(&state.FailedAttempts, &state.LockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LockState{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.LockState{}, err
	}
	return state, nil
}

// ResetFailedLogins resets the failed login attempts and clears lockout.
func (r *UsersRepository) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id)
}

// RecordSuccessfulLogin clears lockout and stamps the last login.
func (r *UsersRepository) RecordSuccessfulLogin(ctx context.Context, id uuid.UUID, ip string, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login_ip = $2,
		    last_login_at = $3,
		    updated_at = $3
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, ip, at)
}

// LinkGoogleID attaches a Google account id.
func (r *UsersRepository) LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error {
	query := `UPDATE users SET google_id = $2, updated_at = NOW() WHERE id = $1`
	err := r.execOne(ctx, query, id, googleID)
	if _, ok := uniqueConstraint(err); ok {
		return domain.ErrProviderMismatch
	}
	return err
}

// SetResetToken stores the digest of a password reset token and its expiry.
func (r *UsersRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, tokenHash, expiresAt)
}

// ResetPasswordWithToken sets a new password for the user holding a valid
// reset token. Token fields and lockout are cleared in the same statement, so
// the token can only be used once.
func (r *UsersRepository) ResetPasswordWithToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uuid.UUID, error) {
	query := `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = $3
		WHERE reset_token_hash = $1
		  AND reset_token_expires_at > $3
		  AND auth_provider = 'local'
		RETURNING id
	`
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, tokenHash, passwordHash, now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, domain.ErrInvalidResetToken
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// SetVerificationToken stores the digest of an email verification token.
func (r *UsersRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET verification_token_hash = $2, verification_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, tokenHash, expiresAt)
}

// VerifyEmailWithToken marks the holder of a valid verification token as
// verified and clears the token.
func (r *UsersRepository) VerifyEmailWithToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	query := `
		UPDATE users
		SET is_verified = TRUE,
		    verified_at = $2,
		    verification_token_hash = NULL,
		    verification_token_expires_at = NULL,
		    updated_at = $2
		WHERE verification_token_hash = $1
		  AND verification_token_expires_at > $2
		RETURNING id
	`
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, tokenHash, now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, domain.ErrInvalidVerificationToken
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// UpdatePassword replaces the password hash and clears lockout.
func (r *UsersRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    failed_login_attempts = 0,
		    locked_until = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *UsersRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var provider string
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.ProfilePicture,
		&provider, &user.GoogleID, &user.PasswordHash,
		&user.IsVerified, &user.VerifiedAt, &user.VerificationTokenHash, &user.VerificationTokenExpiresAt,
		&user.ResetTokenHash, &user.ResetTokenExpiresAt,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.IsAdmin,
		&user.RegistrationIP, &user.LastLoginIP, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.AuthProvider = domain.AuthProvider(provider)
	return user, nil
}
