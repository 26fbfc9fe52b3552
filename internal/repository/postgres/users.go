package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/database"
)

const userColumns = `id, email, password_hash, first_name, last_name, email_verified,
		COALESCE(email_verification_token, ''), COALESCE(password_reset_token_hash, ''),
		password_reset_expires_at, last_login_at, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// EmailExists reports whether email is registered.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// UpdateLastLogin stamps last_login_at.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	ct, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces the hash and clears any pending reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, password_reset_token_hash = NULL, password_reset_expires_at = NULL, updated_at = now()
		WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetPasswordResetToken stores a reset token hash valid until expiresAt.
func (r *UserRepository) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET password_reset_token_hash = $1, password_reset_expires_at = $2, updated_at = now()
		WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, tokenHash, expiresAt, id)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ResetPassword consumes the reset token and sets the new hash. Only one of
// two concurrent calls with the same token updates the row.
func (r *UserRepository) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	query := `
		UPDATE users
		SET password_hash = $1, password_reset_token_hash = NULL, password_reset_expires_at = NULL, updated_at = now()
		WHERE password_reset_token_hash = $2 AND password_reset_expires_at > $3
		RETURNING id`

	var id string
	if err := r.db.QueryRow(ctx, query, passwordHash, tokenHash, now).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrInvalidResetToken
		}
		return "", fmt.Errorf("reset password: %w", err)
	}
	return id, nil
}

// MarkEmailVerified consumes the verification token.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, tokenHash string) (string, error) {
	query := `
		UPDATE users
		SET email_verified = TRUE, email_verification_token = NULL, updated_at = now()
		WHERE email_verification_token = $1
		RETURNING id`

	var id string
	if err := r.db.QueryRow(ctx, query, tokenHash).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrInvalidVerification
		}
		return "", fmt.Errorf("mark email verified: %w", err)
	}
	return id, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.EmailVerified,
		&u.EmailVerificationToken,
		&u.PasswordResetTokenHash,
		&u.PasswordResetExpiresAt,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}
