package repository

import (
	"context"
	"time"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/database"
)

// UserRepository defines the persistence operations on users.
type UserRepository interface {
	// GetByID retrieves a user by id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by lower-cased email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// EmailExists reports whether an account already uses email.
	EmailExists(ctx context.Context, email string) (bool, error)

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// UpdatePassword replaces the password hash and clears any pending reset.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SetPasswordResetToken stores the hash of a reset token and its expiry.
	SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// ResetPassword consumes an unexpired reset token and stores passwordHash
	// in one statement, returning the user id. Unknown, used and expired
	// tokens yield domain.ErrInvalidResetToken.
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)

	// MarkEmailVerified consumes a verification token and returns the user id it belonged to.
	MarkEmailVerified(ctx context.Context, tokenHash string) (string, error)
}

// AccountRepository creates the rows that make up a new account.
type AccountRepository interface {
	// CreateAccount inserts the user, the company and the membership in one
	// transaction. Nothing is written if any insert fails.
	CreateAccount(ctx context.Context, user *domain.User, company *domain.Company, membership *domain.Membership) error
}

// CompanyRepository defines read operations on companies.
type CompanyRepository interface {
	// SubdomainExists reports whether a company already uses subdomain.
	SubdomainExists(ctx context.Context, subdomain string) (bool, error)

	// GetByID reads a company inside an established tenant boundary.
	GetByID(ctx context.Context, q database.Querier, companyID string) (*domain.Company, error)
}

// MembershipRepository defines read operations on memberships.
type MembershipRepository interface {
	// GetPrimaryByUserID returns the earliest-joined membership of the user.
	GetPrimaryByUserID(ctx context.Context, userID string) (*domain.MembershipWithCompany, error)
}

// MemberRepository reads tenant-scoped member data. Every method runs on the
// querier of an established tenant boundary.
type MemberRepository interface {
	// List returns the members of companyID ordered by join date.
	List(ctx context.Context, q database.Querier, companyID string) ([]domain.Member, error)

	// Get returns a single member of companyID.
	Get(ctx context.Context, q database.Querier, companyID, userID string) (*domain.Member, error)
}

// RefreshTokenRepository defines persistence for hashed refresh tokens.
type RefreshTokenRepository interface {
	// Save stores a new refresh token hash.
	Save(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// Consume atomically deletes the token and returns it. Unknown tokens
	// yield domain.ErrInvalidRefreshToken; a row past its expiry is deleted
	// and yields domain.ErrRefreshTokenExpired.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error)

	// Delete removes a token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteAllForUser removes every token of a user.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes tokens that expired at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditRepository persists tenant-scoped audit records.
type AuditRepository interface {
	// Insert writes a record inside an established tenant boundary.
	Insert(ctx context.Context, q database.Querier, log *domain.AuditLog) error

	// List returns records of companyID, newest first, skipping offset.
	List(ctx context.Context, q database.Querier, companyID string, limit, offset int) ([]domain.AuditLog, error)

	// Count returns the number of records of companyID.
	Count(ctx context.Context, q database.Querier, companyID string) (int, error)
}
