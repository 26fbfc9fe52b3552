package postgres

import (
	"context"
	"fmt"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/database"
)

// Constraint names from the initial migration.
const (
	constraintUserEmail        = "users_email_key"
	constraintCompanySubdomain = "companies_subdomain_key"
)

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount inserts the user, company and membership in one transaction.
func (r *AccountRepository) CreateAccount(ctx context.Context, u *domain.User, c *domain.Company, m *domain.Membership) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateAccount", "INSERT INTO users, companies, memberships")
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, email_verified, email_verification_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.EmailVerified, u.EmailVerificationToken, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapAccountError("insert user", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO companies (id, name, subdomain, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Subdomain, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return mapAccountError("insert company", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO memberships (id, user_id, company_id, role, invited_by, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.UserID, m.CompanyID, m.Role.String(), m.InvitedBy, m.JoinedAt,
	)
	if err != nil {
		return mapAccountError("insert membership", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account: %w", err)
	}
	return nil
}

func mapAccountError(op string, err error) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		switch constraint {
		case constraintUserEmail:
			return domain.ErrDuplicateEmail
		case constraintCompanySubdomain:
			return domain.ErrDuplicateSubdomain
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
