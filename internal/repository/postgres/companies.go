package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/database"
)

// CompanyRepository implements repository.CompanyRepository using PostgreSQL.
type CompanyRepository struct {
	db database.DBTX
}

// NewCompanyRepository creates a new PostgreSQL-backed company repository.
func NewCompanyRepository(db database.DBTX) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// SubdomainExists reports whether subdomain is taken.
func (r *CompanyRepository) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM companies WHERE subdomain = $1)`, subdomain).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check subdomain: %w", err)
	}
	return exists, nil
}

// GetByID reads the tenant's own company row through q.
func (r *CompanyRepository) GetByID(ctx context.Context, q database.Querier, companyID string) (*domain.Company, error) {
	query := `
		SELECT id, name, subdomain, created_at, updated_at
		FROM companies
		WHERE id = $1`

	var c domain.Company
	err := q.QueryRow(ctx, query, companyID).Scan(&c.ID, &c.Name, &c.Subdomain, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}
