package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/database"
)

// MembershipRepository implements repository.MembershipRepository using PostgreSQL.
type MembershipRepository struct {
	db database.DBTX
}

// NewMembershipRepository creates a new PostgreSQL-backed membership repository.
func NewMembershipRepository(db database.DBTX) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// GetPrimaryByUserID returns the user's earliest membership with its company.
func (r *MembershipRepository) GetPrimaryByUserID(ctx context.Context, userID string) (*domain.MembershipWithCompany, error) {
	query := `
		SELECT m.id, m.user_id, m.company_id, m.role, m.invited_by, m.joined_at,
		       c.id, c.name, c.subdomain, c.created_at, c.updated_at
		FROM memberships m
		JOIN companies c ON c.id = m.company_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at ASC, m.id ASC
		LIMIT 1`

	var (
		m    domain.MembershipWithCompany
		role string
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&m.ID, &m.UserID, &m.CompanyID, &role, &m.InvitedBy, &m.JoinedAt,
		&m.Company.ID, &m.Company.Name, &m.Company.Subdomain, &m.Company.CreatedAt, &m.Company.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("get primary membership: %w", err)
	}

	m.Role = domain.Role(role)
	return &m, nil
}

// MemberRepository implements repository.MemberRepository using PostgreSQL.
// Queries run on the caller's tenant transaction and repeat the company
// predicate on top of row-level security.
type MemberRepository struct{}

// NewMemberRepository creates a new PostgreSQL-backed member repository.
func NewMemberRepository() *MemberRepository {
	return &MemberRepository{}
}

const memberSelect = `
		SELECT u.id, u.email, u.first_name, u.last_name, m.role, u.email_verified, m.joined_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id`

// List returns every member of companyID.
func (r *MemberRepository) List(ctx context.Context, q database.Querier, companyID string) ([]domain.Member, error) {
	rows, err := q.Query(ctx, memberSelect+`
		WHERE m.company_id = $1
		ORDER BY m.joined_at ASC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// Get returns one member of companyID. A user of another company is reported
// as not found.
func (r *MemberRepository) Get(ctx context.Context, q database.Querier, companyID, userID string) (*domain.Member, error) {
	row := q.QueryRow(ctx, memberSelect+`
		WHERE m.company_id = $1 AND m.user_id = $2`, companyID, userID)

	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMemberNotFound
	}
	return m, err
}

func scanMember(row pgx.Row) (*domain.Member, error) {
	var (
		m    domain.Member
		role string
	)
	if err := row.Scan(&m.UserID, &m.Email, &m.FirstName, &m.LastName, &role, &m.EmailVerified, &m.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan member: %w", err)
	}
	m.Role = domain.Role(role)
	return &m, nil
}
