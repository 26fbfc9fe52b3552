package postgres

import (
	"context"
	"fmt"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/database"
)

// AuditRepository implements repository.AuditRepository using PostgreSQL.
// audit_logs has forced row-level security, so every call must run on a
// tenant transaction.
type AuditRepository struct{}

// NewAuditRepository creates a new PostgreSQL-backed audit repository.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Insert writes one audit record.
func (r *AuditRepository) Insert(ctx context.Context, q database.Querier, l *domain.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, company_id, user_id, action, entity_type, entity_id, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''), $10)`

	metadata := []byte(l.Metadata)
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	_, err := q.Exec(ctx, query,
		l.ID, l.CompanyID, l.UserID, l.Action, l.EntityType, l.EntityID,
		metadata, l.IPAddress, l.UserAgent, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List returns one page of companyID's records, newest first.
func (r *AuditRepository) List(ctx context.Context, q database.Querier, companyID string, limit, offset int) ([]domain.AuditLog, error) {
	query := `
		SELECT id, company_id, COALESCE(user_id::text, ''), action, entity_type, COALESCE(entity_id, ''),
		       metadata, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM audit_logs
		WHERE company_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := q.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0)
	for rows.Next() {
		var (
			l        domain.AuditLog
			metadata []byte
		)
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.UserID, &l.Action, &l.EntityType, &l.EntityID,
			&metadata, &l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		l.Metadata = metadata
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return logs, nil
}

// Count returns the number of records of companyID.
func (r *AuditRepository) Count(ctx context.Context, q database.Querier, companyID string) (int, error) {
	var n int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs WHERE company_id = $1`, companyID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return n, nil
}
