package tenant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/database"
	"github.com/SultanSulimanSerj/portal/pkg/logger"
)

// setTenantSQL binds the tenant to the current transaction only; the setting
// disappears on commit or rollback.
const setTenantSQL = `SELECT set_config('app.company_id', $1, true)`

var boundaries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "portal_tenant_boundaries_total",
	Help: "Tenant boundaries by outcome.",
}, []string{"outcome"})

// Beginner starts transactions. pgxpool.Pool and pgxmock pools satisfy it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Scope is an established tenant boundary.
type Scope struct {
	Tx        pgx.Tx
	CompanyID string
}

// Querier returns the transaction as a database.Querier for repositories.
func (s Scope) Querier() database.Querier {
	return s.Tx
}

// Guard binds database work to exactly one tenant.
type Guard struct {
	db     Beginner
	logger *slog.Logger
}

// NewGuard creates a Guard over db.
func NewGuard(db Beginner, logger *slog.Logger) *Guard {
	return &Guard{db: db, logger: logger}
}

// Establish opens a transaction scoped to identity.CompanyID. The caller owns
// the transaction and must commit or roll it back.
func (g *Guard) Establish(ctx context.Context, identity domain.AuthIdentity) (pgx.Tx, error) {
	if identity.CompanyID == "" {
		boundaries.WithLabelValues("missing").Inc()
		return nil, domain.ErrMissingTenantContext
	}

	tx, err := g.db.Begin(ctx)
	if err != nil {
		boundaries.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: begin: %v", domain.ErrTenantContextFailed, err)
	}

	if _, err := tx.Exec(ctx, setTenantSQL, identity.CompanyID); err != nil {
		_ = tx.Rollback(ctx)
		boundaries.WithLabelValues("failed").Inc()
		g.logger.ErrorContext(ctx, "failed to set tenant context",
			slog.String("company_id", identity.CompanyID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: set_config: %v", domain.ErrTenantContextFailed, err)
	}

	boundaries.WithLabelValues("established").Inc()
	return tx, nil
}

// Run establishes a boundary, calls fn inside it, and commits when fn returns
// nil. Any error from fn rolls the transaction back.
func (g *Guard) Run(ctx context.Context, identity domain.AuthIdentity, fn func(ctx context.Context, s Scope) error) error {
	tx, err := g.Establish(ctx, identity)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ctx = logger.WithCompanyID(ctx, identity.CompanyID)
	if err := fn(ctx, Scope{Tx: tx, CompanyID: identity.CompanyID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tenant transaction: %w", err)
	}
	return nil
}

// RequireRole fails with domain.ErrForbidden unless identity holds one of allowed.
func RequireRole(identity domain.AuthIdentity, allowed ...domain.Role) error {
	if !identity.HasAnyRole(allowed...) {
		return domain.ErrForbidden
	}
	return nil
}
