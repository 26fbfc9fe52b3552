package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/internal/tenant"
	"github.com/SultanSulimanSerj/portal/pkg/database"
)

type requestKey struct{}

type requestInfo struct {
	ip        string
	userAgent string
}

// WithRequest stores the caller's address and user agent for audit records
// written further down the call chain.
func WithRequest(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestKey{}, requestInfo{ip: ip, userAgent: userAgent})
}

func requestFromContext(ctx context.Context) requestInfo {
	info, _ := ctx.Value(requestKey{}).(requestInfo)
	return info
}

// Boundary runs fn inside a tenant-scoped transaction. *tenant.Guard implements it.
type Boundary interface {
	Run(ctx context.Context, identity domain.AuthIdentity, fn func(ctx context.Context, s tenant.Scope) error) error
}

// Inserter persists one audit record on a tenant transaction.
type Inserter interface {
	Insert(ctx context.Context, q database.Querier, l *domain.AuditLog) error
}

// Recorder writes audit records through the tenant boundary. Recording is
// best-effort: failures are logged and the calling operation continues.
type Recorder struct {
	boundary Boundary
	logs     Inserter
	logger   *slog.Logger
	now      func() time.Time
}

// NewRecorder creates a new audit recorder.
func NewRecorder(boundary Boundary, logs Inserter, logger *slog.Logger) *Recorder {
	return &Recorder{boundary: boundary, logs: logs, logger: logger, now: time.Now}
}

// Record stores entry under identity's company.
func (r *Recorder) Record(ctx context.Context, identity domain.AuthIdentity, entry domain.AuditLog) {
	if identity.CompanyID == "" {
		r.logger.WarnContext(ctx, "audit record skipped without tenant",
			slog.String("action", entry.Action),
			slog.String("user_id", identity.UserID),
		)
		return
	}

	entry.ID = uuid.NewString()
	entry.CompanyID = identity.CompanyID
	if entry.UserID == "" {
		entry.UserID = identity.UserID
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	req := requestFromContext(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = req.ip
	}
	if entry.UserAgent == "" {
		entry.UserAgent = req.userAgent
	}

	err := r.boundary.Run(ctx, identity, func(ctx context.Context, s tenant.Scope) error {
		return r.logs.Insert(ctx, s.Querier(), &entry)
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to write audit record",
			slog.String("action", entry.Action),
			slog.String("company_id", identity.CompanyID),
			slog.String("error", err.Error()),
		)
	}
}
