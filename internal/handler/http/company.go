package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/internal/tenant"
	"github.com/SultanSulimanSerj/portal/pkg/database"
	"github.com/SultanSulimanSerj/portal/pkg/httputil"
	"github.com/SultanSulimanSerj/portal/pkg/pagination"
)

const (
	defaultAuditPerPage = 50
	maxAuditPerPage     = 200
)

// CompanyReader loads a company on a tenant transaction.
type CompanyReader interface {
	GetByID(ctx context.Context, q database.Querier, companyID string) (*domain.Company, error)
}

// MemberReader lists and loads members of a company.
type MemberReader interface {
	List(ctx context.Context, q database.Querier, companyID string) ([]domain.Member, error)
	Get(ctx context.Context, q database.Querier, companyID, userID string) (*domain.Member, error)
}

// AuditReader pages through a company's audit trail.
type AuditReader interface {
	List(ctx context.Context, q database.Querier, companyID string, limit, offset int) ([]domain.AuditLog, error)
	Count(ctx context.Context, q database.Querier, companyID string) (int, error)
}

// CompanyHandler serves the caller's company. Every handler runs inside the
// tenant boundary opened by tenant.RequireTenant.
type CompanyHandler struct {
	companies CompanyReader
	members   MemberReader
	audit     AuditReader
	logger    *slog.Logger
}

// NewCompanyHandler creates a new company HTTP handler.
func NewCompanyHandler(companies CompanyReader, members MemberReader, audit AuditReader, logger *slog.Logger) *CompanyHandler {
	return &CompanyHandler{companies: companies, members: members, audit: audit, logger: logger}
}

// Get handles GET /api/v1/company
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	company, err := h.companies.GetByID(r.Context(), scope.Querier(), scope.CompanyID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, company)
}

// ListMembers handles GET /api/v1/company/members
func (h *CompanyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	members, err := h.members.List(r.Context(), scope.Querier(), scope.CompanyID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, members)
}

// GetMember handles GET /api/v1/company/members/{id}
func (h *CompanyHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	member, err := h.members.Get(r.Context(), scope.Querier(), scope.CompanyID, id.String())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, member)
}

// ListAuditLogs handles GET /api/v1/company/audit-logs?page=N&per_page=M
func (h *CompanyHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r, defaultAuditPerPage, maxAuditPerPage)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	total, err := h.audit.Count(r.Context(), scope.Querier(), scope.CompanyID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	logs, err := h.audit.List(r.Context(), scope.Querier(), scope.CompanyID, params.PerPage, params.Offset)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, pagination.NewResult(logs, total, params))
}

func (h *CompanyHandler) scope(w http.ResponseWriter, r *http.Request) (tenant.Scope, bool) {
	scope, ok := tenant.ScopeFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrMissingTenantContext, h.logger)
		return tenant.Scope{}, false
	}
	return scope, true
}
