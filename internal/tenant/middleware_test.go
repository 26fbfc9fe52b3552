package tenant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SultanSulimanSerj/portal/internal/domain"
)

type stubVerifier struct {
	identity domain.AuthIdentity
	err      error
}

func (s stubVerifier) VerifyAccessToken(string) (domain.AuthIdentity, error) {
	return s.identity, s.err
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestRequireAuth(t *testing.T) {
	id := identityFor(companyA, domain.RoleOwner)
	tests := []struct {
		name     string
		header   string
		verifier stubVerifier
		status   int
		code     string
	}{
		{"missing header", "", stubVerifier{identity: id}, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong scheme", "Basic abc", stubVerifier{identity: id}, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "Bearer tok", stubVerifier{err: domain.ErrExpiredToken}, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"invalid", "Bearer tok", stubVerifier{err: domain.ErrInvalidToken}, http.StatusUnauthorized, "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireAuth(tt.verifier, newTestLogger())(http.HandlerFunc(okHandler))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestRequireAuth_StoresIdentity(t *testing.T) {
	id := identityFor(companyA, domain.RoleOwner)
	var got domain.AuthIdentity
	h := RequireAuth(stubVerifier{identity: id}, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = domain.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, id, got)
}

func chain(v TokenVerifier, g *Guard, final http.Handler, roles ...domain.Role) http.Handler {
	log := newTestLogger()
	h := final
	if len(roles) > 0 {
		h = RequireAnyRole(log, roles...)(h)
	}
	return RequireAuth(v, log)(RequireTenant(g, log)(h))
}

func TestRequireTenant_MissingCompany(t *testing.T) {
	g, mock := newGuard(t)
	h := chain(stubVerifier{identity: identityFor("", domain.RoleOwner)}, g, http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "MISSING_TENANT_CONTEXT", errorCode(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireTenant_CommitsAndExposesScope(t *testing.T) {
	g, mock := newGuard(t)
	mock.ExpectBegin()
	mock.ExpectExec("set_config").WithArgs(companyA).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	var scope Scope
	h := chain(stubVerifier{identity: identityFor(companyA, domain.RoleViewer)}, g,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, _ = ScopeFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, companyA, scope.CompanyID)
	assert.NotNil(t, scope.Tx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireTenant_ErrorResponseRollsBack(t *testing.T) {
	g, mock := newGuard(t)
	mock.ExpectBegin()
	mock.ExpectExec("set_config").WithArgs(companyA).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectRollback()

	h := chain(stubVerifier{identity: identityFor(companyA, domain.RoleViewer)}, g,
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireAnyRole_Forbidden(t *testing.T) {
	g, mock := newGuard(t)
	mock.ExpectBegin()
	mock.ExpectExec("set_config").WithArgs(companyA).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectRollback()

	h := chain(stubVerifier{identity: identityFor(companyA, domain.RoleWorker)}, g,
		http.HandlerFunc(okHandler), domain.RoleOwner, domain.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}
