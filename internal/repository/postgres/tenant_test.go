package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SultanSulimanSerj/portal/internal/domain"
)

const (
	tenantA = "aaaaaaaa-0000-4000-8000-000000000001"
	tenantB = "bbbbbbbb-0000-4000-8000-000000000002"
)

var memberColumns = []string{"id", "email", "first_name", "last_name", "role", "email_verified", "joined_at"}

func TestMembershipRepository_GetPrimaryByUserID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewMembershipRepository(mock)
	joined := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM memberships m").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "company_id", "role", "invited_by", "joined_at",
			"c_id", "name", "subdomain", "created_at", "updated_at",
		}).AddRow("m1", "u1", tenantA, "OWNER", (*string)(nil), joined,
			tenantA, "Acme", "acme", joined, joined))

	got, err := repo.GetPrimaryByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, got.Role)
	assert.Equal(t, "acme", got.Company.Subdomain)
	assert.Nil(t, got.InvitedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepository_GetPrimaryByUserID_None(t *testing.T) {
	mock := newMockPool(t)
	repo := NewMembershipRepository(mock)

	mock.ExpectQuery("FROM memberships m").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.GetPrimaryByUserID(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
}

func TestCompanyRepository_SubdomainExists(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCompanyRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.SubdomainExists(context.Background(), "acme")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemberRepository_List_ScopedToCompany(t *testing.T) {
	mock := newMockPool(t)
	repo := NewMemberRepository()
	joined := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE m.company_id =").
		WithArgs(tenantA).
		WillReturnRows(pgxmock.NewRows(memberColumns).
			AddRow("u1", "a@acme.io", "Ann", "A", "OWNER", true, joined).
			AddRow("u2", "b@acme.io", "Bob", "B", "VIEWER", false, joined.Add(time.Hour)))

	members, err := repo.List(context.Background(), mock, tenantA)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, domain.RoleViewer, members[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepository_Get_OtherTenantIsNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewMemberRepository()

	// u9 belongs to tenantB; the tenantA predicate and RLS both hide it.
	mock.ExpectQuery("WHERE m.company_id = .+ AND m.user_id =").
		WithArgs(tenantA, "u9").
		WillReturnRows(pgxmock.NewRows(memberColumns))

	_, err := repo.Get(context.Background(), mock, tenantA, "u9")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_InsertAndList(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAuditRepository()
	at := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	entry := &domain.AuditLog{
		ID:         "a1",
		CompanyID:  tenantB,
		UserID:     "u1",
		Action:     domain.AuditUserLoggedIn,
		EntityType: "user",
		EntityID:   "u1",
		IPAddress:  "10.0.0.1",
		CreatedAt:  at,
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("a1", tenantB, "u1", domain.AuditUserLoggedIn, "user", "u1", []byte("{}"), "10.0.0.1", "", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FROM audit_logs").
		WithArgs(tenantB, 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "company_id", "user_id", "action", "entity_type", "entity_id",
			"metadata", "ip_address", "user_agent", "created_at",
		}).AddRow("a1", tenantB, "u1", domain.AuditUserLoggedIn, "user", "u1", []byte(`{"k":"v"}`), "10.0.0.1", "", at))

	require.NoError(t, repo.Insert(context.Background(), mock, entry))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_logs`).
		WithArgs(tenantB).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	logs, err := repo.List(context.Background(), mock, tenantB, 50, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{"k":"v"}`, string(logs[0].Metadata))
	assert.Equal(t, json.RawMessage(`{"k":"v"}`), logs[0].Metadata)

	n, err := repo.Count(context.Background(), mock, tenantB)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
