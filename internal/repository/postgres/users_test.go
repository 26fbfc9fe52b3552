package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SultanSulimanSerj/portal/internal/domain"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func sampleUser() *domain.User {
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	return &domain.User{
		ID:           "8f14e45f-ceea-467f-a8b2-7f5b8c1d2e3a",
		Email:        "alice@example.com",
		PasswordHash: "$2a$04$hash",
		FirstName:    "Alice",
		LastName:     "Smith",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func userRows(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "email_verified",
		"email_verification_token", "password_reset_token_hash",
		"password_reset_expires_at", "last_login_at", "created_at", "updated_at",
	}).AddRow(
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.EmailVerified,
		u.EmailVerificationToken, u.PasswordResetTokenHash,
		u.PasswordResetExpiresAt, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestUserRepository_GetByEmail_Success(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	u := sampleUser()

	mock.ExpectQuery("FROM users WHERE email =").
		WithArgs(u.Email).
		WillReturnRows(userRows(u))

	got, err := repo.GetByEmail(context.Background(), u.Email)
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery("FROM users WHERE id =").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_DBError(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery("FROM users WHERE id =").
		WithArgs("u1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)
	assert.Contains(t, err.Error(), "scan user")
}

func TestUserRepository_EmailExists(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ResetPassword_ConsumesTokenOnce(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SET password_hash = .+ WHERE password_reset_token_hash = .+ AND password_reset_expires_at > .+ RETURNING id").
		WithArgs("newhash", "hash", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery("WHERE password_reset_token_hash =").
		WithArgs("otherhash", "hash", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	id, err := repo.ResetPassword(context.Background(), "hash", "newhash", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = repo.ResetPassword(context.Background(), "hash", "otherhash", now)
	assert.ErrorIs(t, err, domain.ErrInvalidResetToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ResetPassword_StorageFault(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE password_reset_token_hash =").
		WithArgs("newhash", "hash", now).
		WillReturnError(errors.New("conn reset"))

	_, err := repo.ResetPassword(context.Background(), "hash", "newhash", now)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidResetToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

func TestUserRepository_UpdateLastLogin(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE users SET last_login_at").
		WithArgs(at, "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateLastLogin(context.Background(), "u1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePassword_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec("UPDATE users").
		WithArgs("newhash", "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePassword(context.Background(), "ghost", "newhash")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_SetPasswordResetToken(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	exp := time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)

	mock.ExpectExec("SET password_reset_token_hash").
		WithArgs("hash", exp, "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetPasswordResetToken(context.Background(), "u1", "hash", exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_MarkEmailVerified(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery("SET email_verified = TRUE").
		WithArgs("good").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery("SET email_verified = TRUE").
		WithArgs("good").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	id, err := repo.MarkEmailVerified(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = repo.MarkEmailVerified(context.Background(), "good")
	assert.ErrorIs(t, err, domain.ErrInvalidVerification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// CreateAccount
// ---------------------------------------------------------------------------

func sampleAccount() (*domain.User, *domain.Company, *domain.Membership) {
	u := sampleUser()
	c := &domain.Company{
		ID:        "c6b3d1f2-0a4e-4b7c-9d8e-1f2a3b4c5d6e",
		Name:      "Alice Smith's Company",
		Subdomain: "user-8f14e45fceea467fa8b27f5b8c1d2e3a",
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	m := &domain.Membership{
		ID:        "0e1d2c3b-4a59-4687-9a8b-7c6d5e4f3a2b",
		UserID:    u.ID,
		CompanyID: c.ID,
		Role:      domain.RoleOwner,
		JoinedAt:  u.CreatedAt,
	}
	return u, c, m
}

func expectInsertUser(mock pgxmock.PgxPoolIface, u *domain.User) *pgxmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
			u.EmailVerified, u.EmailVerificationToken, u.CreatedAt, u.UpdatedAt)
}

func expectInsertCompany(mock pgxmock.PgxPoolIface, c *domain.Company) *pgxmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO companies").
		WithArgs(c.ID, c.Name, c.Subdomain, c.CreatedAt, c.UpdatedAt)
}

func expectInsertMembership(mock pgxmock.PgxPoolIface, m *domain.Membership) *pgxmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO memberships").
		WithArgs(m.ID, m.UserID, m.CompanyID, "OWNER", m.InvitedBy, m.JoinedAt)
}

func TestAccountRepository_CreateAccount_Success(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)
	u, c, m := sampleAccount()

	mock.ExpectBegin()
	expectInsertUser(mock, u).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectInsertCompany(mock, c).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectInsertMembership(mock, m).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateAccount(context.Background(), u, c, m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_CreateAccount_DuplicateEmailRollsBack(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)
	u, c, m := sampleAccount()

	mock.ExpectBegin()
	expectInsertUser(mock, u).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	mock.ExpectRollback()

	err := repo.CreateAccount(context.Background(), u, c, m)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_CreateAccount_DuplicateSubdomainRollsBack(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)
	u, c, m := sampleAccount()

	mock.ExpectBegin()
	expectInsertUser(mock, u).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectInsertCompany(mock, c).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "companies_subdomain_key"})
	mock.ExpectRollback()

	err := repo.CreateAccount(context.Background(), u, c, m)
	assert.ErrorIs(t, err, domain.ErrDuplicateSubdomain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_CreateAccount_MembershipFailureRollsBack(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)
	u, c, m := sampleAccount()

	mock.ExpectBegin()
	expectInsertUser(mock, u).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectInsertCompany(mock, c).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectInsertMembership(mock, m).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.CreateAccount(context.Background(), u, c, m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert membership")
	assert.NoError(t, mock.ExpectationsWereMet())
}
