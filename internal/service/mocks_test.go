package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/database"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *mockUserRepository) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, id, tokenHash, expiresAt).Error(0)
}

func (m *mockUserRepository) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	args := m.Called(ctx, tokenHash, passwordHash, now)
	return args.String(0), args.Error(1)
}

func (m *mockUserRepository) MarkEmailVerified(ctx context.Context, tokenHash string) (string, error) {
	args := m.Called(ctx, tokenHash)
	return args.String(0), args.Error(1)
}

// --- Mock Account Repository ---

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) CreateAccount(ctx context.Context, u *domain.User, c *domain.Company, ms *domain.Membership) error {
	return m.Called(ctx, u, c, ms).Error(0)
}

// --- Mock Company Repository ---

type mockCompanyRepository struct {
	mock.Mock
}

func (m *mockCompanyRepository) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	args := m.Called(ctx, subdomain)
	return args.Bool(0), args.Error(1)
}

func (m *mockCompanyRepository) GetByID(ctx context.Context, q database.Querier, companyID string) (*domain.Company, error) {
	args := m.Called(ctx, q, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Company), args.Error(1)
}

// --- Mock Membership Repository ---

type mockMembershipRepository struct {
	mock.Mock
}

func (m *mockMembershipRepository) GetPrimaryByUserID(ctx context.Context, userID string) (*domain.MembershipWithCompany, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MembershipWithCompany), args.Error(1)
}

// --- Mock Refresh Token Repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Save(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, userID, tokenHash, expiresAt).Error(0)
}

func (m *mockRefreshTokenRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

func (m *mockRefreshTokenRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Throttle ---

type mockThrottle struct {
	mock.Mock
}

func (m *mockThrottle) Check(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockThrottle) RecordFailure(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockThrottle) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// --- Recording fakes ---

type recordedEvent struct {
	kind     string
	userID   string
	token    string
	identity domain.AuthIdentity
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) add(e recordedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeEvents) UserRegistered(_ context.Context, u *domain.User, _ *domain.Company, token string) {
	f.add(recordedEvent{kind: "registered", userID: u.ID, token: token})
}

func (f *fakeEvents) UserLoggedIn(_ context.Context, id domain.AuthIdentity) {
	f.add(recordedEvent{kind: "logged_in", userID: id.UserID, identity: id})
}

func (f *fakeEvents) PasswordResetRequested(_ context.Context, u *domain.User, token string, _ time.Time) {
	f.add(recordedEvent{kind: "reset_requested", userID: u.ID, token: token})
}

func (f *fakeEvents) RefreshReuseDetected(_ context.Context, id domain.AuthIdentity) {
	f.add(recordedEvent{kind: "reuse", userID: id.UserID, identity: id})
}

func (f *fakeEvents) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.kind)
	}
	return out
}

type fakeAuditor struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (f *fakeAuditor) Record(_ context.Context, id domain.AuthIdentity, e domain.AuditLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.CompanyID = id.CompanyID
	e.UserID = id.UserID
	f.entries = append(f.entries, e)
}

func (f *fakeAuditor) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}
