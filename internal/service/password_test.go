package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SultanSulimanSerj/portal/internal/auth"
	"github.com/SultanSulimanSerj/portal/internal/domain"
)

func TestChangePassword_WrongCurrent(t *testing.T) {
	f := newFixture(t, SessionConfig{})
	ctx := context.Background()
	user, m := f.existingUser(t, "old-password")
	id := identityFor(user, m.CompanyID, m.Role)

	f.users.On("GetByID", ctx, user.ID).Return(user, nil)

	err := f.svc.ChangePassword(ctx, id, ChangePasswordInput{CurrentPassword: "nope-nope", NewPassword: "new-password-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	f.users.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword_RevokesSessions(t *testing.T) {
	f := newFixture(t, SessionConfig{})
	ctx := context.Background()
	user, m := f.existingUser(t, "old-password")
	id := identityFor(user, m.CompanyID, m.Role)

	var newHash string
	f.users.On("GetByID", ctx, user.ID).Return(user, nil)
	f.users.On("UpdatePassword", ctx, user.ID, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { newHash = args.String(2) }).Return(nil)
	f.refresh.On("DeleteAllForUser", ctx, user.ID).Return(int64(3), nil)

	err := f.svc.ChangePassword(ctx, id, ChangePasswordInput{CurrentPassword: "old-password", NewPassword: "new-password-1"})
	require.NoError(t, err)
	assert.True(t, f.hasher.Compare(newHash, "new-password-1"))
	assert.Equal(t, []string{domain.AuditPasswordChanged}, f.audit.actions())
	f.assertExpectations(t)
}

func TestForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t, SessionConfig{})
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ghost@acme.io").Return(nil, domain.ErrUserNotFound)

	require.NoError(t, f.svc.ForgotPassword(ctx, "Ghost@Acme.io"))
	assert.Empty(t, f.events.kinds())
	f.users.AssertNotCalled(t, "SetPasswordResetToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestForgotPassword_StoresHashedTokenForOneHour(t *testing.T) {
	f := newFixture(t, SessionConfig{})
	ctx := context.Background()
	user, _ := f.existingUser(t, "pw-irrelevant")

	var storedHash string
	f.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	f.users.On("SetPasswordResetToken", ctx, user.ID, mock.AnythingOfType("string"), f.clock.t.Add(time.Hour)).
		Run(func(args mock.Arguments) { storedHash = args.String(2) }).Return(nil)

	require.NoError(t, f.svc.ForgotPassword(ctx, user.Email))
	require.Equal(t, []string{"reset_requested"}, f.events.kinds())
	assert.Equal(t, auth.HashToken(f.events.events[0].token), storedHash)
	assert.NotEqual(t, f.events.events[0].token, storedHash)
	f.assertExpectations(t)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t, SessionConfig{})
	ctx := context.Background()
	user, _ := f.existingUser(t, "pw-irrelevant")

	var stored string
	f.users.On("ResetPassword", ctx, auth.HashToken("reset-tok"), mock.AnythingOfType("string"), f.clock.t).
		Run(func(args mock.Arguments) { stored = args.String(2) }).
		Return(user.ID, nil)
	f.refresh.On("DeleteAllForUser", ctx, user.ID).Return(int64(1), nil)

	require.NoError(t, f.svc.ResetPassword(ctx, ResetPasswordInput{Token: "reset-tok", NewPassword: "brand-new-pass"}))
	assert.True(t, f.hasher.Compare(stored, "brand-new-pass"))
	f.users.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestResetPassword_ConcurrentSameTokenSucceedsOnce(t *testing.T) {
	f := newFixture(t, SessionConfig{})
	ctx := context.Background()
	user, _ := f.existingUser(t, "pw-irrelevant")
	hash := auth.HashToken("reset-tok")

	f.users.On("ResetPassword", ctx, hash, mock.Anything, mock.Anything).Return(user.ID, nil).Once()
	f.users.On("ResetPassword", ctx, hash, mock.Anything, mock.Anything).Return("", domain.ErrInvalidResetToken).Once()
	f.refresh.On("DeleteAllForUser", ctx, user.ID).Return(int64(2), nil).Once()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: "reset-tok", NewPassword: "brand-new-pass"})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidResetToken)
	}
	assert.Equal(t, 1, succeeded)
	f.assertExpectations(t)
}

func TestResetPassword_InvalidToken(t *testing.T) {
	f := newFixture(t, SessionConfig{})
	ctx := context.Background()

	f.users.On("ResetPassword", ctx, mock.Anything, mock.Anything, mock.Anything).Return("", domain.ErrInvalidResetToken)

	err := f.svc.ResetPassword(ctx, ResetPasswordInput{Token: "stale", NewPassword: "brand-new-pass"})
	assert.ErrorIs(t, err, domain.ErrInvalidResetToken)
	f.refresh.AssertNotCalled(t, "DeleteAllForUser", mock.Anything, mock.Anything)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t, SessionConfig{})
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, ""), domain.ErrInvalidVerification)

	f.users.On("MarkEmailVerified", ctx, auth.HashToken("verify-tok")).Return("u1", nil)
	require.NoError(t, f.svc.VerifyEmail(ctx, "verify-tok"))
	f.assertExpectations(t)
}
