package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SultanSulimanSerj/portal/internal/auth"
	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/validator"
)

// ChangePasswordInput holds the parameters for changing a known password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}

// ResetPasswordInput holds the parameters for completing a password reset.
type ResetPasswordInput struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,password"`
}

// ChangePassword replaces the caller's password and revokes every session.
func (s *SessionService) ChangePassword(ctx context.Context, identity domain.AuthIdentity, in ChangePasswordInput) error {
	if err := validator.Validate(in); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !s.hasher.Compare(user.PasswordHash, in.CurrentPassword) {
		return domain.ErrInvalidCredentials
	}

	if err := s.setPassword(ctx, user.ID, in.NewPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, identity, domain.AuditLog{
		Action:     domain.AuditPasswordChanged,
		EntityType: "user",
		EntityID:   user.ID,
	})
	return nil
}

// ForgotPassword stores a one-hour reset token for email and publishes it for
// delivery. Unknown emails are ignored so callers cannot probe for accounts.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	token, err := auth.NewOpaqueToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().UTC().Add(s.cfg.ResetTokenTTL)

	if err := s.users.SetPasswordResetToken(ctx, user.ID, auth.HashToken(token), expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.events.PasswordResetRequested(ctx, user, token, expiresAt)
	s.observe(opPasswordReset, "requested")
	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", user.ID))
	return nil
}

// ResetPassword sets a new password using a reset token and revokes every
// session of the user.
func (s *SessionService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := validator.Validate(in); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}

	userID, err := s.users.ResetPassword(ctx, auth.HashToken(in.Token), hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidResetToken) {
			s.observe(opPasswordReset, outcomeInvalid)
			return err
		}
		return fmt.Errorf("reset password: %w", err)
	}

	if err := s.revokeSessions(ctx, userID); err != nil {
		return err
	}
	s.observe(opPasswordReset, outcomeSuccess)
	return nil
}

// VerifyEmail marks the owner of token as verified.
func (s *SessionService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrInvalidVerification
	}
	userID, err := s.users.MarkEmailVerified(ctx, auth.HashToken(token))
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email verified", slog.String("user_id", userID))
	return nil
}

func (s *SessionService) setPassword(ctx context.Context, userID, plain string) error {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return s.revokeSessions(ctx, userID)
}

func (s *SessionService) revokeSessions(ctx context.Context, userID string) error {
	n, err := s.refreshTokens.DeleteAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	s.logger.InfoContext(ctx, "password updated, sessions revoked",
		slog.String("user_id", userID),
		slog.Int64("revoked", n),
	)
	return nil
}
