package domain

import (
	"fmt"

	apperrors "github.com/SultanSulimanSerj/portal/pkg/errors"
)

// Domain errors. Each wraps a generic sentinel from pkg/errors so callers can
// match on either.
var (
	ErrDuplicateEmail       = fmt.Errorf("email already registered: %w", apperrors.ErrAlreadyExists)
	ErrDuplicateSubdomain   = fmt.Errorf("subdomain already taken: %w", apperrors.ErrAlreadyExists)
	ErrInvalidCredentials   = fmt.Errorf("invalid email or password: %w", apperrors.ErrUnauthorized)
	ErrInvalidRefreshToken  = fmt.Errorf("invalid refresh token: %w", apperrors.ErrUnauthorized)
	ErrExpiredToken         = fmt.Errorf("token expired: %w", apperrors.ErrUnauthorized)
	ErrRefreshTokenExpired  = fmt.Errorf("refresh token expired: %w", ErrInvalidRefreshToken)
	ErrInvalidToken         = fmt.Errorf("invalid token: %w", apperrors.ErrUnauthorized)
	ErrMissingTenantContext = fmt.Errorf("missing tenant context: %w", apperrors.ErrForbidden)
	ErrTenantContextFailed  = fmt.Errorf("failed to establish tenant context: %w", apperrors.ErrInternal)
	ErrForbidden            = fmt.Errorf("insufficient role: %w", apperrors.ErrForbidden)
	ErrTooManyAttempts      = fmt.Errorf("too many login attempts: %w", apperrors.ErrTooManyRequests)
	ErrInvalidResetToken    = fmt.Errorf("invalid or expired reset token: %w", apperrors.ErrInvalidInput)
	ErrInvalidVerification  = fmt.Errorf("invalid verification token: %w", apperrors.ErrInvalidInput)
	ErrUserNotFound         = fmt.Errorf("user: %w", apperrors.ErrNotFound)
	ErrMembershipNotFound   = fmt.Errorf("membership: %w", apperrors.ErrNotFound)
	ErrCompanyNotFound      = fmt.Errorf("company: %w", apperrors.ErrNotFound)
	ErrMemberNotFound       = fmt.Errorf("member: %w", apperrors.ErrNotFound)
)
