package domain

import (
	"errors"
	"net/http"

	apperrors "github.com/SultanSulimanSerj/portal/pkg/errors"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{ErrDuplicateEmail, http.StatusConflict, "DUPLICATE_EMAIL", "email is already registered"},
	{ErrDuplicateSubdomain, http.StatusConflict, "DUPLICATE_SUBDOMAIN", "subdomain is already taken"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"},
	{ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "invalid refresh token"},
	{ErrExpiredToken, http.StatusUnauthorized, "TOKEN_EXPIRED", "token has expired"},
	{ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token"},
	{ErrMissingTenantContext, http.StatusForbidden, "MISSING_TENANT_CONTEXT", "no company selected for this request"},
	{ErrTenantContextFailed, http.StatusInternalServerError, "TENANT_CONTEXT_FAILED", "an internal error occurred"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN", "insufficient permissions"},
	{ErrTooManyAttempts, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "too many login attempts, try again later"},
	{ErrInvalidResetToken, http.StatusBadRequest, "INVALID_RESET_TOKEN", "invalid or expired reset token"},
	{ErrInvalidVerification, http.StatusBadRequest, "INVALID_VERIFICATION_TOKEN", "invalid verification token"},
	{ErrMemberNotFound, http.StatusNotFound, "NOT_FOUND", "member not found"},
	{ErrCompanyNotFound, http.StatusNotFound, "NOT_FOUND", "company not found"},
	{ErrUserNotFound, http.StatusNotFound, "NOT_FOUND", "user not found"},
}

// HTTPError converts a domain error into an AppError with its stable code.
// Errors that already are AppErrors, and errors with no mapping, are returned
// unchanged.
func HTTPError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return apperrors.New(m.status, m.code, m.message, err)
		}
	}
	return err
}
