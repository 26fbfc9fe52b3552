package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/internal/service"
	"github.com/SultanSulimanSerj/portal/pkg/httputil"
	"github.com/SultanSulimanSerj/portal/pkg/middleware"
)

// AuthService is the part of service.SessionService the auth endpoints use.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*domain.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*domain.AuthResult, error)
	Refresh(ctx context.Context, token string) (*domain.AuthResult, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, identity domain.AuthIdentity) error
	ChangePassword(ctx context.Context, identity domain.AuthIdentity, in service.ChangePasswordInput) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in service.ResetPasswordInput) error
	VerifyEmail(ctx context.Context, token string) error
	VerifyAccessToken(token string) (domain.AuthIdentity, error)
}

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service AuthService
	cookie  CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc AuthService, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookie: cookie, logger: logger}
}

// RefreshRequest is the optional JSON body of refresh and logout when the
// client cannot send cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordRequest is the JSON request body for forgot password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyEmailRequest is the JSON request body for email verification.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookie.setRefresh(w, result.Tokens.RefreshToken)
	httputil.WriteData(w, http.StatusCreated, result)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	req.ClientIP = middleware.ClientIP(r)

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookie.setRefresh(w, result.Tokens.RefreshToken)
	httputil.WriteData(w, http.StatusOK, result)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshToken(w, r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRefreshToken) {
			h.cookie.clearRefresh(w)
		}
		writeError(w, r, err, h.logger)
		return
	}

	h.cookie.setRefresh(w, result.Tokens.RefreshToken)
	httputil.WriteData(w, http.StatusOK, result)
}

// Logout handles POST /api/v1/auth/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshToken(w, r)
	if err == nil {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.logger.WarnContext(r.Context(), "logout failed to delete refresh token",
				slog.String("error", err.Error()),
			)
		}
	}

	h.cookie.clearRefresh(w)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /api/v1/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := domain.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrInvalidToken, h.logger)
		return
	}

	if err := h.service.LogoutAll(r.Context(), identity); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookie.clearRefresh(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := domain.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrInvalidToken, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, identity)
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := domain.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrInvalidToken, h.logger)
		return
	}

	var req service.ChangePasswordInput
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.service.ChangePassword(r.Context(), identity, req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookie.clearRefresh(w)
	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail handles POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]string{"message": "email verified"})
}

// ForgotPassword handles POST /api/v1/auth/forgot-password. The response does
// not reveal whether the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusAccepted, map[string]string{
		"message": "if the email exists, a password reset link has been sent",
	})
}

// ResetPassword handles POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordInput
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookie.clearRefresh(w)
	httputil.WriteData(w, http.StatusOK, map[string]string{"message": "password has been reset"})
}

// refreshToken reads the refresh token from the cookie, falling back to a
// JSON body. An empty body yields an empty token.
func (h *AuthHandler) refreshToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	var req RefreshRequest
	r.Body = http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", domain.ErrInvalidRefreshToken
	}
	return req.RefreshToken, nil
}
