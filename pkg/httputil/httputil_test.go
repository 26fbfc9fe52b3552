package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SultanSulimanSerj/portal/pkg/errors"
	"github.com/SultanSulimanSerj/portal/pkg/logger"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"id": "1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"id": "1"}, resp.Data)
}

func TestWriteError_AppErrorKeepsCode(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "req-9"))

	WriteError(rec, req, apperrors.New(http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "invalid refresh token", nil), nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", resp.Error.Code)
	assert.Equal(t, "req-9", resp.Error.RequestID)
}

func TestWriteError_Sentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("member: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("email: %w", apperrors.ErrAlreadyExists), http.StatusConflict, "ALREADY_EXISTS"},
		{apperrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{apperrors.ErrTooManyRequests, http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeResponse(t, rec).Error.Code)
		})
	}
}

func TestWriteError_InternalIsOpaqueAndLogged(t *testing.T) {
	var logs bytes.Buffer
	fallback := slog.New(slog.NewJSONHandler(&logs, nil))

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/me", nil), fmt.Errorf("dial tcp: connection refused"), fallback)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "connection refused")
	assert.Contains(t, logs.String(), "connection refused")
}

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var dst loginBody
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","password":"p"}`))
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
		assert.Equal(t, "a@x.com", dst.Email)
	})

	t.Run("unknown field", func(t *testing.T) {
		var dst loginBody
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","password":"p","role":"OWNER"}`))
		err := DecodeJSON(httptest.NewRecorder(), req, &dst)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("oversized", func(t *testing.T) {
		var dst loginBody
		body := `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(body)))
		assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &dst), apperrors.ErrInvalidInput)
	})

	t.Run("validation", func(t *testing.T) {
		var dst loginBody
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","password":"p"}`))
		err := DecodeJSON(httptest.NewRecorder(), req, &dst)

		rec := httptest.NewRecorder()
		WriteValidationError(rec, err)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Contains(t, resp.Error.Fields, "email")
	})
}

func TestParseUUID(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := ParseUUID(rec, "not-a-uuid")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id, ok := ParseUUID(httptest.NewRecorder(), "6f1c1b9e-3a51-4c8e-9a5f-0d9f2f6c1a10")
	assert.True(t, ok)
	assert.Equal(t, "6f1c1b9e-3a51-4c8e-9a5f-0d9f2f6c1a10", id.String())
}
