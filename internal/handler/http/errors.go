package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/httputil"
	"github.com/SultanSulimanSerj/portal/pkg/validator"
)

func writeError(w http.ResponseWriter, r *http.Request, err error, log *slog.Logger) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, err)
		return
	}
	httputil.WriteError(w, r, domain.HTTPError(err), log)
}
