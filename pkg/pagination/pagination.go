package pagination

import (
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/SultanSulimanSerj/portal/pkg/errors"
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// FromRequest reads ?page= and ?per_page=. Missing values fall back to page 1
// and defaultPerPage; per_page is capped at maxPerPage. Values that are not
// positive integers are rejected.
func FromRequest(r *http.Request, defaultPerPage, maxPerPage int) (Params, error) {
	p := Params{Page: 1, PerPage: defaultPerPage}

	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Params{}, apperrors.InvalidInput(fmt.Sprintf("page must be a positive integer, got %q", v))
		}
		p.Page = n
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Params{}, apperrors.InvalidInput(fmt.Sprintf("per_page must be a positive integer, got %q", v))
		}
		p.PerPage = min(n, maxPerPage)
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p, nil
}

// Result wraps one page of items.
type Result[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult creates a paginated result.
func NewResult[T any](items []T, totalCount int, params Params) Result[T] {
	totalPages := 0
	if params.PerPage > 0 {
		totalPages = (totalCount + params.PerPage - 1) / params.PerPage
	}
	if items == nil {
		items = []T{}
	}

	return Result[T]{
		Items:      items,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}
