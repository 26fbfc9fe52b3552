package domain

import "context"

// AuthIdentity is the caller derived from a verified token.
type AuthIdentity struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	CompanyID string `json:"company_id"`
	Roles     []Role `json:"roles"`
}

// HasAnyRole reports whether the identity holds at least one of allowed.
func (i AuthIdentity) HasAnyRole(allowed ...Role) bool {
	for _, have := range i.Roles {
		for _, want := range allowed {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HighestRole returns the most privileged role held, or "" when none.
func (i AuthIdentity) HighestRole() Role {
	var best Role
	for _, r := range i.Roles {
		if r.Valid() && (best == "" || r.AtLeast(best)) {
			best = r
		}
	}
	return best
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id AuthIdentity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (AuthIdentity, bool) {
	id, ok := ctx.Value(identityKey{}).(AuthIdentity)
	return id, ok
}
