package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/ids"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const issuer = "portal"

// Claims is the JWT payload shared by both token kinds.
type Claims struct {
	Email     string   `json:"email"`
	CompanyID string   `json:"company_id"`
	Roles     []string `json:"roles"`
	Type      string   `json:"typ"`
	jwt.RegisteredClaims
}

// TokenConfig holds the secrets and lifetimes for both token kinds.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenManager mints and verifies signed tokens. It never touches storage.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// Option configures a TokenManager.
type Option func(*TokenManager)

// WithClock replaces the wall clock used for iat, exp and validation.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a TokenManager from cfg.
func NewTokenManager(cfg TokenConfig, opts ...Option) *TokenManager {
	m := &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured lifetime for kind.
func (m *TokenManager) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return m.refreshTTL
	}
	return m.accessTTL
}

func (m *TokenManager) secret(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return m.accessSecret, nil
	case KindRefresh:
		return m.refreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
}

// Mint signs a token of the given kind for identity and returns it with its
// expiry. Refresh tokens carry a unique jti.
func (m *TokenManager) Mint(identity domain.AuthIdentity, kind Kind) (string, time.Time, error) {
	secret, err := m.secret(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	now := m.now().UTC()
	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(m.TTL(kind)))

	roles := make([]string, len(identity.Roles))
	for i, r := range identity.Roles {
		roles[i] = r.String()
	}

	claims := &Claims{
		Email:     identity.Email,
		CompanyID: identity.CompanyID,
		Roles:     roles,
		Type:      string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    issuer,
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
	}
	if kind == KindRefresh {
		claims.ID = ids.NewAt(now)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, exp.Time, nil
}

// Verify checks the signature, algorithm, kind and expiry of token and returns
// the identity it carries. A token is valid while now is strictly before exp.
func (m *TokenManager) Verify(token string, kind Kind) (domain.AuthIdentity, error) {
	secret, err := m.secret(kind)
	if err != nil {
		return domain.AuthIdentity{}, domain.ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.AuthIdentity{}, domain.ErrExpiredToken
		}
		return domain.AuthIdentity{}, domain.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Type != string(kind) || claims.Subject == "" {
		return domain.AuthIdentity{}, domain.ErrInvalidToken
	}

	roles := make([]domain.Role, 0, len(claims.Roles))
	for _, raw := range claims.Roles {
		r, err := domain.ParseRole(raw)
		if err != nil {
			return domain.AuthIdentity{}, domain.ErrInvalidToken
		}
		roles = append(roles, r)
	}

	return domain.AuthIdentity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		CompanyID: claims.CompanyID,
		Roles:     roles,
	}, nil
}

// MintPair mints an access and a refresh token for identity.
func (m *TokenManager) MintPair(identity domain.AuthIdentity) (domain.TokenPair, error) {
	access, accessExp, err := m.Mint(identity, KindAccess)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := m.Mint(identity, KindRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
