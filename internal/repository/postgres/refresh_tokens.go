package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/database"
)

const consumeRefreshTokenSQL = `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
		RETURNING id, user_id, token_hash, expires_at, created_at`

// RefreshTokenRepository implements repository.RefreshTokenRepository using PostgreSQL.
type RefreshTokenRepository struct {
	db database.DBTX
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(db database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Save stores the hash of a freshly minted refresh token.
func (r *RefreshTokenRepository) Save(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Exec(ctx, query, uuid.NewString(), userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Consume deletes the token row and returns it. The delete is the only
// statement, so of two concurrent callers exactly one receives the row.
// A row that had already expired is still deleted but yields
// domain.ErrRefreshTokenExpired.
func (r *RefreshTokenRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (_ *domain.RefreshToken, err error) {
	ctx, end := database.TraceQuery(ctx, "ConsumeRefreshToken", consumeRefreshTokenSQL)
	defer func() { end(err) }()

	var t domain.RefreshToken
	err = r.db.QueryRow(ctx, consumeRefreshTokenSQL, tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	if t.Expired(now) {
		return nil, domain.ErrRefreshTokenExpired
	}
	return &t, nil
}

// Delete removes a token by hash.
func (r *RefreshTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every refresh token of a user.
func (r *RefreshTokenRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}

// DeleteExpired removes tokens whose expiry is at or before now.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}
