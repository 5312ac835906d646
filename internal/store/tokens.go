package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/emberline/commerce-pulse/internal/domain"
)

// ErrNoToken is returned when no stored credential exists for a platform/shop pair.
var ErrNoToken = errors.New("no stored token")

// UpsertToken stores or replaces a long-lived OAuth credential.
func (s *Store) UpsertToken(ctx context.Context, t domain.OAuthToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (platform, shop, access_token, scope)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (platform, shop) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			scope = EXCLUDED.scope,
			updated_at = NOW()
	`, t.Platform, t.Shop, t.AccessToken, t.Scope)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// TokenFor fetches the stored credential for a platform/shop pair.
func (s *Store) TokenFor(ctx context.Context, platform, shop string) (*domain.OAuthToken, error) {
	t := &domain.OAuthToken{}
	err := s.db.QueryRowContext(ctx, `
		SELECT platform, shop, access_token, COALESCE(scope, ''), created_at, updated_at
		FROM oauth_tokens
		WHERE platform = $1 AND shop = $2
	`, platform, shop).Scan(&t.Platform, &t.Shop, &t.AccessToken, &t.Scope, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}
