package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yashgoel75/cleit-cdc/internal/auth"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

// DBResolver maps identities to users through the identities and users
// tables. An unknown identity is linked to the user with the same email, or
// a new user is created with the name the provider reported.
type DBResolver struct {
	db *sqlx.DB
}

func NewDBResolver(db *sqlx.DB) *DBResolver {
	return &DBResolver{db: db}
}

func (r *DBResolver) Resolve(ctx context.Context, identity *auth.Identity) (string, error) {
	if identity == nil {
		return "", errors.New("resolver: identity is nil")
	}
	if identity.Provider == "" || identity.ProviderUserID == "" || identity.Email == "" {
		return "", errors.New("resolver: incomplete identity")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("resolver: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID uuid.UUID
	err = tx.GetContext(ctx, &userID, `
		SELECT user_id FROM identities
		WHERE provider = $1 AND provider_user_id = $2
	`, identity.Provider, identity.ProviderUserID)
	switch {
	case err == nil:
		return userID.String(), tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("resolver: identity lookup: %w", err)
	}

	err = tx.GetContext(ctx, &userID, `
		SELECT id FROM users WHERE LOWER(email) = $1
	`, strings.ToLower(identity.Email))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = tx.GetContext(ctx, &userID, `
			INSERT INTO users (email, email_verified, name)
			VALUES ($1, $2, $3)
			RETURNING id
		`, identity.Email, identity.EmailVerified, strings.TrimSpace(identity.Name))
		if err != nil {
			return "", fmt.Errorf("resolver: create user: %w", err)
		}
		logger.Info("user created", map[string]any{
			"user_id":  userID.String(),
			"provider": identity.Provider,
		})
	case err != nil:
		return "", fmt.Errorf("resolver: user lookup: %w", err)
	default:
		// Seed the name for users created by password registration.
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET name = $2, updated_at = NOW()
			WHERE id = $1 AND name = '' AND $2 <> ''
		`, userID, strings.TrimSpace(identity.Name)); err != nil {
			return "", fmt.Errorf("resolver: seed name: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO identities (user_id, provider, provider_user_id)
		VALUES ($1, $2, $3)
	`, userID, identity.Provider, identity.ProviderUserID); err != nil {
		return "", fmt.Errorf("resolver: link identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("resolver: commit: %w", err)
	}
	return userID.String(), nil
}
