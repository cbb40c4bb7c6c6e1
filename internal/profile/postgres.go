package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore reads profiles from the users table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, email string) (*Profile, error) {
	var p Profile
	err := s.db.GetContext(ctx, &p, `
		SELECT email, name, enrollment_number, department, batch, phone,
		       is_profile_complete, updated_at
		FROM users
		WHERE LOWER(email) = $1
	`, NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get: %w", err)
	}
	return &p, nil
}

// Upsert updates the profile columns of an existing user. Users are only
// created by sign-in, so an unknown email is ErrNotFound.
func (s *PostgresStore) Upsert(ctx context.Context, p Profile) error {
	p.Email = NormalizeEmail(p.Email)
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE users SET
			name = :name,
			enrollment_number = :enrollment_number,
			department = :department,
			batch = :batch,
			phone = :phone,
			is_profile_complete = :is_profile_complete,
			updated_at = :updated_at
		WHERE LOWER(email) = :email
	`, p)
	if err != nil {
		return fmt.Errorf("profile: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("profile: update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
