package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("credentials already exist")
	ErrInvalidEmail       = errors.New("invalid email")
)

// Service registers and authenticates password users.
type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// Register finds or creates the user for email and stores a password for
// it. It returns the user id.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	hash, version, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("credentials: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID uuid.UUID
	err = tx.GetContext(ctx, &userID, `SELECT id FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.GetContext(ctx, &userID, `
			INSERT INTO users (email, email_verified)
			VALUES ($1, false)
			RETURNING id
		`, email)
	}
	if err != nil {
		return "", fmt.Errorf("credentials: user: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, hash, version)
	if err != nil {
		return "", fmt.Errorf("credentials: insert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrAlreadyRegistered
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("credentials: commit: %w", err)
	}
	return userID.String(), nil
}

// Authenticate returns the user id for a matching email and password. It
// does not reveal whether the email is known.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	var row struct {
		UserID       uuid.UUID `db:"id"`
		PasswordHash string    `db:"password_hash"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT u.id, c.password_hash
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`, strings.TrimSpace(email))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("credentials: lookup: %w", err)
		}
		return "", ErrInvalidCredentials
	}
	if err := VerifyPassword(row.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	return row.UserID.String(), nil
}
