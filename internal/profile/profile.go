package profile

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("profile: not found")

// Profile is a visitor's record as owned by the backend.
type Profile struct {
	Email             string    `db:"email" bson:"email" json:"email"`
	Name              string    `db:"name" bson:"name" json:"name"`
	EnrollmentNumber  string    `db:"enrollment_number" bson:"enrollment_number" json:"enrollmentNumber"`
	Department        string    `db:"department" bson:"department" json:"department"`
	Batch             string    `db:"batch" bson:"batch" json:"batch"`
	Phone             string    `db:"phone" bson:"phone" json:"phone"`
	IsProfileComplete bool      `db:"is_profile_complete" bson:"is_profile_complete" json:"isProfileComplete"`
	UpdatedAt         time.Time `db:"updated_at" bson:"updated_at" json:"updatedAt"`
}

// Complete reports whether every required field is filled in.
func (p Profile) Complete() bool {
	for _, v := range []string{p.Name, p.EnrollmentNumber, p.Department, p.Batch, p.Phone} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Store persists profiles keyed by email. Emails compare case-insensitively.
type Store interface {
	Get(ctx context.Context, email string) (*Profile, error)
	Upsert(ctx context.Context, p Profile) error
}

// NormalizeEmail is the key form every store uses.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
