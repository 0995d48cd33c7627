package notification

import (
	"context"
	"errors"
	"fmt"

	"tutorcoach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Contact is the delivery endpoint for one platform user (learner, coach
// or operator). Contact data is synced in from the identity system; this
// service only reads it.
type Contact struct {
	UserID   uuid.UUID `db:"user_id"`
	FullName string    `db:"full_name"`
	Email    string    `db:"email"`
	Phone    *string   `db:"phone"`
}

// ContactDirectory resolves a user id to delivery endpoints.
type ContactDirectory interface {
	Lookup(ctx context.Context, userID uuid.UUID) (*Contact, error)
}

// ContactRepository reads contacts from Postgres.
type ContactRepository struct {
	db *pgxpool.Pool
}

// NewContactRepository creates a new contact repository.
func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db}
}

// Lookup retrieves the contact row for a user.
func (r *ContactRepository) Lookup(ctx context.Context, userID uuid.UUID) (*Contact, error) {
	query := `
		SELECT user_id, full_name, email, phone
		FROM contacts
		WHERE user_id = $1`

	var c Contact
	err := r.db.QueryRow(ctx, query, userID).Scan(&c.UserID, &c.FullName, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("contact not found")
		}
		return nil, fmt.Errorf("lookup contact: %w", err)
	}
	return &c, nil
}

var _ ContactDirectory = (*ContactRepository)(nil)
