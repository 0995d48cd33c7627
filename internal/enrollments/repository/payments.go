package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Payment is the local ledger row for one gateway-captured payment.
type Payment struct {
	ID               uuid.UUID `db:"id"`
	GatewayPaymentID string    `db:"gateway_payment_id"`
	GatewayOrderID   string    `db:"gateway_order_id"`
	AmountMinorUnits int64     `db:"amount_minor_units"`
	Currency         string    `db:"currency"`
	LearnerID        uuid.UUID `db:"learner_id"`
	RecordedAt       time.Time `db:"recorded_at"`
}

// Booking is the originating purchase record keyed by gateway order id.
type Booking struct {
	ID             uuid.UUID  `db:"id"`
	GatewayOrderID string     `db:"gateway_order_id"`
	LearnerID      uuid.UUID  `db:"learner_id"`
	CoachID        *uuid.UUID `db:"coach_id"`
	ProgramWeeks   int        `db:"program_weeks"`
	TotalSessions  int        `db:"total_sessions"`
	CreatedAt      time.Time  `db:"created_at"`
}

// RecordPayment inserts a payment ledger row, idempotent on the gateway
// payment id. Returns true when a row was actually written.
func (r *Repository) RecordPayment(ctx context.Context, p *Payment) (bool, error) {
	query := `
		INSERT INTO payments (id, gateway_payment_id, gateway_order_id, amount_minor_units, currency, learner_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (gateway_payment_id) DO NOTHING`

	result, err := r.pool.Exec(ctx, query,
		p.ID, p.GatewayPaymentID, p.GatewayOrderID, p.AmountMinorUnits, p.Currency, p.LearnerID, p.RecordedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record payment: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListRecordedPaymentIDs returns the gateway payment ids recorded inside the
// window, as a set for the reconciliation diff.
func (r *Repository) ListRecordedPaymentIDs(ctx context.Context, from, to time.Time) (map[string]struct{}, error) {
	query := `SELECT gateway_payment_id FROM payments WHERE recorded_at >= $1 AND recorded_at <= $2`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list recorded payments: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan payment id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return ids, nil
}

// GetBookingByOrderID locates the purchase record behind a gateway order.
// Returns nil when no booking exists (the no_booking reconciliation outcome).
func (r *Repository) GetBookingByOrderID(ctx context.Context, orderID string) (*Booking, error) {
	query := `SELECT id, gateway_order_id, learner_id, coach_id, program_weeks, total_sessions, created_at
		FROM bookings WHERE gateway_order_id = $1`

	var b Booking
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&b.ID, &b.GatewayOrderID, &b.LearnerID, &b.CoachID, &b.ProgramWeeks, &b.TotalSessions, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}
