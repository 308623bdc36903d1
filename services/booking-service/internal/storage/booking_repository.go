// Package storage is the pgx data access layer. Postgres error codes are
// translated into the domain taxonomy at this boundary: the exclusion
// constraint (23P01) becomes ErrSlotConflict, no rows becomes ErrNotFound.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Reserve inserts the booking. Overlap with a blocking booking for the same
// service trips the bookings_no_overlap exclusion constraint; that is the
// only conflict check, so concurrent requests for the last slot race on the
// constraint and exactly one wins.
func (r *BookingRepository) Reserve(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(id, business_id, service_id, customer_id, customer_name, customer_email, customer_phone, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, b.ID, b.BusinessID, b.ServiceID, b.CustomerID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.StartTime, b.EndTime, b.Status, b.Notes).Scan(&b.CreatedAt, &b.UpdatedAt)
	if isExclusionViolation(err) {
		return model.ErrSlotConflict
	}
	return err
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, selectBooking+` WHERE id = $1`, id))
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	return scanBooking(tx.QueryRow(ctx, selectBooking+` WHERE id = $1 FOR UPDATE`, id))
}

// UpdateStatus applies the transition only when the row is still in the
// expected state. Zero rows means a concurrent writer got there first.
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to model.Status, reason string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $3,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN now() ELSE cancelled_at END,
			cancel_reason = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancel_reason END,
			updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrInvalidTransition
	}
	return nil
}

func (r *BookingRepository) InsertStatusHistory(ctx context.Context, tx pgx.Tx, change model.StatusChange) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO booking_status_history (booking_id, from_status, to_status, reason, changed_by)
		VALUES ($1, $2, $3, $4, $5)
	`, change.BookingID, change.FromStatus, change.ToStatus, change.Reason, change.ChangedBy)
	return err
}

// ListBlocking returns pending/confirmed bookings overlapping [from, to)
// for one service. Input to the slot generator.
func (r *BookingRepository) ListBlocking(ctx context.Context, serviceID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, selectBooking+`
		WHERE service_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, serviceID, from, to)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepository) ListByBusiness(ctx context.Context, businessID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, selectBooking+`
		WHERE business_id = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

const selectBooking = `
	SELECT id, business_id, service_id, customer_id, customer_name, customer_email, customer_phone,
		start_time, end_time, status, COALESCE(notes, ''), cancelled_at, COALESCE(cancel_reason, ''),
		created_at, updated_at
	FROM bookings`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.BusinessID,
		&b.ServiceID,
		&b.CustomerID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.Notes,
		&cancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, model.ErrNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
