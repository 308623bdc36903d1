package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

// RuleRepository stores availability rules and exceptions, plus the local
// projections of the business-profile collaborator (services, timezones).
type RuleRepository struct {
	pool *db.Pool
}

func NewRuleRepository(pool *db.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

func (r *RuleRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ReplaceRules swaps the whole weekly rule set for a business. Delete and
// insert run in the caller's transaction so readers never see a partial set.
func (r *RuleRepository) ReplaceRules(ctx context.Context, tx pgx.Tx, businessID string, rules []model.AvailabilityRule) error {
	if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE business_id = $1`, businessID); err != nil {
		return err
	}
	for _, rule := range rules {
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_rules (id, business_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, rule.ID, businessID, int(rule.Weekday), rule.StartMinute, rule.EndMinute)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *RuleRepository) ListRules(ctx context.Context, businessID string) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, weekday, start_minute, end_minute, created_at
		FROM availability_rules
		WHERE business_id = $1
		ORDER BY weekday, start_minute
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		var rule model.AvailabilityRule
		var weekday int
		if err := rows.Scan(&rule.ID, &rule.BusinessID, &weekday, &rule.StartMinute, &rule.EndMinute, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(weekday)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

func (r *RuleRepository) UpsertException(ctx context.Context, tx pgx.Tx, ex model.AvailabilityException) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO availability_exceptions (id, business_id, date, closed, start_minute, end_minute, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (business_id, date) DO UPDATE
		SET closed = EXCLUDED.closed,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			reason = EXCLUDED.reason
	`, ex.ID, ex.BusinessID, ex.Date, ex.Closed, ex.StartMinute, ex.EndMinute, ex.Reason)
	return err
}

func (r *RuleRepository) DeleteException(ctx context.Context, tx pgx.Tx, businessID, date string) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM availability_exceptions WHERE business_id = $1 AND date = $2
	`, businessID, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *RuleRepository) ListExceptions(ctx context.Context, businessID, from, to string) ([]model.AvailabilityException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, date::text, closed, start_minute, end_minute, COALESCE(reason, ''), created_at
		FROM availability_exceptions
		WHERE business_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exceptions []model.AvailabilityException
	for rows.Next() {
		var ex model.AvailabilityException
		if err := rows.Scan(&ex.ID, &ex.BusinessID, &ex.Date, &ex.Closed, &ex.StartMinute, &ex.EndMinute, &ex.Reason, &ex.CreatedAt); err != nil {
			return nil, err
		}
		exceptions = append(exceptions, ex)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return exceptions, nil
}

func (r *RuleRepository) GetService(ctx context.Context, serviceID string) (model.Service, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_id, name, duration_minutes, buffer_minutes, price_cents, COALESCE(currency, ''),
			min_advance_booking_hours, max_advance_booking_days, requires_approval, active, created_at, updated_at
		FROM services
		WHERE id = $1
	`, serviceID).Scan(
		&svc.ID,
		&svc.BusinessID,
		&svc.Name,
		&svc.DurationMinutes,
		&svc.BufferMinutes,
		&svc.PriceCents,
		&svc.Currency,
		&svc.MinAdvanceBookingHours,
		&svc.MaxAdvanceBookingDays,
		&svc.RequiresApproval,
		&svc.Active,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, model.ErrNotFound
	}
	if err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

// UpsertService maintains the local projection from business.service.*
// events.
func (r *RuleRepository) UpsertService(ctx context.Context, svc model.Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services
			(id, business_id, name, duration_minutes, buffer_minutes, price_cents, currency,
			 min_advance_booking_hours, max_advance_booking_days, requires_approval, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET business_id = EXCLUDED.business_id,
			name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			buffer_minutes = EXCLUDED.buffer_minutes,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			min_advance_booking_hours = EXCLUDED.min_advance_booking_hours,
			max_advance_booking_days = EXCLUDED.max_advance_booking_days,
			requires_approval = EXCLUDED.requires_approval,
			active = EXCLUDED.active,
			updated_at = now()
	`, svc.ID, svc.BusinessID, svc.Name, svc.DurationMinutes, svc.BufferMinutes, svc.PriceCents, svc.Currency,
		svc.MinAdvanceBookingHours, svc.MaxAdvanceBookingDays, svc.RequiresApproval, svc.Active)
	return err
}

func (r *RuleRepository) ListServiceIDs(ctx context.Context, businessID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM services WHERE business_id = $1
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

func (r *RuleRepository) GetBusinessTimezone(ctx context.Context, businessID string) (string, error) {
	var tz string
	err := r.pool.QueryRow(ctx, `
		SELECT timezone FROM businesses WHERE id = $1
	`, businessID).Scan(&tz)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return tz, nil
}

func (r *RuleRepository) UpsertBusiness(ctx context.Context, b model.Business) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO businesses (id, name, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE businesses.name END,
			timezone = CASE WHEN EXCLUDED.timezone <> '' THEN EXCLUDED.timezone ELSE businesses.timezone END,
			updated_at = now()
	`, b.ID, b.Name, b.Timezone)
	return err
}
