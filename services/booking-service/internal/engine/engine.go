// Package engine orchestrates booking creation, status transitions and slot
// reads. It owns the transaction boundaries; conflict detection itself is
// delegated to the database exclusion constraint, so the engine never holds
// an application-level lock.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/slotwise/slotwise/services/booking-service/internal/availability"
	"github.com/slotwise/slotwise/services/booking-service/internal/directory"
	"github.com/slotwise/slotwise/services/booking-service/internal/event"
	"github.com/slotwise/slotwise/services/booking-service/internal/jobs"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
	"github.com/slotwise/slotwise/services/booking-service/internal/outbox"
	"github.com/slotwise/slotwise/services/booking-service/internal/policy"
)

const dateFormat = "2006-01-02"

type BookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Reserve(ctx context.Context, tx pgx.Tx, b *model.Booking) error
	Get(ctx context.Context, id string) (model.Booking, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to model.Status, reason string) error
	InsertStatusHistory(ctx context.Context, tx pgx.Tx, change model.StatusChange) error
	ListBlocking(ctx context.Context, serviceID string, from, to time.Time) ([]model.Booking, error)
	ListByBusiness(ctx context.Context, businessID string, from, to time.Time) ([]model.Booking, error)
}

type RuleStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	ReplaceRules(ctx context.Context, tx pgx.Tx, businessID string, rules []model.AvailabilityRule) error
	ListRules(ctx context.Context, businessID string) ([]model.AvailabilityRule, error)
	UpsertException(ctx context.Context, tx pgx.Tx, ex model.AvailabilityException) error
	DeleteException(ctx context.Context, tx pgx.Tx, businessID, date string) error
	ListExceptions(ctx context.Context, businessID, from, to string) ([]model.AvailabilityException, error)
	GetService(ctx context.Context, serviceID string) (model.Service, error)
	UpsertService(ctx context.Context, svc model.Service) error
	ListServiceIDs(ctx context.Context, businessID string) ([]string, error)
	GetBusinessTimezone(ctx context.Context, businessID string) (string, error)
	UpsertBusiness(ctx context.Context, b model.Business) error
}

type OutboxStore interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type JobStore interface {
	Insert(ctx context.Context, tx pgx.Tx, job jobs.Job) error
	CancelForBooking(ctx context.Context, tx pgx.Tx, bookingID string) error
}

type SlotCache interface {
	Get(ctx context.Context, serviceID, date string) ([]model.TimeSlot, bool)
	Set(ctx context.Context, serviceID, date string, slots []model.TimeSlot) error
	Invalidate(ctx context.Context, serviceID string, dates ...string) error
}

type Engine struct {
	bookings  BookingStore
	rules     RuleStore
	outbox    OutboxStore
	jobs      JobStore
	cache     SlotCache
	policy    policy.Provider
	directory directory.Provider
	logger    *slog.Logger
	now       func() time.Time
}

type Config struct {
	Bookings  BookingStore
	Rules     RuleStore
	Outbox    OutboxStore
	Jobs      JobStore
	Cache     SlotCache
	Policy    policy.Provider
	Directory directory.Provider
	Logger    *slog.Logger
	Now       func() time.Time
}

func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		bookings:  cfg.Bookings,
		rules:     cfg.Rules,
		outbox:    cfg.Outbox,
		jobs:      cfg.Jobs,
		cache:     cfg.Cache,
		policy:    cfg.Policy,
		directory: cfg.Directory,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

type CreateBookingInput struct {
	ServiceID     string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartTime     time.Time
	Notes         string
}

// CreateBooking validates the request against the freshly generated slot
// grid (client-supplied bounds are never trusted), then reserves the slot,
// writes history, the outbox event and the reminder jobs in one
// transaction. The slot cache is invalidated before returning.
func (e *Engine) CreateBooking(ctx context.Context, in CreateBookingInput) (model.Booking, error) {
	if in.ServiceID == "" {
		return model.Booking{}, model.Invalid("service_id", "required")
	}
	if in.CustomerName == "" {
		return model.Booking{}, model.Invalid("customer_name", "required")
	}
	if in.CustomerEmail == "" {
		return model.Booking{}, model.Invalid("customer_email", "required")
	}
	if in.StartTime.IsZero() {
		return model.Booking{}, model.Invalid("start_time", "required")
	}

	svc, err := e.loadService(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Booking{}, model.Invalid("service_id", "unknown service")
		}
		return model.Booking{}, err
	}
	loc, err := e.businessLocation(ctx, svc.BusinessID)
	if err != nil {
		return model.Booking{}, err
	}

	date := in.StartTime.In(loc).Format(dateFormat)
	slots, err := e.generate(ctx, svc, loc, date)
	if err != nil {
		return model.Booking{}, err
	}

	slot, ok := findSlot(slots, in.StartTime)
	if !ok {
		return model.Booking{}, model.Invalid("start_time", "not on the slot grid for this service")
	}
	cutoff := e.now().Add(time.Duration(svc.MinAdvanceBookingHours) * time.Hour)
	if slot.StartTime.Before(cutoff) {
		return model.Booking{}, model.Invalid("start_time", "inside the minimum booking lead time")
	}

	status := model.StatusConfirmed
	if svc.RequiresApproval {
		status = model.StatusPending
	}
	booking := model.Booking{
		ID:            uuid.NewString(),
		BusinessID:    svc.BusinessID,
		ServiceID:     svc.ID,
		CustomerID:    in.CustomerID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
		Status:        status,
		Notes:         in.Notes,
	}

	tx, err := e.bookings.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := e.bookings.Reserve(ctx, tx, &booking); err != nil {
		return model.Booking{}, err
	}
	if err := e.bookings.InsertStatusHistory(ctx, tx, model.StatusChange{
		BookingID: booking.ID,
		ToStatus:  booking.Status,
		Reason:    "created",
		ChangedBy: "system",
	}); err != nil {
		return model.Booking{}, err
	}
	if err := e.emit(ctx, tx, "booking", booking.ID, event.TypeBookingCreated, event.BookingCreated{
		BookingID:     booking.ID,
		BusinessID:    booking.BusinessID,
		ServiceID:     booking.ServiceID,
		CustomerID:    booking.CustomerID,
		CustomerEmail: booking.CustomerEmail,
		StartTime:     booking.StartTime,
		EndTime:       booking.EndTime,
		Status:        booking.Status,
		Date:          date,
	}); err != nil {
		return model.Booking{}, err
	}
	if err := e.enqueueReminders(ctx, tx, booking); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}

	e.invalidate(ctx, booking.ServiceID, date)
	return booking, nil
}

// Transition applies one FSM step on behalf of a user. System-driven
// transitions (payment events) go through the FromPayment methods instead,
// which skip the policy checks.
func (e *Engine) Transition(ctx context.Context, bookingID string, to model.Status, reason, changedBy string) (model.Booking, error) {
	if !to.Valid() {
		return model.Booking{}, model.Invalid("status", "unknown status")
	}

	tx, err := e.bookings.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := e.bookings.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	// Requesting the current status is a no-op, so confirming an
	// auto-confirmed booking succeeds. Mirrors the payment path.
	if b.Status == to {
		return b, nil
	}
	if !model.CanTransition(b.Status, to) {
		return model.Booking{}, model.ErrInvalidTransition
	}

	now := e.now()
	switch to {
	case model.StatusCancelled:
		rules, err := e.policy.Rules(ctx, b.BusinessID)
		if err != nil {
			return model.Booking{}, err
		}
		if !rules.CanCancel(now, b.StartTime) {
			return model.Booking{}, model.Invalid("status", "cancellation window has passed")
		}
	case model.StatusCompleted, model.StatusNoShow:
		if now.Before(b.StartTime) {
			return model.Booking{}, model.Invalid("status", "booking has not started yet")
		}
	}

	updated, err := e.applyTransition(ctx, tx, b, to, reason, changedBy)
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}

	e.invalidateAfterTransition(ctx, b, to)
	return updated, nil
}

// ConfirmFromPayment confirms a pending booking when payment.succeeded
// arrives. Already-confirmed bookings are a no-op so redeliveries are safe.
func (e *Engine) ConfirmFromPayment(ctx context.Context, bookingID string) error {
	return e.transitionFromEvent(ctx, bookingID, model.StatusConfirmed, "payment succeeded")
}

func (e *Engine) CancelFromPayment(ctx context.Context, bookingID string) error {
	return e.transitionFromEvent(ctx, bookingID, model.StatusCancelled, "payment failed")
}

func (e *Engine) transitionFromEvent(ctx context.Context, bookingID string, to model.Status, reason string) error {
	tx, err := e.bookings.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := e.bookings.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			e.logger.Warn("payment event for unknown booking", "booking_id", bookingID)
			return nil
		}
		return err
	}
	if b.Status == to {
		return nil
	}
	if !model.CanTransition(b.Status, to) {
		e.logger.Warn("payment event ignored for terminal booking",
			"booking_id", bookingID, "status", string(b.Status), "requested", string(to))
		return nil
	}

	if _, err := e.applyTransition(ctx, tx, b, to, reason, "payment"); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	e.invalidateAfterTransition(ctx, b, to)
	return nil
}

func (e *Engine) applyTransition(ctx context.Context, tx pgx.Tx, b model.Booking, to model.Status, reason, changedBy string) (model.Booking, error) {
	if err := e.bookings.UpdateStatus(ctx, tx, b.ID, b.Status, to, reason); err != nil {
		return model.Booking{}, err
	}
	if err := e.bookings.InsertStatusHistory(ctx, tx, model.StatusChange{
		BookingID:  b.ID,
		FromStatus: b.Status,
		ToStatus:   to,
		Reason:     reason,
		ChangedBy:  changedBy,
	}); err != nil {
		return model.Booking{}, err
	}
	loc, err := e.businessLocation(ctx, b.BusinessID)
	if err != nil {
		loc = time.UTC
	}
	if err := e.emit(ctx, tx, "booking", b.ID, event.TypeBookingStatusChanged, event.BookingStatusChanged{
		BookingID:  b.ID,
		BusinessID: b.BusinessID,
		ServiceID:  b.ServiceID,
		FromStatus: b.Status,
		ToStatus:   to,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		Date:       b.StartTime.In(loc).Format(dateFormat),
		Reason:     reason,
	}); err != nil {
		return model.Booking{}, err
	}
	if b.Status.Blocking() && !to.Blocking() {
		if err := e.jobs.CancelForBooking(ctx, tx, b.ID); err != nil {
			return model.Booking{}, err
		}
	}

	updated := b
	updated.Status = to
	return updated, nil
}

// Slots returns the slot grid for one (service, date), served from Redis
// when fresh.
func (e *Engine) Slots(ctx context.Context, serviceID, date string) ([]model.TimeSlot, error) {
	if _, err := time.Parse(dateFormat, date); err != nil {
		return nil, model.Invalid("date", "must be YYYY-MM-DD")
	}
	if cached, ok := e.cache.Get(ctx, serviceID, date); ok {
		return cached, nil
	}

	svc, err := e.loadService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	loc, err := e.businessLocation(ctx, svc.BusinessID)
	if err != nil {
		return nil, err
	}
	slots, err := e.generate(ctx, svc, loc, date)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(ctx, serviceID, date, slots); err != nil {
		e.logger.Warn("slot cache set failed", "err", err, "service_id", serviceID, "date", date)
	}
	return slots, nil
}

type CalendarDay struct {
	Date      string
	Bookings  []model.Booking
	FreeSlots int
}

// Calendar returns the owner view: bookings per day plus, when a service is
// given, the count of still-free slots.
func (e *Engine) Calendar(ctx context.Context, businessID, serviceID, from, to string) ([]CalendarDay, error) {
	fromDay, err := time.Parse(dateFormat, from)
	if err != nil {
		return nil, model.Invalid("start", "must be YYYY-MM-DD")
	}
	toDay, err := time.Parse(dateFormat, to)
	if err != nil {
		return nil, model.Invalid("end", "must be YYYY-MM-DD")
	}
	if toDay.Before(fromDay) {
		return nil, model.Invalid("end", "must not be before start")
	}
	if toDay.Sub(fromDay) > 62*24*time.Hour {
		return nil, model.Invalid("end", "range must not exceed 62 days")
	}

	loc, err := e.businessLocation(ctx, businessID)
	if err != nil {
		return nil, err
	}
	rangeStart := time.Date(fromDay.Year(), fromDay.Month(), fromDay.Day(), 0, 0, 0, 0, loc)
	rangeEnd := time.Date(toDay.Year(), toDay.Month(), toDay.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	bookings, err := e.bookings.ListByBusiness(ctx, businessID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string][]model.Booking)
	for _, b := range bookings {
		d := b.StartTime.In(loc).Format(dateFormat)
		byDate[d] = append(byDate[d], b)
	}

	var days []CalendarDay
	for d := fromDay; !d.After(toDay); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateFormat)
		day := CalendarDay{Date: date, Bookings: byDate[date]}
		if serviceID != "" {
			slots, err := e.Slots(ctx, serviceID, date)
			if err == nil {
				for _, s := range slots {
					if s.Available {
						day.FreeSlots++
					}
				}
			} else if !model.IsValidation(err) {
				return nil, err
			}
		}
		days = append(days, day)
	}
	return days, nil
}

// ReplaceRules swaps the weekly rule set wholesale. Overlapping windows on
// the same weekday are rejected before the store is touched.
func (e *Engine) ReplaceRules(ctx context.Context, businessID string, rules []model.AvailabilityRule) ([]model.AvailabilityRule, error) {
	if businessID == "" {
		return nil, model.Invalid("business_id", "required")
	}
	for i := range rules {
		rules[i].ID = uuid.NewString()
		rules[i].BusinessID = businessID
		if err := rules[i].Validate(); err != nil {
			return nil, err
		}
	}
	if err := checkRuleOverlap(rules); err != nil {
		return nil, err
	}

	tx, err := e.rules.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := e.rules.ReplaceRules(ctx, tx, businessID, rules); err != nil {
		return nil, err
	}
	if err := e.emit(ctx, tx, "business", businessID, event.TypeAvailabilityUpdated, event.AvailabilityUpdated{
		BusinessID: businessID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	e.invalidateBusiness(ctx, businessID)
	return rules, nil
}

func (e *Engine) UpsertException(ctx context.Context, ex model.AvailabilityException) error {
	if ex.BusinessID == "" {
		return model.Invalid("business_id", "required")
	}
	if err := ex.Validate(); err != nil {
		return err
	}
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}

	tx, err := e.rules.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := e.rules.UpsertException(ctx, tx, ex); err != nil {
		return err
	}
	if err := e.emit(ctx, tx, "business", ex.BusinessID, event.TypeAvailabilityUpdated, event.AvailabilityUpdated{
		BusinessID: ex.BusinessID,
		Date:       ex.Date,
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	e.invalidateBusinessDate(ctx, ex.BusinessID, ex.Date)
	return nil
}

// DeleteException removes a dated override so the weekday rules apply to
// that date again.
func (e *Engine) DeleteException(ctx context.Context, businessID, date string) error {
	if businessID == "" {
		return model.Invalid("business_id", "required")
	}
	if _, err := time.Parse(dateFormat, date); err != nil {
		return model.Invalid("date", "must be YYYY-MM-DD")
	}

	tx, err := e.rules.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := e.rules.DeleteException(ctx, tx, businessID, date); err != nil {
		return err
	}
	if err := e.emit(ctx, tx, "business", businessID, event.TypeAvailabilityUpdated, event.AvailabilityUpdated{
		BusinessID: businessID,
		Date:       date,
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	e.invalidateBusinessDate(ctx, businessID, date)
	return nil
}

// ApplyServiceEvent maintains the local service projection from
// business.service.* events.
func (e *Engine) ApplyServiceEvent(ctx context.Context, ev *event.ServiceUpserted) error {
	svc := model.Service{
		ID:                     ev.ServiceID,
		BusinessID:             ev.BusinessID,
		Name:                   ev.Name,
		DurationMinutes:        ev.DurationMinutes,
		BufferMinutes:          ev.BufferMinutes,
		PriceCents:             ev.PriceCents,
		Currency:               ev.Currency,
		MinAdvanceBookingHours: ev.MinAdvanceBookingHours,
		MaxAdvanceBookingDays:  ev.MaxAdvanceBookingDays,
		RequiresApproval:       ev.RequiresApproval,
		Active:                 ev.Active,
	}
	if err := svc.Validate(); err != nil {
		return err
	}
	if err := e.rules.UpsertService(ctx, svc); err != nil {
		return err
	}
	e.invalidate(ctx, svc.ID, upcomingDates(e.now(), invalidateHorizonDays)...)
	return nil
}

// ApplyBusinessEvent records timezone changes from the profile service.
func (e *Engine) ApplyBusinessEvent(ctx context.Context, ev *event.BusinessAvailabilityEdited) error {
	if ev.BusinessID == "" {
		return model.Invalid("business_id", "required")
	}
	if err := e.rules.UpsertBusiness(ctx, model.Business{ID: ev.BusinessID, Timezone: ev.Timezone}); err != nil {
		return err
	}
	e.invalidateBusiness(ctx, ev.BusinessID)
	return nil
}

func (e *Engine) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	return e.bookings.Get(ctx, id)
}

const invalidateHorizonDays = 30

func (e *Engine) generate(ctx context.Context, svc model.Service, loc *time.Location, date string) ([]model.TimeSlot, error) {
	rules, err := e.rules.ListRules(ctx, svc.BusinessID)
	if err != nil {
		return nil, err
	}
	exceptions, err := e.rules.ListExceptions(ctx, svc.BusinessID, date, date)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation(dateFormat, date, loc)
	if err != nil {
		return nil, model.Invalid("date", "must be YYYY-MM-DD")
	}
	blocking, err := e.bookings.ListBlocking(ctx, svc.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return availability.Generate(svc, loc, rules, exceptions, blocking, date, e.now())
}

// loadService reads the projection first and falls back to the directory
// collaborator, caching the result back into the projection.
func (e *Engine) loadService(ctx context.Context, serviceID string) (model.Service, error) {
	svc, err := e.rules.GetService(ctx, serviceID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return model.Service{}, err
		}
		svc, err = e.directory.Service(ctx, serviceID)
		if err != nil {
			return model.Service{}, err
		}
		if err := e.rules.UpsertService(ctx, svc); err != nil {
			e.logger.Warn("service projection upsert failed", "err", err, "service_id", serviceID)
		}
	}
	if !svc.Active {
		return model.Service{}, model.Invalid("service_id", "service is inactive")
	}
	return svc, nil
}

func (e *Engine) businessLocation(ctx context.Context, businessID string) (*time.Location, error) {
	tz, err := e.rules.GetBusinessTimezone(ctx, businessID)
	if errors.Is(err, model.ErrNotFound) {
		tz, err = e.directory.BusinessTimezone(ctx, businessID)
	}
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		e.logger.Warn("invalid business timezone, falling back to UTC", "business_id", businessID, "tz", tz)
		return time.UTC, nil
	}
	return loc, nil
}

func (e *Engine) enqueueReminders(ctx context.Context, tx pgx.Tx, b model.Booking) error {
	rules, err := e.policy.Rules(ctx, b.BusinessID)
	if err != nil {
		return err
	}
	for _, offset := range rules.ReminderOffsets {
		remindAt := b.StartTime.Add(-offset)
		if !remindAt.After(e.now()) {
			continue
		}
		job := jobs.Job{
			IdempotencyKey: fmt.Sprintf("reminder:%s:%s", b.ID, offset),
			BookingID:      b.ID,
			BusinessID:     b.BusinessID,
			Channel:        "email",
			Recipient:      b.CustomerEmail,
			RemindAt:       remindAt,
			TemplateData: map[string]any{
				"customer_name": b.CustomerName,
				"start_time":    b.StartTime.UTC().Format(time.RFC3339),
			},
		}
		if err := e.jobs.Insert(ctx, tx, job); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return e.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	})
}

func (e *Engine) invalidate(ctx context.Context, serviceID string, dates ...string) {
	if err := e.cache.Invalidate(ctx, serviceID, dates...); err != nil {
		e.logger.Warn("slot cache invalidation failed", "err", err, "service_id", serviceID)
	}
}

func (e *Engine) invalidateAfterTransition(ctx context.Context, b model.Booking, to model.Status) {
	if b.Status.Blocking() == to.Blocking() {
		return
	}
	loc, err := e.businessLocation(ctx, b.BusinessID)
	if err != nil {
		loc = time.UTC
	}
	e.invalidate(ctx, b.ServiceID, b.StartTime.In(loc).Format(dateFormat))
}

func (e *Engine) invalidateBusiness(ctx context.Context, businessID string) {
	serviceIDs, err := e.rules.ListServiceIDs(ctx, businessID)
	if err != nil {
		e.logger.Warn("listing services for invalidation failed", "err", err, "business_id", businessID)
		return
	}
	dates := upcomingDates(e.now(), invalidateHorizonDays)
	for _, id := range serviceIDs {
		e.invalidate(ctx, id, dates...)
	}
}

func (e *Engine) invalidateBusinessDate(ctx context.Context, businessID, date string) {
	serviceIDs, err := e.rules.ListServiceIDs(ctx, businessID)
	if err != nil {
		e.logger.Warn("listing services for invalidation failed", "err", err, "business_id", businessID)
		return
	}
	for _, id := range serviceIDs {
		e.invalidate(ctx, id, date)
	}
}

func findSlot(slots []model.TimeSlot, start time.Time) (model.TimeSlot, bool) {
	for _, s := range slots {
		if s.StartTime.Equal(start) {
			return s, true
		}
	}
	return model.TimeSlot{}, false
}

func checkRuleOverlap(rules []model.AvailabilityRule) error {
	byDay := make(map[time.Weekday][]model.AvailabilityRule)
	for _, r := range rules {
		byDay[r.Weekday] = append(byDay[r.Weekday], r)
	}
	for _, day := range byDay {
		for i := range day {
			for j := i + 1; j < len(day); j++ {
				if day[i].StartMinute < day[j].EndMinute && day[j].StartMinute < day[i].EndMinute {
					return model.Invalid("rules", "windows overlap on the same weekday")
				}
			}
		}
	}
	return nil
}

func upcomingDates(now time.Time, days int) []string {
	dates := make([]string, 0, days)
	day := now.UTC()
	for i := 0; i < days; i++ {
		dates = append(dates, day.AddDate(0, 0, i).Format(dateFormat))
	}
	return dates
}
