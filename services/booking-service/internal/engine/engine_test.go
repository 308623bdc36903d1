package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotwise/slotwise/services/booking-service/internal/directory"
	"github.com/slotwise/slotwise/services/booking-service/internal/event"
	"github.com/slotwise/slotwise/services/booking-service/internal/jobs"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
	"github.com/slotwise/slotwise/services/booking-service/internal/outbox"
	"github.com/slotwise/slotwise/services/booking-service/internal/policy"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

// mondayAt returns a time on Monday 2026-08-24.
func mondayAt(hour, min int) time.Time {
	return time.Date(2026, 8, 24, hour, min, 0, 0, time.UTC)
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

type fakeBookingStore struct {
	bookings map[string]model.Booking
	history  []model.StatusChange
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[string]model.Booking)}
}

func (s *fakeBookingStore) Begin(context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

// Reserve mimics the exclusion constraint: overlap with a blocking booking
// for the same service fails with ErrSlotConflict.
func (s *fakeBookingStore) Reserve(_ context.Context, _ pgx.Tx, b *model.Booking) error {
	for _, other := range s.bookings {
		if other.ServiceID != b.ServiceID || !other.Blocking() {
			continue
		}
		if b.StartTime.Before(other.EndTime) && other.StartTime.Before(b.EndTime) {
			return model.ErrSlotConflict
		}
	}
	b.CreatedAt = testNow
	b.UpdatedAt = testNow
	s.bookings[b.ID] = *b
	return nil
}

func (s *fakeBookingStore) Get(_ context.Context, id string) (model.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	return b, nil
}

func (s *fakeBookingStore) GetForUpdate(ctx context.Context, _ pgx.Tx, id string) (model.Booking, error) {
	return s.Get(ctx, id)
}

func (s *fakeBookingStore) UpdateStatus(_ context.Context, _ pgx.Tx, id string, from, to model.Status, _ string) error {
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return model.ErrInvalidTransition
	}
	b.Status = to
	s.bookings[id] = b
	return nil
}

func (s *fakeBookingStore) InsertStatusHistory(_ context.Context, _ pgx.Tx, change model.StatusChange) error {
	s.history = append(s.history, change)
	return nil
}

func (s *fakeBookingStore) ListBlocking(_ context.Context, serviceID string, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range s.bookings {
		if b.ServiceID == serviceID && b.Blocking() && b.StartTime.Before(to) && from.Before(b.EndTime) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBookingStore) ListByBusiness(_ context.Context, businessID string, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range s.bookings {
		if b.BusinessID == businessID && b.StartTime.Before(to) && from.Before(b.EndTime) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeRuleStore struct {
	rules          []model.AvailabilityRule
	exceptions     []model.AvailabilityException
	services       map[string]model.Service
	timezones      map[string]string
	listRulesCalls int
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{
		services:  make(map[string]model.Service),
		timezones: make(map[string]string),
	}
}

func (s *fakeRuleStore) Begin(context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

func (s *fakeRuleStore) ReplaceRules(_ context.Context, _ pgx.Tx, businessID string, rules []model.AvailabilityRule) error {
	var kept []model.AvailabilityRule
	for _, r := range s.rules {
		if r.BusinessID != businessID {
			kept = append(kept, r)
		}
	}
	s.rules = append(kept, rules...)
	return nil
}

func (s *fakeRuleStore) ListRules(_ context.Context, businessID string) ([]model.AvailabilityRule, error) {
	s.listRulesCalls++
	var out []model.AvailabilityRule
	for _, r := range s.rules {
		if r.BusinessID == businessID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeRuleStore) UpsertException(_ context.Context, _ pgx.Tx, ex model.AvailabilityException) error {
	for i, cur := range s.exceptions {
		if cur.BusinessID == ex.BusinessID && cur.Date == ex.Date {
			s.exceptions[i] = ex
			return nil
		}
	}
	s.exceptions = append(s.exceptions, ex)
	return nil
}

func (s *fakeRuleStore) DeleteException(_ context.Context, _ pgx.Tx, businessID, date string) error {
	for i, cur := range s.exceptions {
		if cur.BusinessID == businessID && cur.Date == date {
			s.exceptions = append(s.exceptions[:i], s.exceptions[i+1:]...)
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *fakeRuleStore) ListExceptions(_ context.Context, businessID, from, to string) ([]model.AvailabilityException, error) {
	var out []model.AvailabilityException
	for _, ex := range s.exceptions {
		if ex.BusinessID == businessID && ex.Date >= from && ex.Date <= to {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (s *fakeRuleStore) GetService(_ context.Context, serviceID string) (model.Service, error) {
	svc, ok := s.services[serviceID]
	if !ok {
		return model.Service{}, model.ErrNotFound
	}
	return svc, nil
}

func (s *fakeRuleStore) UpsertService(_ context.Context, svc model.Service) error {
	s.services[svc.ID] = svc
	return nil
}

func (s *fakeRuleStore) ListServiceIDs(_ context.Context, businessID string) ([]string, error) {
	var ids []string
	for id, svc := range s.services {
		if svc.BusinessID == businessID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeRuleStore) GetBusinessTimezone(_ context.Context, businessID string) (string, error) {
	tz, ok := s.timezones[businessID]
	if !ok {
		return "", model.ErrNotFound
	}
	return tz, nil
}

func (s *fakeRuleStore) UpsertBusiness(_ context.Context, b model.Business) error {
	if b.Timezone != "" {
		s.timezones[b.ID] = b.Timezone
	}
	return nil
}

type fakeOutbox struct {
	events []outbox.Event
}

func (o *fakeOutbox) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	o.events = append(o.events, evt)
	return nil
}

func (o *fakeOutbox) typesOf() []string {
	var types []string
	for _, e := range o.events {
		types = append(types, e.EventType)
	}
	return types
}

type fakeJobStore struct {
	inserted  []jobs.Job
	cancelled []string
}

func (j *fakeJobStore) Insert(_ context.Context, _ pgx.Tx, job jobs.Job) error {
	j.inserted = append(j.inserted, job)
	return nil
}

func (j *fakeJobStore) CancelForBooking(_ context.Context, _ pgx.Tx, bookingID string) error {
	j.cancelled = append(j.cancelled, bookingID)
	return nil
}

type fakeCache struct {
	entries     map[string][]model.TimeSlot
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]model.TimeSlot)}
}

func (c *fakeCache) Get(_ context.Context, serviceID, date string) ([]model.TimeSlot, bool) {
	slots, ok := c.entries[serviceID+"|"+date]
	return slots, ok
}

func (c *fakeCache) Set(_ context.Context, serviceID, date string, slots []model.TimeSlot) error {
	c.entries[serviceID+"|"+date] = slots
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, serviceID string, dates ...string) error {
	for _, d := range dates {
		key := serviceID + "|" + d
		delete(c.entries, key)
		c.invalidated = append(c.invalidated, key)
	}
	return nil
}

type testEnv struct {
	bookings *fakeBookingStore
	rules    *fakeRuleStore
	outbox   *fakeOutbox
	jobs     *fakeJobStore
	cache    *fakeCache
	eng      *Engine
}

func newTestEnv(pol policy.Rules) *testEnv {
	env := &testEnv{
		bookings: newFakeBookingStore(),
		rules:    newFakeRuleStore(),
		outbox:   &fakeOutbox{},
		jobs:     &fakeJobStore{},
		cache:    newFakeCache(),
	}
	env.rules.services["svc-1"] = model.Service{
		ID: "svc-1", BusinessID: "biz-1", Name: "Consult",
		DurationMinutes: 60, MaxAdvanceBookingDays: 30, Active: true,
	}
	env.rules.timezones["biz-1"] = "UTC"
	env.rules.rules = []model.AvailabilityRule{
		{ID: "r-1", BusinessID: "biz-1", Weekday: time.Monday, StartMinute: 540, EndMinute: 1020},
	}
	env.eng = New(Config{
		Bookings:  env.bookings,
		Rules:     env.rules,
		Outbox:    env.outbox,
		Jobs:      env.jobs,
		Cache:     env.cache,
		Policy:    policy.NewStaticProvider(pol),
		Directory: directory.NewStaticProvider("UTC"),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return testNow },
	})
	return env
}

func createInput(start time.Time) CreateBookingInput {
	return CreateBookingInput{
		ServiceID:     "svc-1",
		CustomerName:  "Dana",
		CustomerEmail: "dana@example.com",
		StartTime:     start,
	}
}

func TestCreateBookingConfirmed(t *testing.T) {
	env := newTestEnv(policy.Rules{ReminderOffsets: []time.Duration{24 * time.Hour}})

	b, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(10, 0)))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", b.Status)
	}
	if !b.EndTime.Equal(mondayAt(11, 0)) {
		t.Errorf("end time = %v, want 11:00", b.EndTime)
	}
	if got := env.outbox.typesOf(); len(got) != 1 || got[0] != event.TypeBookingCreated {
		t.Errorf("outbox events = %v, want [booking.created]", got)
	}
	if len(env.bookings.history) != 1 || env.bookings.history[0].ToStatus != model.StatusConfirmed {
		t.Errorf("history = %+v, want one entry to confirmed", env.bookings.history)
	}
	if len(env.jobs.inserted) != 1 {
		t.Fatalf("reminder jobs = %d, want 1", len(env.jobs.inserted))
	}
	if got := env.jobs.inserted[0].RemindAt; !got.Equal(mondayAt(10, 0).Add(-24 * time.Hour)) {
		t.Errorf("remind at %v, want 24h before start", got)
	}
	if len(env.cache.invalidated) == 0 || env.cache.invalidated[0] != "svc-1|2026-08-24" {
		t.Errorf("cache invalidations = %v, want svc-1|2026-08-24 first", env.cache.invalidated)
	}
}

func TestCreateBookingPendingWhenApprovalRequired(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	svc := env.rules.services["svc-1"]
	svc.RequiresApproval = true
	env.rules.services["svc-1"] = svc

	b, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(9, 0)))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if b.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", b.Status)
	}
}

func TestCreateBookingOffGrid(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	_, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(9, 30)))
	if !model.IsValidation(err) {
		t.Fatalf("got %v, want validation error for off-grid start", err)
	}
}

func TestCreateBookingUnknownService(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	in := createInput(mondayAt(9, 0))
	in.ServiceID = "svc-missing"
	if _, err := env.eng.CreateBooking(context.Background(), in); !model.IsValidation(err) {
		t.Fatalf("got %v, want validation error for unknown service", err)
	}
}

func TestCreateBookingConflict(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	if _, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(10, 0))); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	outboxBefore := len(env.outbox.events)

	_, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(10, 0)))
	if !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("got %v, want ErrSlotConflict", err)
	}
	if len(env.outbox.events) != outboxBefore {
		t.Error("conflicting create must not emit events")
	}
}

func TestCancellationFreesTheSlot(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	b, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(10, 0)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.eng.Transition(context.Background(), b.ID, model.StatusCancelled, "customer", "cust-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(10, 0))); err != nil {
		t.Fatalf("rebooking a cancelled slot: %v", err)
	}
}

func TestConfirmAutoConfirmedIsNoOp(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	b, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(10, 0)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", b.Status)
	}

	got, err := env.eng.Transition(context.Background(), b.ID, model.StatusConfirmed, "", "customer")
	if err != nil {
		t.Fatalf("confirming an auto-confirmed booking: %v", err)
	}
	if got.Status != model.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}
	if types := env.outbox.typesOf(); len(types) != 1 {
		t.Errorf("outbox events = %v, want only the create event", types)
	}
	if len(env.bookings.history) != 1 {
		t.Errorf("history entries = %d, want 1", len(env.bookings.history))
	}
}

func TestCreateBookingInactiveService(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	svc := env.rules.services["svc-1"]
	svc.Active = false
	env.rules.services["svc-1"] = svc

	if _, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(10, 0))); !model.IsValidation(err) {
		t.Fatalf("got %v, want validation error for inactive service", err)
	}
	if _, err := env.eng.Slots(context.Background(), "svc-1", "2026-08-24"); !model.IsValidation(err) {
		t.Fatalf("Slots got %v, want validation error for inactive service", err)
	}
}

func TestTransitionRejectsIllegalStep(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	env.bookings.bookings["bk-1"] = model.Booking{
		ID: "bk-1", BusinessID: "biz-1", ServiceID: "svc-1",
		StartTime: mondayAt(10, 0), EndTime: mondayAt(11, 0), Status: model.StatusPending,
	}
	_, err := env.eng.Transition(context.Background(), "bk-1", model.StatusCompleted, "", "owner")
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
	if env.bookings.bookings["bk-1"].Status != model.StatusPending {
		t.Error("state must not change on a rejected transition")
	}
}

func TestTransitionUnknownBooking(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	if _, err := env.eng.Transition(context.Background(), "nope", model.StatusCancelled, "", ""); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestTransitionCancellationLeadTime(t *testing.T) {
	env := newTestEnv(policy.Rules{CancellationLeadTime: 24 * time.Hour})
	env.bookings.bookings["bk-1"] = model.Booking{
		ID: "bk-1", BusinessID: "biz-1", ServiceID: "svc-1",
		// Starts 22h after testNow, inside the 24h lead time.
		StartTime: time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 8, 21, 11, 0, 0, 0, time.UTC),
		Status:    model.StatusConfirmed,
	}
	_, err := env.eng.Transition(context.Background(), "bk-1", model.StatusCancelled, "", "cust-1")
	if !model.IsValidation(err) {
		t.Fatalf("got %v, want validation error for late cancellation", err)
	}
}

func TestTransitionCompleteBeforeStart(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	env.bookings.bookings["bk-1"] = model.Booking{
		ID: "bk-1", BusinessID: "biz-1", ServiceID: "svc-1",
		StartTime: mondayAt(10, 0), EndTime: mondayAt(11, 0), Status: model.StatusConfirmed,
	}
	if _, err := env.eng.Transition(context.Background(), "bk-1", model.StatusCompleted, "", "owner"); !model.IsValidation(err) {
		t.Fatalf("got %v, want validation error for completing a future booking", err)
	}
}

func TestTransitionCancelsReminders(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	env.bookings.bookings["bk-1"] = model.Booking{
		ID: "bk-1", BusinessID: "biz-1", ServiceID: "svc-1",
		StartTime: mondayAt(10, 0), EndTime: mondayAt(11, 0), Status: model.StatusConfirmed,
	}
	if _, err := env.eng.Transition(context.Background(), "bk-1", model.StatusCancelled, "", "cust-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(env.jobs.cancelled) != 1 || env.jobs.cancelled[0] != "bk-1" {
		t.Errorf("cancelled jobs = %v, want [bk-1]", env.jobs.cancelled)
	}
}

func TestConfirmFromPaymentIdempotent(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	env.bookings.bookings["bk-1"] = model.Booking{
		ID: "bk-1", BusinessID: "biz-1", ServiceID: "svc-1",
		StartTime: mondayAt(10, 0), EndTime: mondayAt(11, 0), Status: model.StatusPending,
	}
	if err := env.eng.ConfirmFromPayment(context.Background(), "bk-1"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if err := env.eng.ConfirmFromPayment(context.Background(), "bk-1"); err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if got := env.outbox.typesOf(); len(got) != 1 {
		t.Errorf("outbox events = %v, want exactly one status change", got)
	}
	if err := env.eng.ConfirmFromPayment(context.Background(), "bk-missing"); err != nil {
		t.Fatalf("unknown booking must be a logged no-op, got %v", err)
	}
}

func TestSlotsServedFromCache(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	ctx := context.Background()

	first, err := env.eng.Slots(ctx, "svc-1", "2026-08-24")
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(first) != 8 {
		t.Fatalf("slots = %d, want 8", len(first))
	}
	calls := env.rules.listRulesCalls

	second, err := env.eng.Slots(ctx, "svc-1", "2026-08-24")
	if err != nil {
		t.Fatalf("Slots (cached): %v", err)
	}
	if env.rules.listRulesCalls != calls {
		t.Error("second read must be served from cache")
	}
	if len(second) != 8 {
		t.Fatalf("cached slots = %d, want 8", len(second))
	}
}

func TestReplaceRulesRejectsOverlap(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	_, err := env.eng.ReplaceRules(context.Background(), "biz-1", []model.AvailabilityRule{
		{Weekday: time.Monday, StartMinute: 540, EndMinute: 720},
		{Weekday: time.Monday, StartMinute: 700, EndMinute: 900},
	})
	if !model.IsValidation(err) {
		t.Fatalf("got %v, want validation error for overlapping windows", err)
	}
}

func TestReplaceRulesEmitsAndInvalidates(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	rules, err := env.eng.ReplaceRules(context.Background(), "biz-1", []model.AvailabilityRule{
		{Weekday: time.Tuesday, StartMinute: 600, EndMinute: 900},
	})
	if err != nil {
		t.Fatalf("ReplaceRules: %v", err)
	}
	if len(rules) != 1 || rules[0].ID == "" {
		t.Fatalf("returned rules must carry assigned ids: %+v", rules)
	}
	if got := env.outbox.typesOf(); len(got) != 1 || got[0] != event.TypeAvailabilityUpdated {
		t.Errorf("outbox events = %v, want [availability.updated]", got)
	}
	if len(env.cache.invalidated) == 0 {
		t.Error("rule replace must invalidate cached slots")
	}
}

func TestCalendarCountsFreeSlots(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	if _, err := env.eng.CreateBooking(context.Background(), createInput(mondayAt(10, 0))); err != nil {
		t.Fatalf("create: %v", err)
	}

	days, err := env.eng.Calendar(context.Background(), "biz-1", "svc-1", "2026-08-24", "2026-08-25")
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("days = %d, want 2", len(days))
	}
	if len(days[0].Bookings) != 1 {
		t.Errorf("monday bookings = %d, want 1", len(days[0].Bookings))
	}
	if days[0].FreeSlots != 7 {
		t.Errorf("monday free slots = %d, want 7", days[0].FreeSlots)
	}
	// Tuesday has no rules, hence no slots and no bookings.
	if days[1].FreeSlots != 0 || len(days[1].Bookings) != 0 {
		t.Errorf("tuesday = %+v, want empty", days[1])
	}
}

func TestUpsertExceptionEmits(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	err := env.eng.UpsertException(context.Background(), model.AvailabilityException{
		BusinessID: "biz-1", Date: "2026-08-24", Closed: true,
	})
	if err != nil {
		t.Fatalf("UpsertException: %v", err)
	}
	if got := env.outbox.typesOf(); len(got) != 1 || got[0] != event.TypeAvailabilityUpdated {
		t.Errorf("outbox events = %v, want [availability.updated]", got)
	}

	slots, err := env.eng.Slots(context.Background(), "svc-1", "2026-08-24")
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("slots on a closed day = %d, want 0", len(slots))
	}
}

func TestDeleteExceptionRestoresRules(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	if err := env.eng.UpsertException(context.Background(), model.AvailabilityException{
		BusinessID: "biz-1", Date: "2026-08-24", Closed: true,
	}); err != nil {
		t.Fatalf("UpsertException: %v", err)
	}

	if err := env.eng.DeleteException(context.Background(), "biz-1", "2026-08-24"); err != nil {
		t.Fatalf("DeleteException: %v", err)
	}
	if got := env.outbox.typesOf(); len(got) != 2 || got[1] != event.TypeAvailabilityUpdated {
		t.Errorf("outbox events = %v, want two availability.updated", got)
	}

	slots, err := env.eng.Slots(context.Background(), "svc-1", "2026-08-24")
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(slots) != 8 {
		t.Errorf("slots after delete = %d, want 8", len(slots))
	}
}

func TestDeleteExceptionMissing(t *testing.T) {
	env := newTestEnv(policy.Rules{})
	err := env.eng.DeleteException(context.Background(), "biz-1", "2026-08-24")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := env.outbox.typesOf(); len(got) != 0 {
		t.Errorf("outbox events = %v, want none", got)
	}
}
