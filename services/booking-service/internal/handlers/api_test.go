package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/engine"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

type fakeEngine struct {
	createErr     error
	transitionErr error
	slots         []model.TimeSlot
	slotsErr      error
	booking       model.Booking
	bookingErr    error
	days          []engine.CalendarDay
	rulesErr      error
	gotRules      []model.AvailabilityRule
	gotBusinessID string
}

func (f *fakeEngine) CreateBooking(_ context.Context, in engine.CreateBookingInput) (model.Booking, error) {
	if f.createErr != nil {
		return model.Booking{}, f.createErr
	}
	return model.Booking{
		ID:            "bk-1",
		BusinessID:    "biz-1",
		ServiceID:     in.ServiceID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		StartTime:     in.StartTime,
		EndTime:       in.StartTime.Add(time.Hour),
		Status:        model.StatusConfirmed,
	}, nil
}

func (f *fakeEngine) Transition(_ context.Context, id string, to model.Status, reason, _ string) (model.Booking, error) {
	if f.transitionErr != nil {
		return model.Booking{}, f.transitionErr
	}
	b := f.booking
	b.ID = id
	b.Status = to
	return b, nil
}

func (f *fakeEngine) GetBooking(context.Context, string) (model.Booking, error) {
	return f.booking, f.bookingErr
}

func (f *fakeEngine) Slots(context.Context, string, string) ([]model.TimeSlot, error) {
	return f.slots, f.slotsErr
}

func (f *fakeEngine) Calendar(context.Context, string, string, string, string) ([]engine.CalendarDay, error) {
	return f.days, nil
}

func (f *fakeEngine) ReplaceRules(_ context.Context, businessID string, rules []model.AvailabilityRule) ([]model.AvailabilityRule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	f.gotBusinessID = businessID
	f.gotRules = rules
	return rules, nil
}

func (f *fakeEngine) UpsertException(context.Context, model.AvailabilityException) error {
	return f.rulesErr
}

func (f *fakeEngine) DeleteException(context.Context, string, string) error {
	return f.rulesErr
}

func newTestServer(f *fakeEngine) *httptest.Server {
	api := New(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	// Pass-through auth; token verification is covered in libs/httpx.
	api.Register(mux, func(next http.Handler) http.Handler { return next })
	return httptest.NewServer(mux)
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body
}

func TestSlotsEndpoint(t *testing.T) {
	start := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	f := &fakeEngine{slots: []model.TimeSlot{{StartTime: start, EndTime: start.Add(time.Hour), Available: true}}}
	srv := newTestServer(f)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/services/svc-1/slots?date=2026-08-24")
	if err != nil {
		t.Fatalf("GET slots: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Slots []model.TimeSlot `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Slots) != 1 || !body.Slots[0].Available {
		t.Errorf("unexpected slots payload: %+v", body.Slots)
	}
}

func TestSlotsMissingDate(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/services/svc-1/slots")
	if err != nil {
		t.Fatalf("GET slots: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Error != "VALIDATION_ERROR" {
		t.Errorf("error code = %s, want VALIDATION_ERROR", body.Error)
	}
}

func TestCreateBookingCreated(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	payload := `{"service_id":"svc-1","customer_name":"Dana","customer_email":"dana@example.com","start_time":"2026-08-24T10:00:00Z"}`
	resp, err := http.Post(srv.URL+"/api/v1/bookings", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST booking: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var body bookingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "bk-1" || body.Status != "confirmed" {
		t.Errorf("unexpected booking: %+v", body)
	}
}

func TestCreateBookingConflict(t *testing.T) {
	srv := newTestServer(&fakeEngine{createErr: model.ErrSlotConflict})
	defer srv.Close()

	payload := `{"service_id":"svc-1","customer_name":"Dana","customer_email":"d@example.com","start_time":"2026-08-24T10:00:00Z"}`
	resp, err := http.Post(srv.URL+"/api/v1/bookings", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST booking: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Error != "SLOT_CONFLICT" {
		t.Errorf("error code = %s, want SLOT_CONFLICT", body.Error)
	}
}

func TestCreateBookingBadStartTime(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	payload := `{"service_id":"svc-1","customer_name":"Dana","customer_email":"d@example.com","start_time":"tomorrow"}`
	resp, err := http.Post(srv.URL+"/api/v1/bookings", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST booking: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	srv := newTestServer(&fakeEngine{transitionErr: model.ErrInvalidTransition})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/bookings/bk-1/status", strings.NewReader(`{"status":"completed"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Error != "INVALID_TRANSITION" {
		t.Errorf("error code = %s, want INVALID_TRANSITION", body.Error)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	srv := newTestServer(&fakeEngine{bookingErr: model.ErrNotFound})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/bookings/missing")
	if err != nil {
		t.Fatalf("GET booking: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Error != "NOT_FOUND" {
		t.Errorf("error code = %s, want NOT_FOUND", body.Error)
	}
}

func TestUnavailableMapsTo503(t *testing.T) {
	srv := newTestServer(&fakeEngine{slotsErr: model.ErrUnavailable})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/services/svc-1/slots?date=2026-08-24")
	if err != nil {
		t.Fatalf("GET slots: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if body := decodeError(t, resp); body.Error != "UNAVAILABLE" {
		t.Errorf("error code = %s, want UNAVAILABLE", body.Error)
	}
}

func TestReplaceRules(t *testing.T) {
	f := &fakeEngine{}
	srv := newTestServer(f)
	defer srv.Close()

	payload := `{"business_id":"biz-1","rules":[{"weekday":1,"start_minute":540,"end_minute":1020}]}`
	resp, err := http.Post(srv.URL+"/api/v1/availability/rules", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST rules: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if f.gotBusinessID != "biz-1" || len(f.gotRules) != 1 {
		t.Errorf("engine got businessID=%s rules=%d", f.gotBusinessID, len(f.gotRules))
	}
	if f.gotRules[0].Weekday != time.Monday || f.gotRules[0].StartMinute != 540 {
		t.Errorf("unexpected rule: %+v", f.gotRules[0])
	}
}

func TestCalendarEndpoint(t *testing.T) {
	f := &fakeEngine{days: []engine.CalendarDay{{Date: "2026-08-24", FreeSlots: 7}}}
	srv := newTestServer(f)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/businesses/biz-1/calendar?start=2026-08-24&end=2026-08-24")
	if err != nil {
		t.Fatalf("GET calendar: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Days []calendarDayResponse `json:"days"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Days) != 1 || body.Days[0].FreeSlots != 7 {
		t.Errorf("unexpected calendar payload: %+v", body.Days)
	}
}
