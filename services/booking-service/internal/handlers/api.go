// Package handlers exposes the REST surface. Handlers stay thin: decode,
// call the engine, map the error taxonomy onto status codes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotwise/slotwise/libs/httpx"
	"github.com/slotwise/slotwise/services/booking-service/internal/engine"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

type BookingEngine interface {
	CreateBooking(ctx context.Context, in engine.CreateBookingInput) (model.Booking, error)
	Transition(ctx context.Context, bookingID string, to model.Status, reason, changedBy string) (model.Booking, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	Slots(ctx context.Context, serviceID, date string) ([]model.TimeSlot, error)
	Calendar(ctx context.Context, businessID, serviceID, from, to string) ([]engine.CalendarDay, error)
	ReplaceRules(ctx context.Context, businessID string, rules []model.AvailabilityRule) ([]model.AvailabilityRule, error)
	UpsertException(ctx context.Context, ex model.AvailabilityException) error
	DeleteException(ctx context.Context, businessID, date string) error
}

type API struct {
	engine BookingEngine
	logger *slog.Logger
}

func New(eng BookingEngine, logger *slog.Logger) *API {
	return &API{engine: eng, logger: logger}
}

// Register mounts the routes. Owner endpoints go through the bearer-auth
// middleware; public endpoints do not.
func (a *API) Register(mux *http.ServeMux, authn httpx.Middleware) {
	mux.HandleFunc("GET /api/v1/services/{serviceId}/slots", a.Slots)
	mux.HandleFunc("POST /api/v1/bookings", a.CreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}", a.GetBooking)
	mux.HandleFunc("PUT /api/v1/bookings/{id}/status", a.UpdateStatus)
	mux.HandleFunc("GET /api/v1/businesses/{id}/calendar", a.Calendar)
	mux.Handle("POST /api/v1/availability/rules", authn(http.HandlerFunc(a.ReplaceRules)))
	mux.Handle("PUT /api/v1/availability/exceptions", authn(http.HandlerFunc(a.UpsertException)))
	mux.Handle("DELETE /api/v1/availability/exceptions/{date}", authn(http.HandlerFunc(a.DeleteException)))
}

type bookingResponse struct {
	ID            string `json:"id"`
	BusinessID    string `json:"business_id"`
	ServiceID     string `json:"service_id"`
	CustomerID    string `json:"customer_id,omitempty"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		ID:            b.ID,
		BusinessID:    b.BusinessID,
		ServiceID:     b.ServiceID,
		CustomerID:    b.CustomerID,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		CustomerPhone: b.CustomerPhone,
		StartTime:     b.StartTime.UTC().Format(time.RFC3339),
		EndTime:       b.EndTime.UTC().Format(time.RFC3339),
		Status:        string(b.Status),
		Notes:         b.Notes,
		CancelReason:  b.CancelReason,
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (a *API) Slots(w http.ResponseWriter, r *http.Request) {
	serviceID := r.PathValue("serviceId")
	date := r.URL.Query().Get("date")
	if date == "" {
		a.writeError(w, model.Invalid("date", "required"))
		return
	}

	slots, err := a.engine.Slots(r.Context(), serviceID, date)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

type createBookingRequest struct {
	ServiceID     string `json:"service_id"`
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	StartTime     string `json:"start_time"`
	Notes         string `json:"notes"`
}

func (a *API) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, model.Invalid("body", "invalid json"))
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		a.writeError(w, model.Invalid("start_time", "must be RFC 3339"))
		return
	}

	booking, err := a.engine.CreateBooking(r.Context(), engine.CreateBookingInput{
		ServiceID:     strings.TrimSpace(req.ServiceID),
		CustomerID:    strings.TrimSpace(req.CustomerID),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		StartTime:     start,
		Notes:         req.Notes,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

func (a *API) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := a.engine.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (a *API) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, model.Invalid("body", "invalid json"))
		return
	}

	changedBy := "customer"
	if p, ok := httpx.PrincipalFromContext(r.Context()); ok {
		changedBy = p.Subject
	}
	booking, err := a.engine.Transition(r.Context(), r.PathValue("id"), model.Status(req.Status), req.Reason, changedBy)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type calendarDayResponse struct {
	Date      string            `json:"date"`
	FreeSlots int               `json:"free_slots"`
	Bookings  []bookingResponse `json:"bookings"`
}

func (a *API) Calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := a.engine.Calendar(r.Context(), r.PathValue("id"), q.Get("service_id"), q.Get("start"), q.Get("end"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]calendarDayResponse, 0, len(days))
	for _, day := range days {
		item := calendarDayResponse{Date: day.Date, FreeSlots: day.FreeSlots, Bookings: []bookingResponse{}}
		for _, b := range day.Bookings {
			item.Bookings = append(item.Bookings, toBookingResponse(b))
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": out})
}

type ruleItem struct {
	ID          string `json:"id,omitempty"`
	Weekday     int    `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

type replaceRulesRequest struct {
	BusinessID string     `json:"business_id"`
	Rules      []ruleItem `json:"rules"`
}

// ReplaceRules swaps the owner's whole weekly rule set. Partial updates are
// deliberately not offered; clients send the full set.
func (a *API) ReplaceRules(w http.ResponseWriter, r *http.Request) {
	var req replaceRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, model.Invalid("body", "invalid json"))
		return
	}
	businessID := a.ownerBusinessID(r, req.BusinessID)

	rules := make([]model.AvailabilityRule, 0, len(req.Rules))
	for _, item := range req.Rules {
		rules = append(rules, model.AvailabilityRule{
			Weekday:     time.Weekday(item.Weekday),
			StartMinute: item.StartMinute,
			EndMinute:   item.EndMinute,
		})
	}

	stored, err := a.engine.ReplaceRules(r.Context(), businessID, rules)
	if err != nil {
		a.writeError(w, err)
		return
	}
	out := make([]ruleItem, 0, len(stored))
	for _, rule := range stored {
		out = append(out, ruleItem{
			ID:          rule.ID,
			Weekday:     int(rule.Weekday),
			StartMinute: rule.StartMinute,
			EndMinute:   rule.EndMinute,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

type exceptionRequest struct {
	BusinessID  string `json:"business_id"`
	Date        string `json:"date"`
	Closed      bool   `json:"closed"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Reason      string `json:"reason"`
}

func (a *API) UpsertException(w http.ResponseWriter, r *http.Request) {
	var req exceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, model.Invalid("body", "invalid json"))
		return
	}

	err := a.engine.UpsertException(r.Context(), model.AvailabilityException{
		BusinessID:  a.ownerBusinessID(r, req.BusinessID),
		Date:        req.Date,
		Closed:      req.Closed,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		Reason:      req.Reason,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": req.Date})
}

func (a *API) DeleteException(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	businessID := a.ownerBusinessID(r, r.URL.Query().Get("business_id"))
	if err := a.engine.DeleteException(r.Context(), businessID, date); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownerBusinessID prefers the authenticated principal's business over the
// request body.
func (a *API) ownerBusinessID(r *http.Request, fromBody string) string {
	if p, ok := httpx.PrincipalFromContext(r.Context()); ok && p.BusinessID != "" {
		return p.BusinessID
	}
	return strings.TrimSpace(fromBody)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "VALIDATION_ERROR", Message: ve.Error()})
	case errors.Is(err, model.ErrSlotConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "SLOT_CONFLICT", Message: "the requested time range is no longer available"})
	case errors.Is(err, model.ErrInvalidTransition):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_TRANSITION", Message: "the requested status change is not allowed"})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NOT_FOUND", Message: "resource not found"})
	case errors.Is(err, model.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "UNAVAILABLE", Message: "a dependency is temporarily unavailable"})
	default:
		a.logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
