// Package event defines the domain events this service produces and the
// external events it consumes. The Kafka topic name equals the event type.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

// Produced event types.
const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeAvailabilityUpdated  = "availability.updated"
)

// Consumed event types.
const (
	TypePaymentSucceeded    = "payment.succeeded"
	TypePaymentFailed       = "payment.failed"
	TypeServiceCreated      = "business.service.created"
	TypeServiceUpdated      = "business.service.updated"
	TypeBusinessAvailEdited = "business.availability.updated"
)

// BookingCreated is published after a booking commits. The payload is
// denormalized so consumers never have to call back.
type BookingCreated struct {
	BookingID     string       `json:"booking_id"`
	BusinessID    string       `json:"business_id"`
	ServiceID     string       `json:"service_id"`
	CustomerID    string       `json:"customer_id"`
	CustomerEmail string       `json:"customer_email"`
	StartTime     time.Time    `json:"start_time"`
	EndTime       time.Time    `json:"end_time"`
	Status        model.Status `json:"status"`
	// Date is the business-local calendar date of the slot.
	Date string `json:"date"`
}

type BookingStatusChanged struct {
	BookingID  string       `json:"booking_id"`
	BusinessID string       `json:"business_id"`
	ServiceID  string       `json:"service_id"`
	FromStatus model.Status `json:"from_status"`
	ToStatus   model.Status `json:"to_status"`
	StartTime  time.Time    `json:"start_time"`
	EndTime    time.Time    `json:"end_time"`
	Date       string       `json:"date"`
	Reason     string       `json:"reason,omitempty"`
}

// AvailabilityUpdated signals that the slot picture changed for a business,
// either for one (service, date) or wholesale after a rule replace (empty
// ServiceID and Date).
type AvailabilityUpdated struct {
	BusinessID string `json:"business_id"`
	ServiceID  string `json:"service_id,omitempty"`
	Date       string `json:"date,omitempty"`
}

// PaymentResult is the payload shape shared by payment.succeeded and
// payment.failed from the billing collaborator.
type PaymentResult struct {
	BookingID  string `json:"booking_id"`
	BusinessID string `json:"business_id"`
}

// ServiceUpserted carries the business-profile projection fields for
// business.service.created/updated.
type ServiceUpserted struct {
	ServiceID              string `json:"service_id"`
	BusinessID             string `json:"business_id"`
	Name                   string `json:"name"`
	DurationMinutes        int    `json:"duration_minutes"`
	BufferMinutes          int    `json:"buffer_minutes"`
	PriceCents             int64  `json:"price_cents"`
	Currency               string `json:"currency"`
	MinAdvanceBookingHours int    `json:"min_advance_booking_hours"`
	MaxAdvanceBookingDays  int    `json:"max_advance_booking_days"`
	RequiresApproval       bool   `json:"requires_approval"`
	Active                 bool   `json:"active"`
}

type BusinessAvailabilityEdited struct {
	BusinessID string `json:"business_id"`
	Timezone   string `json:"timezone,omitempty"`
}

// Decode returns the concrete variant for a type tag. Unknown types are an
// error so consumers fail loudly instead of silently dropping payloads.
func Decode(eventType string, payload []byte) (any, error) {
	var v any
	switch eventType {
	case TypeBookingCreated:
		v = &BookingCreated{}
	case TypeBookingStatusChanged:
		v = &BookingStatusChanged{}
	case TypeAvailabilityUpdated:
		v = &AvailabilityUpdated{}
	case TypePaymentSucceeded, TypePaymentFailed:
		v = &PaymentResult{}
	case TypeServiceCreated, TypeServiceUpdated:
		v = &ServiceUpserted{}
	case TypeBusinessAvailEdited:
		v = &BusinessAvailabilityEdited{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return v, nil
}
