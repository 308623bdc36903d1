package model

import "time"

// Service is a bookable offering. Duration and buffer together determine the
// slot grid; the advance-booking fields bound how far out and how soon a
// customer may book.
type Service struct {
	ID                     string
	BusinessID             string
	Name                   string
	DurationMinutes        int
	BufferMinutes          int
	PriceCents             int64
	Currency               string
	MinAdvanceBookingHours int
	MaxAdvanceBookingDays  int
	RequiresApproval       bool
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (s Service) Validate() error {
	if s.DurationMinutes <= 0 {
		return Invalid("duration_minutes", "must be positive")
	}
	if s.BufferMinutes < 0 {
		return Invalid("buffer_minutes", "must not be negative")
	}
	if s.MinAdvanceBookingHours < 0 {
		return Invalid("min_advance_booking_hours", "must not be negative")
	}
	if s.MaxAdvanceBookingDays < 0 {
		return Invalid("max_advance_booking_days", "must not be negative")
	}
	return nil
}

// Step is the distance between consecutive slot starts.
func (s Service) Step() time.Duration {
	return time.Duration(s.DurationMinutes+s.BufferMinutes) * time.Minute
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Business struct {
	ID        string
	Name      string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeSlot is one offerable interval, half-open [StartTime, EndTime).
// Slots are computed on demand and never persisted.
type TimeSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"available"`
}
