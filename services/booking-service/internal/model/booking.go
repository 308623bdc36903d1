package model

import "time"

// Status is the booking lifecycle state. Transitions are validated by
// CanTransition; anything else is rejected before touching storage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// transitions lists the allowed next states per current state.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// Blocking reports whether a booking in this status occupies its time range
// for conflict purposes.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Booking struct {
	ID            string
	BusinessID    string
	ServiceID     string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartTime     time.Time
	EndTime       time.Time
	Status        Status
	Notes         string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Blocking reports whether this booking occupies its time range.
func (b Booking) Blocking() bool {
	return b.Status.Blocking()
}

// StatusChange is one row of the booking's audit trail. Every transition
// appends exactly one entry.
type StatusChange struct {
	ID         string
	BookingID  string
	FromStatus Status
	ToStatus   Status
	Reason     string
	ChangedBy  string
	CreatedAt  time.Time
}
