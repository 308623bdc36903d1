// Package availability computes offerable time slots from weekly rules,
// dated exceptions and the bookings already on the calendar. Everything here
// is pure; storage and caching live with the callers.
package availability

import (
	"sort"
	"time"

	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Windows returns the open intervals for one calendar date in loc.
//
// An exception for that date wins over the weekly rules: a closed exception
// removes the day, a custom-hours exception replaces the rule set entirely.
func Windows(rules []model.AvailabilityRule, exceptions []model.AvailabilityException, date string, loc *time.Location) ([]Interval, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, model.Invalid("date", "must be YYYY-MM-DD")
	}

	for _, ex := range exceptions {
		if ex.Date != date {
			continue
		}
		if ex.Closed {
			return nil, nil
		}
		return []Interval{minuteWindow(day, ex.StartMinute, ex.EndMinute)}, nil
	}

	var windows []Interval
	for _, r := range rules {
		if r.Weekday != day.Weekday() {
			continue
		}
		windows = append(windows, minuteWindow(day, r.StartMinute, r.EndMinute))
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })
	return windows, nil
}

// WithinWindow checks the service's advance-booking policy for a date.
// A date beyond the horizon, or one whose whole day falls inside the
// minimum lead time (which also covers dates fully in the past), is
// rejected with a ValidationError.
func WithinWindow(svc model.Service, loc *time.Location, date string, now time.Time) error {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return model.Invalid("date", "must be YYYY-MM-DD")
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if svc.MaxAdvanceBookingDays > 0 && day.After(today.AddDate(0, 0, svc.MaxAdvanceBookingDays)) {
		return model.Invalid("date", "beyond the booking horizon")
	}

	cutoff := now.Add(time.Duration(svc.MinAdvanceBookingHours) * time.Hour)
	if !day.AddDate(0, 0, 1).After(cutoff) {
		return model.Invalid("date", "inside the minimum booking lead time")
	}
	return nil
}

// Generate returns the full slot grid for one date, chronological and
// deterministic. Slots overlapping a blocking booking, or starting inside
// the minimum lead time, are kept in the grid with Available=false. The
// grid partitions each window by duration+buffer; a remainder shorter than
// the duration yields no slot.
func Generate(svc model.Service, loc *time.Location, rules []model.AvailabilityRule, exceptions []model.AvailabilityException, bookings []model.Booking, date string, now time.Time) ([]model.TimeSlot, error) {
	if err := svc.Validate(); err != nil {
		return nil, err
	}
	if err := WithinWindow(svc, loc, date, now); err != nil {
		return nil, err
	}
	windows, err := Windows(rules, exceptions, date, loc)
	if err != nil {
		return nil, err
	}

	duration := svc.Duration()
	step := svc.Step()
	cutoff := now.Add(time.Duration(svc.MinAdvanceBookingHours) * time.Hour)

	var slots []model.TimeSlot
	for _, w := range windows {
		for t := w.Start; !t.Add(duration).After(w.End); t = t.Add(step) {
			end := t.Add(duration)
			slots = append(slots, model.TimeSlot{
				StartTime: t,
				EndTime:   end,
				Available: !t.Before(cutoff) && !overlapsAny(t, end, bookings),
			})
		}
	}
	return slots, nil
}

func overlapsAny(start, end time.Time, bookings []model.Booking) bool {
	for _, b := range bookings {
		if !b.Blocking() {
			continue
		}
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.EndTime) && b.StartTime.Before(end) {
			return true
		}
	}
	return false
}

func minuteWindow(day time.Time, startMinute, endMinute int) Interval {
	return Interval{
		Start: day.Add(time.Duration(startMinute) * time.Minute),
		End:   day.Add(time.Duration(endMinute) * time.Minute),
	}
}
