package model

import "time"

// AvailabilityRule opens a recurring weekly window for a business. Minutes
// are counted from local midnight in the business timezone, so a 09:00-17:00
// rule is StartMinute 540, EndMinute 1020.
type AvailabilityRule struct {
	ID          string
	BusinessID  string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	CreatedAt   time.Time
}

func (r AvailabilityRule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return Invalid("weekday", "must be 0 (Sunday) through 6 (Saturday)")
	}
	if r.StartMinute < 0 || r.StartMinute >= minutesPerDay {
		return Invalid("start_minute", "must be within 0..1439")
	}
	if r.EndMinute <= r.StartMinute || r.EndMinute > minutesPerDay {
		return Invalid("end_minute", "must be after start_minute and at most 1440")
	}
	return nil
}

// AvailabilityException overrides the weekly rules for a single calendar
// date. A closed exception removes the day entirely; otherwise the given
// window replaces whatever the rules would have produced.
type AvailabilityException struct {
	ID          string
	BusinessID  string
	Date        string // YYYY-MM-DD in the business timezone
	Closed      bool
	StartMinute int
	EndMinute   int
	Reason      string
	CreatedAt   time.Time
}

func (e AvailabilityException) Validate() error {
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return Invalid("date", "must be YYYY-MM-DD")
	}
	if e.Closed {
		return nil
	}
	if e.StartMinute < 0 || e.StartMinute >= minutesPerDay {
		return Invalid("start_minute", "must be within 0..1439")
	}
	if e.EndMinute <= e.StartMinute || e.EndMinute > minutesPerDay {
		return Invalid("end_minute", "must be after start_minute and at most 1440")
	}
	return nil
}

const minutesPerDay = 24 * 60
