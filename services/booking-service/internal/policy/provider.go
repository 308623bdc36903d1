// Package policy supplies per-business booking policies. The default build
// uses env-configured static values; the protogen build asks the business
// profile service.
package policy

import (
	"context"
	"time"
)

type Rules struct {
	// CancellationLeadTime is the minimum time before start at which a
	// booking may still be cancelled. Zero disables the check.
	CancellationLeadTime time.Duration
	// ReminderOffsets are the intervals before start at which reminder
	// jobs fire.
	ReminderOffsets []time.Duration
}

// CanCancel reports whether a booking starting at start may still be
// cancelled at now.
func (r Rules) CanCancel(now, start time.Time) bool {
	if r.CancellationLeadTime <= 0 {
		return true
	}
	return !now.Add(r.CancellationLeadTime).After(start)
}

type Provider interface {
	Rules(ctx context.Context, businessID string) (Rules, error)
}

type staticProvider struct {
	rules Rules
}

func NewStaticProvider(rules Rules) Provider {
	return &staticProvider{rules: rules}
}

func (p *staticProvider) Rules(_ context.Context, _ string) (Rules, error) {
	return p.rules, nil
}
