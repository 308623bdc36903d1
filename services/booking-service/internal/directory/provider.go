// Package directory looks up business and service profiles from the
// external business-profile collaborator. It is consulted only when the
// local projection misses; projections are maintained from bus events.
package directory

import (
	"context"

	"github.com/slotwise/slotwise/services/booking-service/internal/model"
)

type Provider interface {
	Service(ctx context.Context, serviceID string) (model.Service, error)
	BusinessTimezone(ctx context.Context, businessID string) (string, error)
}

type staticProvider struct {
	defaultTimezone string
}

// NewStaticProvider serves a fixed timezone and no service profiles. Used
// when no directory endpoint is configured; a projection miss then surfaces
// as ErrNotFound.
func NewStaticProvider(defaultTimezone string) Provider {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &staticProvider{defaultTimezone: defaultTimezone}
}

func (p *staticProvider) Service(_ context.Context, _ string) (model.Service, error) {
	return model.Service{}, model.ErrNotFound
}

func (p *staticProvider) BusinessTimezone(_ context.Context, _ string) (string, error) {
	return p.defaultTimezone, nil
}
