//go:build protogen

package directory

import (
	"context"
	"log/slog"
	"time"

	"github.com/slotwise/slotwise/libs/grpcx"
	businessv1 "github.com/slotwise/slotwise/protos/gen/business/v1"
	"github.com/slotwise/slotwise/services/booking-service/internal/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type grpcProvider struct {
	client          businessv1.BusinessServiceClient
	defaultTimezone string
}

func NewDirectoryProvider(logger *slog.Logger, defaultTimezone string, addr string) (Provider, error) {
	if addr == "" {
		return NewStaticProvider(defaultTimezone), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("grpc directory unavailable, using static provider", "err", err)
		return NewStaticProvider(defaultTimezone), nil
	}
	return &grpcProvider{client: businessv1.NewBusinessServiceClient(conn), defaultTimezone: defaultTimezone}, nil
}

func (p *grpcProvider) Service(ctx context.Context, serviceID string) (model.Service, error) {
	resp, err := p.client.GetService(ctx, &businessv1.GetServiceRequest{ServiceId: serviceID})
	if status.Code(err) == codes.NotFound {
		return model.Service{}, model.ErrNotFound
	}
	if err != nil {
		return model.Service{}, err
	}
	return model.Service{
		ID:                     resp.GetServiceId(),
		BusinessID:             resp.GetBusinessId(),
		Name:                   resp.GetName(),
		DurationMinutes:        int(resp.GetDurationMinutes()),
		BufferMinutes:          int(resp.GetBufferMinutes()),
		PriceCents:             resp.GetPriceCents(),
		Currency:               resp.GetCurrency(),
		MinAdvanceBookingHours: int(resp.GetMinAdvanceBookingHours()),
		MaxAdvanceBookingDays:  int(resp.GetMaxAdvanceBookingDays()),
		RequiresApproval:       resp.GetRequiresApproval(),
		Active:                 resp.GetActive(),
	}, nil
}

func (p *grpcProvider) BusinessTimezone(ctx context.Context, businessID string) (string, error) {
	resp, err := p.client.GetBusiness(ctx, &businessv1.GetBusinessRequest{BusinessId: businessID})
	if err != nil || resp.GetTimezone() == "" {
		return p.defaultTimezone, nil
	}
	return resp.GetTimezone(), nil
}
