//go:build protogen

package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/slotwise/slotwise/libs/grpcx"
	businessv1 "github.com/slotwise/slotwise/protos/gen/business/v1"
)

type grpcProvider struct {
	client   businessv1.BusinessServiceClient
	fallback Rules
}

func NewBusinessPolicyProvider(logger *slog.Logger, fallback Rules, addr string) (Provider, error) {
	if addr == "" {
		return NewStaticProvider(fallback), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("grpc policy provider unavailable, using fallback", "err", err)
		return NewStaticProvider(fallback), nil
	}
	return &grpcProvider{client: businessv1.NewBusinessServiceClient(conn), fallback: fallback}, nil
}

func (p *grpcProvider) Rules(ctx context.Context, businessID string) (Rules, error) {
	resp, err := p.client.GetBookingPolicy(ctx, &businessv1.GetBookingPolicyRequest{BusinessId: businessID})
	if err != nil {
		return p.fallback, nil
	}
	rules := Rules{
		CancellationLeadTime: time.Duration(resp.GetCancellationLeadTimeMinutes()) * time.Minute,
	}
	for _, m := range resp.GetReminderOffsetMinutes() {
		rules.ReminderOffsets = append(rules.ReminderOffsets, time.Duration(m)*time.Minute)
	}
	return rules, nil
}
