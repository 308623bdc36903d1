package realtime

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/slotwise/slotwise/libs/kafkax"
	"github.com/slotwise/slotwise/services/booking-service/internal/event"
)

// Feed returns a consumer handler that turns produced booking and
// availability events into hub broadcasts. Broadcasting is idempotent, so
// the feed consumer runs without inbox dedupe.
func Feed(hub *Hub) func(ctx context.Context, msg kafka.Message) error {
	return func(_ context.Context, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		decoded, err := event.Decode(meta.EventType, msg.Value)
		if err != nil {
			return err
		}

		switch v := decoded.(type) {
		case *event.BookingCreated:
			hub.Broadcast(Message{
				Type:       "slot_changed",
				BusinessID: v.BusinessID,
				ServiceID:  v.ServiceID,
				Date:       v.Date,
				StartTime:  v.StartTime,
				EndTime:    v.EndTime,
				Status:     string(v.Status),
			})
		case *event.BookingStatusChanged:
			hub.Broadcast(Message{
				Type:       "slot_changed",
				BusinessID: v.BusinessID,
				ServiceID:  v.ServiceID,
				Date:       v.Date,
				StartTime:  v.StartTime,
				EndTime:    v.EndTime,
				Status:     string(v.ToStatus),
			})
		case *event.AvailabilityUpdated:
			hub.Broadcast(Message{
				Type:       "availability_changed",
				BusinessID: v.BusinessID,
				ServiceID:  v.ServiceID,
				Date:       v.Date,
			})
		}
		return nil
	}
}
