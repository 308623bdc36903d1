package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// event-sim publishes a hand-built upstream event onto the local broker so
// the booking consumers can be exercised without running the producing
// services.
func main() {
	var (
		brokers  = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma separated kafka brokers")
		evtType  = flag.String("type", getenv("EVENT_TYPE", "payment.succeeded"), "event type (also the topic)")
		booking  = flag.String("booking-id", getenv("BOOKING_ID", ""), "booking id for payment events")
		business = flag.String("business-id", getenv("BUSINESS_ID", ""), "business id")
		service  = flag.String("service-id", getenv("SERVICE_ID", ""), "service id for service events")
		timezone = flag.String("timezone", getenv("TIMEZONE", "UTC"), "timezone for business events")
	)
	flag.Parse()

	payload, key, err := buildEventJSON(*evtType, *booking, *business, *service, *timezone)
	if err != nil {
		fatal(err.Error())
	}

	eventID := uuid.NewString()
	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:    *evtType,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(*evtType)},
		},
	})
	if err != nil {
		fatal(err.Error())
	}

	fmt.Printf("published event_id=%s type=%s key=%s\n", eventID, *evtType, key)
}

func buildEventJSON(eventType, bookingID, businessID, serviceID, timezone string) ([]byte, string, error) {
	switch eventType {
	case "payment.succeeded", "payment.failed":
		if strings.TrimSpace(bookingID) == "" {
			return nil, "", fmt.Errorf("BOOKING_ID is required for %s", eventType)
		}
		payload, err := json.Marshal(map[string]any{
			"booking_id":  bookingID,
			"business_id": businessID,
		})
		return payload, bookingID, err
	case "business.service.created", "business.service.updated":
		if strings.TrimSpace(serviceID) == "" || strings.TrimSpace(businessID) == "" {
			return nil, "", fmt.Errorf("SERVICE_ID and BUSINESS_ID are required for %s", eventType)
		}
		payload, err := json.Marshal(map[string]any{
			"service_id":       serviceID,
			"business_id":      businessID,
			"name":             "Test Service",
			"duration_minutes": 60,
			"active":           true,
		})
		return payload, serviceID, err
	case "business.availability.updated":
		if strings.TrimSpace(businessID) == "" {
			return nil, "", fmt.Errorf("BUSINESS_ID is required for %s", eventType)
		}
		payload, err := json.Marshal(map[string]any{
			"business_id": businessID,
			"timezone":    timezone,
		})
		return payload, businessID, err
	default:
		return nil, "", fmt.Errorf("unsupported event type: %s", eventType)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
