package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/slotwise/slotwise/libs/config"
	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/libs/httpx"
	"github.com/slotwise/slotwise/libs/kafkax"
	otelx "github.com/slotwise/slotwise/libs/otel"
	"github.com/slotwise/slotwise/libs/runtime"
	"github.com/slotwise/slotwise/services/booking-service/internal/cache"
	"github.com/slotwise/slotwise/services/booking-service/internal/consumer"
	"github.com/slotwise/slotwise/services/booking-service/internal/directory"
	"github.com/slotwise/slotwise/services/booking-service/internal/engine"
	"github.com/slotwise/slotwise/services/booking-service/internal/event"
	"github.com/slotwise/slotwise/services/booking-service/internal/handlers"
	"github.com/slotwise/slotwise/services/booking-service/internal/inbox"
	"github.com/slotwise/slotwise/services/booking-service/internal/jobs"
	"github.com/slotwise/slotwise/services/booking-service/internal/notify"
	"github.com/slotwise/slotwise/services/booking-service/internal/outbox"
	"github.com/slotwise/slotwise/services/booking-service/internal/policy"
	"github.com/slotwise/slotwise/services/booking-service/internal/realtime"
	"github.com/slotwise/slotwise/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func parseReminderOffsets(raw string, logger *slog.Logger) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour}
	}
	return offsets
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer redisClient.Close()
	} else {
		logger.Warn("slot cache disabled (no redis configured)")
	}

	bookingRepo := storage.NewBookingRepository(pool)
	ruleRepo := storage.NewRuleRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	jobsRepo := jobs.NewRepository()
	slotCache := cache.New(redisClient, config.Duration("SLOT_CACHE_TTL", 30*time.Second))

	fallbackRules := policy.Rules{
		CancellationLeadTime: config.Duration("CANCELLATION_LEAD_TIME", 0),
		ReminderOffsets:      parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger),
	}
	policyProvider, err := policy.NewBusinessPolicyProvider(logger, fallbackRules, config.String("BUSINESS_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("policy provider init failed", "err", err)
		policyProvider = policy.NewStaticProvider(fallbackRules)
	}
	directoryProvider, err := directory.NewDirectoryProvider(logger, config.String("DEFAULT_TIMEZONE", "UTC"), config.String("BUSINESS_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("directory provider init failed", "err", err)
		directoryProvider = directory.NewStaticProvider(config.String("DEFAULT_TIMEZONE", "UTC"))
	}

	eng := engine.New(engine.Config{
		Bookings:  bookingRepo,
		Rules:     ruleRepo,
		Outbox:    outboxRepo,
		Jobs:      jobsRepo,
		Cache:     slotCache,
		Policy:    policyProvider,
		Directory: directoryProvider,
		Logger:    logger,
	})

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	notifier := notify.NewClient(config.String("NOTIFICATION_URL", ""), logger)
	jobsWorker := jobs.NewWorker(pool, jobsRepo, outboxRepo, notifier, logger, jobs.WorkerConfig{
		Interval:  config.Duration("REMINDER_POLL_INTERVAL", 2*time.Second),
		BatchSize: 50,
		Backoff:   config.Duration("REMINDER_RETRY_BACKOFF", time.Minute),
	})
	go jobsWorker.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	groupID := config.String("KAFKA_GROUP_ID", "booking-service")
	startConsumer := func(topic string, handler consumer.Handler) {
		if brokers == "" || strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}

	paymentHandler := func(succeeded bool) consumer.Handler {
		return func(ctx context.Context, msg kafka.Message) error {
			meta := kafkax.ExtractEventMeta(msg)
			decoded, err := event.Decode(meta.EventType, msg.Value)
			if err != nil {
				logger.Error("invalid payment event", "err", err, "topic", msg.Topic)
				return nil
			}
			result, ok := decoded.(*event.PaymentResult)
			if !ok || result.BookingID == "" {
				logger.Error("missing booking id in payment event", "topic", msg.Topic)
				return nil
			}
			if succeeded {
				return eng.ConfirmFromPayment(ctx, result.BookingID)
			}
			return eng.CancelFromPayment(ctx, result.BookingID)
		}
	}
	startConsumer(event.TypePaymentSucceeded, paymentHandler(true))
	startConsumer(event.TypePaymentFailed, paymentHandler(false))

	serviceProjection := func(ctx context.Context, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		decoded, err := event.Decode(meta.EventType, msg.Value)
		if err != nil {
			logger.Error("invalid business event", "err", err, "topic", msg.Topic)
			return nil
		}
		switch v := decoded.(type) {
		case *event.ServiceUpserted:
			return eng.ApplyServiceEvent(ctx, v)
		case *event.BusinessAvailabilityEdited:
			return eng.ApplyBusinessEvent(ctx, v)
		}
		return nil
	}
	startConsumer(event.TypeServiceCreated, serviceProjection)
	startConsumer(event.TypeServiceUpdated, serviceProjection)
	startConsumer(event.TypeBusinessAvailEdited, serviceProjection)

	// The realtime feed consumes the topics this service produces. Each node
	// gets its own group so every node broadcasts to its local websockets.
	hub := realtime.NewHub(logger)
	if brokers != "" {
		feedGroup := groupID + "-realtime-" + uuid.NewString()[:8]
		for _, topic := range []string{event.TypeBookingCreated, event.TypeBookingStatusChanged, event.TypeAvailabilityUpdated} {
			c := consumer.New(logger, nil, consumer.Config{
				Brokers:     brokers,
				GroupID:     feedGroup,
				Topic:       topic,
				StartOffset: kafka.LastOffset,
			}, realtime.Feed(hub))
			go c.Run(ctx)
		}
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if redisClient != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(redisClient)})
	}
	mux := runtime.NewBaseMux(readyChecks...)

	authn := httpx.WithBearerAuth(httpx.NewHS256Validator(config.String("AUTH_HS256_SECRET", "")))
	api := handlers.New(eng, logger)
	api.Register(mux, authn)
	mux.Handle("GET /ws/availability", realtime.Handler(hub, logger))

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}),
	}
	if redisClient != nil {
		limiter := httpx.NewRedisRateLimiter(redisClient,
			config.Int("RATE_LIMIT_PER_MINUTE", 120),
			time.Minute,
			"booking",
		)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
