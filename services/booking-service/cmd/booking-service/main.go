package main

import (
	"context"
	"net/http"
	"time"

	"github.com/zapislab/zapis/libs/config"
	"github.com/zapislab/zapis/libs/db"
	"github.com/zapislab/zapis/libs/eventx"
	"github.com/zapislab/zapis/libs/httpx"
	"github.com/zapislab/zapis/libs/kafkax"
	otelx "github.com/zapislab/zapis/libs/otel"
	"github.com/zapislab/zapis/libs/runtime"
	"github.com/zapislab/zapis/services/booking-service/internal/catalog"
	"github.com/zapislab/zapis/services/booking-service/internal/handlers"
	"github.com/zapislab/zapis/services/booking-service/internal/metrics"
	"github.com/zapislab/zapis/services/booking-service/internal/reminders"
	"github.com/zapislab/zapis/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.LoadDotenv()

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

	bookingRepo := storage.NewBookingRepository(pool)
	waitlistRepo := storage.NewWaitlistRepository(pool)
	catalogRepo := catalog.NewRepository(pool)
	outboxRepo := eventx.NewOutboxRepository(pool)
	inboxRepo := eventx.NewInboxRepository(pool)
	reminderRepo := reminders.NewRepository(pool)
	reminderRunner := reminders.NewRunner(pool, reminderRepo, outboxRepo, logger)
	bookingMetrics := metrics.NewBookingMetrics(nil)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := eventx.NewPublisher(pool, outboxRepo, logger, eventx.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	groupID := config.String("KAFKA_GROUP_ID", "booking-service")
	startConsumer := func(topic string, handler eventx.Handler) {
		c := eventx.NewConsumer(logger, inboxRepo, eventx.ConsumerConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}
	startConsumer(catalog.EventProfileUpdated, catalog.ProfileEventHandler(catalogRepo, logger))
	startConsumer(catalog.EventServiceUpserted, catalog.ServiceEventHandler(catalogRepo, logger))

	bookingHandler := handlers.NewBookingHandler(bookingRepo, waitlistRepo, catalogRepo, outboxRepo, logger, bookingMetrics)
	reminderHandler := handlers.NewReminderHandler(reminderRunner, logger, bookingMetrics)
	reminderSecret := config.String("REMINDER_TRIGGER_SECRET", "")

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Create)
	mux.HandleFunc("/api/v1/public/waitlist", bookingHandler.JoinWaitlist)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/internal/reminders/run", httpx.RequireBearer(reminderSecret, reminderHandler.Run))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
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
