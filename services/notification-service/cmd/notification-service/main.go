package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/zapislab/zapis/libs/config"
	"github.com/zapislab/zapis/libs/db"
	"github.com/zapislab/zapis/libs/eventx"
	"github.com/zapislab/zapis/libs/httpx"
	"github.com/zapislab/zapis/libs/kafkax"
	otelx "github.com/zapislab/zapis/libs/otel"
	"github.com/zapislab/zapis/libs/runtime"
	"github.com/zapislab/zapis/services/notification-service/internal/dispatch"
	"github.com/zapislab/zapis/services/notification-service/internal/message"
	"github.com/zapislab/zapis/services/notification-service/internal/retry"
	"github.com/zapislab/zapis/services/notification-service/internal/storage"
	"github.com/zapislab/zapis/services/notification-service/internal/telegram"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.LoadDotenv()

	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	notificationsRepo := storage.NewRepository(pool)
	retryRepo := retry.NewRepository(pool)
	inboxRepo := eventx.NewInboxRepository(pool)
	outboxRepo := eventx.NewOutboxRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := eventx.NewPublisher(pool, outboxRepo, logger, eventx.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	var sender telegram.Sender
	switch strings.ToLower(config.String("TELEGRAM_PROVIDER", "bot")) {
	case "noop":
		sender = telegram.NewNoopSender()
	default:
		sender = telegram.NewBotSender(
			config.String("TELEGRAM_API_BASE_URL", ""),
			config.String("TELEGRAM_BOT_TOKEN", ""),
		)
	}

	sendTimeout := config.Duration("TELEGRAM_SEND_TIMEOUT", 5*time.Second)
	retryBackoff := config.Duration("SEND_RETRY_BACKOFF", 1*time.Minute)

	dispatcher := dispatch.NewDispatcher(pool, notificationsRepo, retryRepo, outboxRepo, sender, logger, dispatch.Config{
		SendTimeout:  sendTimeout,
		RetryBackoff: retryBackoff,
	})

	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	topics := []string{
		message.EventAppointmentBooked,
		message.EventAppointmentCancelled,
		message.EventWaitlistJoined,
		message.EventSlotFreed,
		message.EventReminderDue,
	}
	for _, topic := range topics {
		c := eventx.NewConsumer(logger, inboxRepo, eventx.ConsumerConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, dispatcher.Handler())
		go c.Run(ctx)
	}

	retryWorker := retry.NewWorker(pool, retryRepo, notificationsRepo, outboxRepo, sender, logger, retry.WorkerConfig{
		Interval:    config.Duration("SEND_RETRY_INTERVAL", 5*time.Second),
		BatchSize:   config.Int("SEND_RETRY_BATCH_SIZE", 20),
		Backoff:     retryBackoff,
		SendTimeout: sendTimeout,
	})
	go retryWorker.Run(ctx)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
