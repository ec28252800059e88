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
	"github.com/zapislab/zapis/services/business-service/internal/handlers"
	"github.com/zapislab/zapis/services/business-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.LoadDotenv()

	service := config.String("SERVICE_NAME", "business-service")
	port, err := config.Port("PORT", "8082")
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

	repo := storage.NewRepository(pool)
	outboxRepo := eventx.NewOutboxRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := eventx.NewPublisher(pool, outboxRepo, logger, eventx.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	profileHandler := handlers.NewProfileHandler(repo, outboxRepo, logger)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/profiles", profileHandler.Create)
	mux.HandleFunc("/api/v1/profiles/update", profileHandler.Update)
	mux.HandleFunc("/api/v1/profiles/get", profileHandler.Get)
	mux.HandleFunc("/api/v1/services", profileHandler.CreateService)
	mux.HandleFunc("/api/v1/services/list", profileHandler.ListServices)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "business")
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
