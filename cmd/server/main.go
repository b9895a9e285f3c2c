package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/example/webhook-router/internal/common"
	"github.com/example/webhook-router/internal/connector"
	"github.com/example/webhook-router/internal/dispatch"
	"github.com/example/webhook-router/internal/events"
	"github.com/example/webhook-router/internal/ingest"
	"github.com/example/webhook-router/internal/ratelimit"
	"github.com/example/webhook-router/internal/submission"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	cfg, err := common.LoadConfig("webhook-router")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := common.NewLogger(cfg.ServiceName)
	shutdown, err := common.SetupOTel(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer common.ShutdownTelemetry(context.Background(), shutdown)

	metricsSrv := common.StartMetricsServer(cfg.MetricsPort)
	defer metricsSrv.Shutdown(context.Background())

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL must be provided")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	connectors := connector.NewPostgresRepository(pool)
	submissions := submission.NewPostgresRepository(pool)
	limiter := ratelimit.New()

	registry := dispatch.NewRegistry()
	registry.Register(connector.DestinationEmail, &dispatch.EmailHandler{
		Endpoint: cfg.SendGridEndpoint,
		APIKey:   cfg.SendGridAPIKey,
	})
	registry.Register(connector.DestinationChat, &dispatch.ChatHandler{
		AllowedHost: cfg.ChatWebhookHost,
	})
	registry.Register(connector.DestinationSheets, &dispatch.SheetsHandler{
		Endpoint: cfg.SheetsEndpoint,
		Token:    cfg.SheetsToken,
	})
	registry.Register(connector.DestinationSMS, &dispatch.NotImplementedHandler{Type: connector.DestinationSMS})
	registry.Register(connector.DestinationWebhook, &dispatch.NotImplementedHandler{Type: connector.DestinationWebhook})

	coordinator := dispatch.NewCoordinator(registry, dispatch.DefaultRetryPolicy(cfg.DispatchTimeout), logger)

	var publisher ingest.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.SubmissionEventsTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	h := ingest.NewHandler(connectors, submissions, coordinator, limiter, publisher, cfg, logger)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: h.Router(),
	}

	go func() {
		logger.Info().Int("port", cfg.HTTPPort).Msg("webhook router listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
