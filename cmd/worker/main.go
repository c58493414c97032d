package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mqcontracts "mailpilot/contracts/mq"
	"mailpilot/internal/mqhandler"
	"mailpilot/internal/notify"
	"mailpilot/pkg/config"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/mq"
	"mailpilot/pkg/otel"
	"mailpilot/pkg/redis"
	"mailpilot/pkg/util"
)

func main() {
	cfg := config.MustLoad()
	logger := logger.NewLogger(config.GetEnv("DEBUG", "") != "")
	defer logger.Sync()

	logger.Info("Starting mailpilot worker...")

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    "mailpilot-worker",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry init failed", zap.Error(err))
	}
	defer shutdownTracing()

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, 24*time.Hour, logger)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	notifier := notify.NewTelegram(cfg.Telegram, logger)
	notiHandler := mqhandler.NewNotificationRequestedHandler(notifier, deduper, retryCounter, publisher, logger)

	logger.Info("Init consumer: notification.requested.q")
	consumer, err := mq.NewConsumer(
		cfg.MQ.URL,
		mqcontracts.RoutingKeyNotificationRequested+".q",
		mqcontracts.RoutingKeyNotificationRequested,
		10,
		logger,
	)
	if err != nil {
		logger.Fatal("Notification consumer init failed", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(notiHandler.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.StartConsuming(ctx); err != nil {
		logger.Error("Notification consumer stopped", zap.Error(err))
	}
	logger.Info("mailpilot worker shutdown complete")
}
