package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mailpilot/internal/app"
	"mailpilot/internal/handler"
	"mailpilot/internal/httpserver"
	"mailpilot/internal/pipeline"
	"mailpilot/internal/scheduler"
	"mailpilot/internal/telegrambot"
	"mailpilot/pkg/config"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/mq"
	"mailpilot/pkg/otel"
	"mailpilot/pkg/outbox"
	"mailpilot/pkg/rbac"
)

func main() {
	cfg := config.MustLoad()
	logger := logger.NewLogger(config.GetEnv("DEBUG", "") != "")
	defer logger.Sync()

	logger.Info("Starting mailpilot server...")

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    "mailpilot-server",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry init failed", zap.Error(err))
	}
	defer shutdownTracing()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("App init failed", zap.Error(err))
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// queued 模式下由 outbox dispatcher 把通知意图发布到 MQ
	if cfg.Pipeline.DispatchMode == pipeline.DispatchQueued {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			logger.Fatal("failed to init publisher", zap.Error(err))
		}
		defer publisher.Close()
		go outbox.NewDispatcher(a.Outbox, publisher, logger).Start(ctx)
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(cfg.Scheduler, scheduler.Deps{
			Users:      a.Users,
			Identities: a.Auth,
			Syncer:     a.Sync,
			Stats:      a.Emails,
			Dispatcher: a.Dispatcher,
		}, cfg.Mail.MaxResults, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Fatal("Scheduler start failed", zap.Error(err))
		}
		defer sched.Stop()
	}

	if cfg.Telegram.Commands {
		bot := telegrambot.New(cfg.Telegram, telegrambot.Deps{
			Emails:     a.Emails,
			Users:      a.Users,
			Identities: a.Auth,
			Syncer:     a.Sync,
			Calendars:  a.Calendars,
			Cache:      a.Cache,
		}, cfg.Mail.MaxResults, a.Location, logger)
		if err := bot.Start(ctx); err != nil {
			logger.Error("Telegram command bot not started", zap.Error(err))
		}
	}

	router := httpserver.NewRouter(httpserver.Handlers{
		Health:   handler.NewHealthHandler(a.ReadinessChecks()),
		Auth:     handler.NewAuthHandler(a.Auth, a.Users, logger),
		Email:    handler.NewEmailHandler(a.Emails, a.Sync, a.Auth, cfg.Mail.MaxResults, logger),
		AI:       handler.NewAIHandler(a.Enricher, a.Emails, a.Auth, logger),
		Calendar: handler.NewCalendarHandler(a.Calendars, a.Auth, cfg.Calendar.Enabled, logger),
		Cache:    handler.NewCacheHandler(a.Cache),
	}, cfg.JWT.Secret, rbac.NewPolicy(cfg.Security.AdminEmails), logger)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down mailpilot server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	logger.Info("mailpilot server shutdown complete")
}
