// Package app wires the shared components used by every binary.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailpilot/internal/cache"
	"mailpilot/internal/calendar"
	"mailpilot/internal/handler"
	"mailpilot/internal/inference"
	"mailpilot/internal/mailsource"
	"mailpilot/internal/notify"
	"mailpilot/internal/pipeline"
	"mailpilot/internal/repository"
	"mailpilot/internal/service/auth"
	"mailpilot/internal/service/mailsync"
	"mailpilot/pkg/config"
	"mailpilot/pkg/db"
	"mailpilot/pkg/outbox"
	"mailpilot/pkg/redis"
	"mailpilot/pkg/secret"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB       *pgxpool.Pool
	Redis    *goredis.Client
	Location *time.Location

	Cache      *cache.RedisStore
	Emails     *repository.EmailRepository
	Users      *repository.UserRepository
	Outbox     *outbox.Repository
	Notifier   notify.Notifier
	Dispatcher pipeline.Dispatcher
	Calendars  calendar.Factory
	Enricher   *pipeline.Enricher
	Auth       *auth.Service
	Sync       *mailsync.Service
}

// New connects to Postgres and Redis and assembles the pipeline.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	rdb := redis.NewRedisClient(cfg.Redis)

	a, err := assemble(cfg, pool, rdb, logger)
	if err != nil {
		pool.Close()
		rdb.Close()
		return nil, err
	}
	return a, nil
}

func assemble(cfg *config.Config, pool *pgxpool.Pool, rdb *goredis.Client, logger *zap.Logger) (*App, error) {
	sealer, sealed, err := secret.FromConfig(cfg.Security.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("token key: %w", err)
	}
	if !sealed {
		logger.Warn("security.token_key not set, OAuth tokens are stored unencrypted")
	}

	llm, err := inference.NewFromConfig(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	sources, err := mailsource.NewFactory(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Calendar.TimeZone)
	if err != nil {
		logger.Warn("Unknown calendar time zone, using UTC", zap.String("time_zone", cfg.Calendar.TimeZone), zap.Error(err))
		loc = time.UTC
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       pool,
		Redis:    rdb,
		Location: loc,
		Cache:    cache.NewRedisStore(rdb, cfg.Pipeline.CachePrefix, logger),
		Emails:   repository.NewEmailRepository(pool),
		Users:    repository.NewUserRepository(pool, sealer),
		Outbox:   outbox.NewRepository(pool),
		Notifier: notify.NewTelegram(cfg.Telegram, logger),
	}

	switch cfg.Pipeline.DispatchMode {
	case pipeline.DispatchQueued:
		a.Dispatcher = pipeline.NewOutboxDispatcher(a.Outbox, logger)
	case pipeline.DispatchInline, "":
		a.Dispatcher = pipeline.NewInlineDispatcher(a.Notifier, logger)
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", cfg.Pipeline.DispatchMode)
	}

	if cfg.Calendar.Enabled {
		a.Calendars = calendar.NewGoogleFactory(calendar.GoogleOptions{
			CalendarID: cfg.Calendar.CalendarID,
			TimeZone:   cfg.Calendar.TimeZone,
			Timeout:    config.Seconds(cfg.Calendar.TimeoutSeconds),
			Logger:     logger,
		})
	}

	a.Enricher = pipeline.New(a.Cache, llm, a.Calendars, a.Dispatcher, pipeline.Config{
		ResultTTL:       config.Seconds(cfg.Pipeline.CacheTTLSeconds),
		SummaryTTL:      config.Seconds(cfg.Pipeline.SummaryCacheTTLSeconds),
		CalendarEnabled: cfg.Calendar.Enabled,
		CalendarTimeout: config.Seconds(cfg.Calendar.TimeoutSeconds),
		NotifyEnabled:   cfg.Telegram.Enabled,
		Location:        loc,
	}, logger)

	a.Auth = auth.NewService(a.Users, auth.NewGoogleProvider(cfg.Google), auth.GmailProfile, cfg.JWT, logger)
	a.Sync = mailsync.NewService(sources, a.Enricher, a.Emails, cfg.Pipeline.BatchConcurrency, cfg.Telegram.Enabled, logger)
	return a, nil
}

// ReadinessChecks are the dependencies /readyz probes.
func (a *App) ReadinessChecks() map[string]handler.Check {
	return map[string]handler.Check{
		"db":    func(ctx context.Context) error { return a.DB.Ping(ctx) },
		"redis": func(ctx context.Context) error { return redis.Ping(ctx, a.Redis) },
	}
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
